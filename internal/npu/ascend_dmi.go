package npu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wmc1992/npustat/internal/npu/base"
)

const (
	ascendDMIVersionCmd = "ascend-dmi -v"
	ascendDMIInfoCmd    = "ascend-dmi -i --format json"
	ascendDMIProbeCmd   = "ascend-dmi -i"
)

// AscendDMI reads card status from the JSON report of ascend-dmi. Unlike
// npu-smi it reports realtime power.
type AscendDMI struct{}

func (p AscendDMI) Name() string {
	return "ascend-dmi"
}

func (p AscendDMI) RealtimePower() bool {
	return true
}

func (p AscendDMI) Detect(ctx context.Context, runCmd base.RunCmdFunc) bool {
	out, err := runCmd(ctx, ascendDMIProbeCmd)
	return err == nil && strings.TrimSpace(out) != ""
}

func (p AscendDMI) Query(ctx context.Context, runCmd base.RunCmdFunc) (string, []base.Card, error) {
	version, err := runCmd(ctx, ascendDMIVersionCmd)
	if err != nil {
		return "", nil, err
	}

	output, err := runCmd(ctx, ascendDMIInfoCmd)
	if err != nil {
		return "", nil, err
	}

	cards, err := ParseAscendDMI([]byte(output))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse %q output: %w", ascendDMIInfoCmd, err)
	}
	return strings.TrimSpace(version), cards, nil
}

// flexString accepts both JSON strings and numbers; ascend-dmi releases
// disagree on how ids are typed.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type dmiChip struct {
	CardID      flexString `json:"card_id"`
	ChipID      flexString `json:"chip_id"`
	DeviceID    flexString `json:"device_id"`
	Health      flexString `json:"health"`
	ChipName    flexString `json:"chip_name"`
	Temperature flexString `json:"temperature"`
	BusID       flexString `json:"bus_id"`
	AICore      struct {
		Usage flexString `json:"ai_core_usage"`
	} `json:"ai_core_information"`
	Memory struct {
		Used  flexString `json:"used"`
		Total flexString `json:"total"`
	} `json:"memory_information"`
	Power struct {
		Realtime *flexString `json:"realtime_power"`
	} `json:"power_information"`
}

type dmiCard struct {
	CardID  flexString  `json:"card_id"`
	Type    flexString  `json:"type"`
	Power   *flexString `json:"power"`
	Devices []dmiChip   `json:"devices"`
}

type dmiReport struct {
	HardwareBrief *struct {
		Cards  []dmiCard `json:"cards"`
		Server *struct {
			Type    flexString `json:"type"`
			Devices []dmiChip  `json:"devices"`
		} `json:"server"`
	} `json:"hardware_brief"`
}

// ParseAscendDMI converts an "ascend-dmi -i --format json" document into
// cards. Missing sections yield no cards rather than an error.
func ParseAscendDMI(data []byte) ([]base.Card, error) {
	var report dmiReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	brief := report.HardwareBrief
	if brief == nil {
		return []base.Card{}, nil
	}

	cards := brief.Cards
	if cards == nil {
		if brief.Server == nil || brief.Server.Devices == nil {
			return []base.Card{}, nil
		}
		cards = devicesToCards(string(brief.Server.Type), brief.Server.Devices)
	}

	result := make([]base.Card, 0, len(cards))
	for _, c := range cards {
		card := base.Card{
			CardID: string(c.CardID),
			Type:   orUnknownType(string(c.Type)),
			Chips:  make([]base.Chip, 0, len(c.Devices)),
		}
		if c.Power != nil {
			card.Power = NormalizePower(string(*c.Power))
		} else {
			card.Power = sumRealtimePower(c.Devices)
		}
		for _, d := range c.Devices {
			card.Chips = append(card.Chips, d.toChip())
		}
		result = append(result, card)
	}
	return result, nil
}

// devicesToCards groups the flat device list of a server report into cards,
// opening a new card whenever card_id changes.
func devicesToCards(serverType string, devices []dmiChip) []dmiCard {
	var cards []dmiCard
	for _, d := range devices {
		if n := len(cards); n > 0 && cards[n-1].CardID == d.CardID {
			cards[n-1].Devices = append(cards[n-1].Devices, d)
			continue
		}
		cards = append(cards, dmiCard{
			CardID:  d.CardID,
			Type:    flexString(serverType),
			Devices: []dmiChip{d},
		})
	}
	return cards
}

func sumRealtimePower(devices []dmiChip) string {
	var total float64
	for _, d := range devices {
		if d.Power.Realtime == nil {
			continue
		}
		if w, ok := ParseWatts(string(*d.Power.Realtime)); ok {
			total += w
		}
	}
	return FormatWatts(total)
}

func (d dmiChip) toChip() base.Chip {
	chip := base.Chip{
		ChipID:      string(d.ChipID),
		DeviceID:    string(d.DeviceID),
		Health:      base.ParseHealth(string(d.Health)),
		ChipName:    string(d.ChipName),
		Temperature: NormalizeTemperature(string(d.Temperature)),
		AICoreUsage: NormalizePercent(string(d.AICore.Usage)),
		MemoryUsed:  base.Quantity{Amount: string(d.Memory.Used)},
		MemoryTotal: base.Quantity{Amount: string(d.Memory.Total)},
		BusID:       string(d.BusID),
	}
	if d.Power.Realtime != nil {
		chip.RealtimePower = NormalizePower(string(*d.Power.Realtime))
	}
	return chip
}

func orUnknownType(t string) string {
	if strings.TrimSpace(t) == "" {
		return base.UnknownType
	}
	return t
}
