package base

import (
	"context"
	"strings"
)

// a single accelerator die on a card, in vendor-neutral terms
type Chip struct {
	ChipID      string   `json:"chip_id"`
	DeviceID    string   `json:"device_id"`
	Health      Health   `json:"health"`
	ChipName    string   `json:"chip_name"`
	Temperature Reading  `json:"temperature"`
	AICoreUsage Reading  `json:"ai_core_usage"`
	MemoryUsed  Quantity `json:"memory_used"`
	MemoryTotal Quantity `json:"memory_total"`
	BusID       string   `json:"bus_id,omitempty"`

	// Power is the rated power from the table tool, RealtimePower the live
	// reading from the JSON tool. At most one is set.
	Power         string `json:"power,omitempty"`
	RealtimePower string `json:"realtime_power,omitempty"`
}

// MemoryConsistent reports false only when both memory amounts are numeric
// and used exceeds total.
func (c Chip) MemoryConsistent() bool {
	used, ok := c.MemoryUsed.Float()
	if !ok {
		return true
	}
	total, ok := c.MemoryTotal.Float()
	if !ok {
		return true
	}
	return used <= total
}

// a physical accelerator board
type Card struct {
	CardID string `json:"card_id"`
	Type   string `json:"type"`
	Power  string `json:"power,omitempty"`
	Chips  []Chip `json:"chips"`
}

// UnknownType is shown when a card's product type cannot be resolved.
const UnknownType = "??"

type Health string

const (
	HealthOK       Health = "OK"
	HealthWarning  Health = "Warning"
	HealthAlarm    Health = "Alarm"
	HealthCritical Health = "Critical"
	HealthUnknown  Health = "Unknown"
)

// ParseHealth maps the tools' health words onto the fixed set. Matching is
// case-insensitive; anything else is Unknown.
func ParseHealth(raw string) Health {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ok":
		return HealthOK
	case "warning":
		return HealthWarning
	case "alarm":
		return HealthAlarm
	case "critical":
		return HealthCritical
	default:
		return HealthUnknown
	}
}

// RunCmdFunc runs one tool command line and returns its standard output.
type RunCmdFunc func(ctx context.Context, cmd string) (string, error)

type Backend interface {
	// returns the tool name (e.g., "ascend-dmi", "npu-smi")
	Name() string

	// returns true if the tool answers on the host
	Detect(ctx context.Context, runCmd RunCmdFunc) bool

	// returns the tool version line and the cards in discovery order
	Query(ctx context.Context, runCmd RunCmdFunc) (string, []Card, error)

	// reports whether card power is a live measurement
	RealtimePower() bool
}
