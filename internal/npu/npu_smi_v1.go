package npu

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/wmc1992/npustat/internal/npu/base"
)

// Layout of npu-smi 21.0.3.1. Every chip takes two table lines:
//
//	| npu-smi 21.0.3.1     Version: 21.0.3.1            |
//	+-------------------+-----------------+----------------------------+
//	| NPU     Name      | Health          | Power(W)    Temp(C)        |
//	| Chip    Device    | Bus-Id          | AICore(%)   Memory-Usage(MB)|
//	+===================+=================+============================+
//	| 1       310       | OK              | 12.8        49             |  line 1
//	| 0       0         | 0000:01:00.0    | 0           2621 / 8192    |  line 2
//	+-------------------+-----------------+----------------------------+
var (
	// card id, chip name digits, health, rated power, temperature
	lineOnePattern = regexp.MustCompile(`(\d{1,2}) (\d{1,5}) \| ([a-zA-Z]{2,10}) \| ([\d.]{1,10}) (\d{1,3})`)

	// chip id, device id, bus id, ai core, memory used / total
	lineTwoPattern = regexp.MustCompile(`(\d{1,2}) (\d{1,2}) \| ([\d:.]{5,20}) \| (\d{1,3}) (\d{1,6})[ ]*/[ ]*(\d{1,6})`)

	multiSpace = regexp.MustCompile(`[ ]{2,}`)
)

// TableParser turns the text of "npu-smi info" into cards.
type TableParser interface {
	Parse(ctx context.Context, runCmd base.RunCmdFunc, table string) ([]base.Card, error)
}

// TableParserV1 understands the 21.0.3.1 layout. Card types come from the
// cache, which issues "npu-smi info -t product" for unseen cards.
type TableParserV1 struct {
	Version string
	Types   *CardTypeCache
}

type lineOne struct {
	cardID, chipName, health, power, temp string
}

type lineTwo struct {
	chipID, deviceID, busID, aiCore, memUsed, memTotal string
}

type tableRecord struct {
	one lineOne
	two lineTwo
}

func collapseSpaces(line string) string {
	return multiSpace.ReplaceAllString(line, " ")
}

// pairRecords classifies the table lines and pairs each first line with the
// second line that follows it.
func pairRecords(table string) ([]tableRecord, error) {
	type classified struct {
		lineNo int
		text   string
		first  bool
	}

	var (
		seq  []classified
		ones []lineOne
		twos []lineTwo
	)

	for i, raw := range strings.Split(table, "\n") {
		line := collapseSpaces(raw)
		m1 := lineOnePattern.FindStringSubmatch(line)
		m2 := lineTwoPattern.FindStringSubmatch(line)

		if m1 != nil && m2 != nil {
			return nil, &ParseError{Kind: KindAmbiguousLine, Line: i + 1, Text: line,
				Detail: "line matches both record patterns"}
		}
		if m1 != nil {
			ones = append(ones, lineOne{cardID: m1[1], chipName: m1[2], health: m1[3], power: m1[4], temp: m1[5]})
			seq = append(seq, classified{lineNo: i + 1, text: line, first: true})
		}
		if m2 != nil {
			twos = append(twos, lineTwo{chipID: m2[1], deviceID: m2[2], busID: m2[3], aiCore: m2[4], memUsed: m2[5], memTotal: m2[6]})
			seq = append(seq, classified{lineNo: i + 1, text: line})
		}
	}

	if len(ones) != len(twos) {
		return nil, &ParseError{Kind: KindLineCountMismatch,
			Detail: fmt.Sprintf("%d first lines but %d second lines", len(ones), len(twos))}
	}

	for i, c := range seq {
		if c.first != (i%2 == 0) {
			return nil, &ParseError{Kind: KindOutOfOrder, Line: c.lineNo, Text: c.text,
				Detail: "record lines must alternate first, second"}
		}
	}

	records := make([]tableRecord, len(ones))
	for i := range ones {
		records[i] = tableRecord{one: ones[i], two: twos[i]}
	}
	return records, nil
}

func (p *TableParserV1) Parse(ctx context.Context, runCmd base.RunCmdFunc, table string) ([]base.Card, error) {
	records, err := pairRecords(table)
	if err != nil {
		return nil, err
	}

	var cards []base.Card
	seen := make(map[string]bool)
	for _, rec := range records {
		id := rec.one.cardID
		if n := len(cards); n == 0 || cards[n-1].CardID != id {
			if seen[id] {
				return nil, &ParseError{Kind: KindSplitCard,
					Detail: fmt.Sprintf("card %s appears again after card %s", id, cards[n-1].CardID)}
			}
			seen[id] = true
			cards = append(cards, base.Card{CardID: id})
		}
		card := &cards[len(cards)-1]
		card.Chips = append(card.Chips, rec.toChip())
	}

	for i := range cards {
		cards[i].Type = base.UnknownType
		if p.Types != nil {
			if t := p.Types.Lookup(ctx, runCmd, p.Version, cards[i].CardID); t != "" {
				cards[i].Type = t
			}
		}
	}

	if cards == nil {
		cards = []base.Card{}
	}
	return cards, nil
}

func (r tableRecord) toChip() base.Chip {
	return base.Chip{
		ChipID:      r.two.chipID,
		DeviceID:    r.two.deviceID,
		Health:      base.ParseHealth(r.one.health),
		ChipName:    "Ascend " + r.one.chipName,
		Temperature: NormalizeTemperature(r.one.temp),
		AICoreUsage: NormalizePercent(r.two.aiCore),
		MemoryUsed:  base.Quantity{Amount: r.two.memUsed, Unit: "MB"},
		MemoryTotal: base.Quantity{Amount: r.two.memTotal, Unit: "MB"},
		BusID:       r.two.busID,
		Power:       NormalizePower(r.one.power),
	}
}
