package npu

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/wmc1992/npustat/internal/npu/base"
)

const (
	npuSmiInfoCmd = "npu-smi info"

	// DefaultTableVersion selects the parser used for unknown versions.
	DefaultTableVersion = "default"
)

// the first version is npu-smi's own, the second the driver's
var tableVersionPattern = regexp.MustCompile(`\| npu-smi ([0-9a-z.]{2,20}?) Version: [0-9a-z.]{2,20}? \|`)

// TableParserFactory builds a parser for one npu-smi layout.
type TableParserFactory func(version string, types *CardTypeCache) TableParser

func newTableParserV1(version string, types *CardTypeCache) TableParser {
	return &TableParserV1{Version: version, Types: types}
}

var (
	tableParsersMu sync.RWMutex
	tableParsers   = map[string]TableParserFactory{
		"21.0.3.1": newTableParserV1,

		DefaultTableVersion: newTableParserV1,
	}
)

// RegisterTableParser adds or replaces the parser for an npu-smi version.
func RegisterTableParser(version string, f TableParserFactory) {
	tableParsersMu.Lock()
	defer tableParsersMu.Unlock()
	tableParsers[version] = f
}

func tableParserFor(version string) TableParserFactory {
	tableParsersMu.RLock()
	defer tableParsersMu.RUnlock()
	if f, ok := tableParsers[version]; ok {
		return f
	}
	return tableParsers[DefaultTableVersion]
}

// NpuSmi reads card status from the "npu-smi info" table. It has no realtime
// power: chips carry their rated power and card power stays empty.
type NpuSmi struct {
	Types *CardTypeCache
}

func NewNpuSmi(types *CardTypeCache) *NpuSmi {
	if types == nil {
		types = NewCardTypeCache()
	}
	return &NpuSmi{Types: types}
}

func (p *NpuSmi) Name() string {
	return "npu-smi"
}

func (p *NpuSmi) RealtimePower() bool {
	return false
}

func (p *NpuSmi) Detect(ctx context.Context, runCmd base.RunCmdFunc) bool {
	out, err := runCmd(ctx, npuSmiInfoCmd)
	return err == nil && strings.TrimSpace(out) != ""
}

func (p *NpuSmi) Query(ctx context.Context, runCmd base.RunCmdFunc) (string, []base.Card, error) {
	table, err := runCmd(ctx, npuSmiInfoCmd)
	if err != nil {
		return "", nil, err
	}

	version, ok := TableVersion(table)
	parser := tableParserFor(version)(version, p.Types)

	cards, err := parser.Parse(ctx, runCmd, table)
	if err != nil {
		return "", nil, err
	}

	label := "??"
	if ok {
		label = version
	}
	return "npu-smi version : " + label, cards, nil
}

// TableVersion extracts the npu-smi version from the table header. It only
// succeeds when exactly one line carries a version.
func TableVersion(table string) (string, bool) {
	var found []string
	for _, line := range strings.Split(table, "\n") {
		if m := tableVersionPattern.FindStringSubmatch(collapseSpaces(line)); m != nil {
			found = append(found, m[1])
		}
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}
