package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/wmc1992/npustat/internal/npu/base"
	"github.com/wmc1992/npustat/internal/stat"
)

const (
	hotTemperature  = 60
	busyAICore      = 50
	defaultRuleLen  = 66
	headerTimestamp = "Mon Jan _2 15:04:05 2006"
	missing         = "??"
)

type RenderOptions struct {
	NoHeader bool
	NoTitle  bool
	Compact  bool
}

// Renderer turns a Collection into the text status view.
type Renderer struct {
	Styles  Styles
	Options RenderOptions
}

func NewTextRenderer(r *lipgloss.Renderer, opts RenderOptions) *Renderer {
	return &Renderer{Styles: NewStyles(r), Options: opts}
}

func (r *Renderer) Render(c *stat.Collection) string {
	var b strings.Builder
	layout := c.Layout()

	if !r.Options.NoHeader {
		b.WriteString(r.header(c, layout))
		b.WriteString("\n")
	}
	if !r.Options.NoTitle {
		r.writeTitle(&b, c, layout)
	}
	for _, card := range c.Cards {
		b.WriteString(r.cardLine(card, layout, c.ShowPower))
		b.WriteString("\n")
		for _, chip := range card.Chips {
			b.WriteString(r.chipLine(chip, layout))
			b.WriteString("\n")
		}
		if !r.Options.Compact {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (r *Renderer) header(c *stat.Collection, l stat.Layout) string {
	s := r.Styles
	// "[?]" widens the card type column by three
	host := s.Hostname.Render(padRight(c.Hostname, l.CardTypeWidth+3))
	line := host + "  " + c.QueryTime.Format(headerTimestamp) + "  " + s.Version.Render(c.Version)
	return strings.TrimRight(line, " ")
}

func (r *Renderer) writeTitle(b *strings.Builder, c *stat.Collection, l stat.Layout) {
	s := r.Styles
	rule := strings.Repeat("=", r.ruleLength(c, l))

	if !r.Options.Compact {
		b.WriteString(rule + "\n")
	}

	card := s.ID.Render("[Card ID]") + ", " + s.Title.Render("Card Type")
	if c.ShowPower {
		card += ", " + s.Power.Render("Power")
	}
	b.WriteString(card + "\n")

	chip := s.ID.Render("[Chip ID]") + " " + s.ID.Render("[Device ID]") + " " +
		s.HealthOK.Render("Health") + ", " + s.ChipName.Render("Chip Name") + " | " +
		s.Temp.Render("Temp") + ", " + s.AICore.Render("AICore") + ", " + s.MemUsed.Render("Memory")
	b.WriteString(chip + "\n")

	if !r.Options.Compact {
		b.WriteString(rule + "\n\n")
	}
}

func (r *Renderer) cardLine(card base.Card, l stat.Layout, showPower bool) string {
	s := r.Styles
	line := s.ID.Render("["+orMissing(card.CardID)+"]") + ", " +
		s.CardType.Render(padRight(orMissing(card.Type), l.CardTypeWidth))
	if showPower {
		line += ", " + s.Power.Render(padLeft(orMissing(card.Power), 3))
	}
	return line
}

func (r *Renderer) chipLine(chip base.Chip, l stat.Layout) string {
	s := r.Styles

	health := s.HealthBad
	if chip.Health == base.HealthOK {
		health = s.HealthOK
	}

	return s.ID.Render("["+orMissing(chip.ChipID)+"]") + " " +
		s.ID.Render("["+padLeft(orMissing(chip.DeviceID), l.DeviceIDWidth)+"]") + " " +
		health.Render(orMissing(string(chip.Health))) + ", " +
		s.ChipName.Render(padRight(orMissing(chip.ChipName), l.ChipNameWidth)) + " |" +
		r.reading(chip.Temperature, hotTemperature, s.Temp, s.TempHot, "°C") + ", " +
		r.reading(chip.AICoreUsage, busyAICore, s.AICore, s.AICoreBusy, " %") + ", " +
		s.MemUsed.Render(padLeft(orMissing(chip.MemoryUsed.String()), 5)) + " / " +
		s.MemTotal.Render(padLeft(orMissing(chip.MemoryTotal.String()), 5))
}

// reading renders a value right-aligned to three columns, switching to the
// strong style at threshold and dimming values the tool could not report.
func (r *Renderer) reading(v base.Reading, threshold int, normal, strong lipgloss.Style, unit string) string {
	text := padLeft(orMissing(v.String()), 3) + unit
	n, ok := v.Value()
	switch {
	case !ok:
		return r.Styles.Unknown.Render(text)
	case n >= threshold:
		return strong.Render(text)
	default:
		return normal.Render(text)
	}
}

// ruleLength is the printed width of the first chip line, so the rules line
// up with the table.
func (r *Renderer) ruleLength(c *stat.Collection, l stat.Layout) int {
	if len(c.Cards) == 0 || len(c.Cards[0].Chips) == 0 {
		return defaultRuleLen
	}
	return lipgloss.Width(r.chipLine(c.Cards[0].Chips[0], l))
}

// RenderError is shown in place of the table when a query fails.
func (r *Renderer) RenderError(err error, at time.Time) string {
	return r.Styles.Error.Render("query failed at "+at.Format("15:04:05")+": ") + err.Error() + "\n"
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missing
	}
	return s
}

func padRight(s string, w int) string {
	return runewidth.FillRight(s, w)
}

func padLeft(s string, w int) string {
	return runewidth.FillLeft(s, w)
}
