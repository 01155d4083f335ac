package stat

import (
	"encoding/json"
	"io"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/wmc1992/npustat/internal/npu/base"
)

// Collection is the result of one query: every card on a host plus the
// context it was taken in. It is not modified after New.
type Collection struct {
	Hostname  string
	QueryTime time.Time
	Version   string
	Backend   string
	ShowPower bool
	Cards     []base.Card
}

type Option func(*Collection)

// WithBackend records which tool produced the cards.
func WithBackend(name string) Option {
	return func(c *Collection) { c.Backend = name }
}

// WithPower controls whether card power is part of the projections.
func WithPower(show bool) Option {
	return func(c *Collection) { c.ShowPower = show }
}

func WithQueryTime(t time.Time) Option {
	return func(c *Collection) { c.QueryTime = t }
}

func New(hostname, version string, cards []base.Card, opts ...Option) *Collection {
	if cards == nil {
		cards = []base.Card{}
	}
	c := &Collection{
		Hostname:  hostname,
		QueryTime: time.Now(),
		Version:   version,
		ShowPower: true,
		Cards:     cards,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collection) Len() int { return len(c.Cards) }

// ChipCount is the number of chips across all cards.
func (c *Collection) ChipCount() int {
	n := 0
	for _, card := range c.Cards {
		n += len(card.Chips)
	}
	return n
}

type Document struct {
	Hostname   string         `json:"hostname"`
	QueryTime  string         `json:"query_time"`
	Version    string         `json:"version"`
	AtlasCards []CardDocument `json:"atlas_cards"`
}

type CardDocument struct {
	CardID string      `json:"card_id"`
	Type   string      `json:"type"`
	Power  *string     `json:"power,omitempty"`
	Chips  []base.Chip `json:"chips"`
}

// JSON returns the structured projection. Card power is present only when
// the collection shows power; a card without a reading reports "??".
func (c *Collection) JSON() Document {
	doc := Document{
		Hostname:   c.Hostname,
		QueryTime:  c.QueryTime.Format(time.RFC3339),
		Version:    c.Version,
		AtlasCards: make([]CardDocument, 0, len(c.Cards)),
	}
	for _, card := range c.Cards {
		cd := CardDocument{
			CardID: card.CardID,
			Type:   card.Type,
			Chips:  card.Chips,
		}
		if cd.Chips == nil {
			cd.Chips = []base.Chip{}
		}
		if c.ShowPower {
			power := card.Power
			if power == "" {
				power = base.UnknownType
			}
			cd.Power = &power
		}
		doc.AtlasCards = append(doc.AtlasCards, cd)
	}
	return doc
}

// WriteJSON encodes the JSON projection with a four space indent.
func (c *Collection) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(c.JSON())
}

// Layout holds the column widths shared by every line of the text view.
type Layout struct {
	CardTypeWidth int
	ChipNameWidth int
	DeviceIDWidth int
}

func (c *Collection) Layout() Layout {
	var l Layout
	for _, card := range c.Cards {
		l.CardTypeWidth = max(l.CardTypeWidth, runewidth.StringWidth(card.Type))
		for _, chip := range card.Chips {
			l.ChipNameWidth = max(l.ChipNameWidth, runewidth.StringWidth(chip.ChipName))
			l.DeviceIDWidth = max(l.DeviceIDWidth, runewidth.StringWidth(chip.DeviceID))
		}
	}
	return l
}
