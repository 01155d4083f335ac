package base

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Reading is a measurement that is either a known integer or the tool's
// original text for an unavailable value ("--", "N/A", ...).
type Reading struct {
	value int
	raw   string
	known bool
}

func Known(v int) Reading {
	return Reading{value: v, raw: strconv.Itoa(v), known: true}
}

func Unknown(raw string) Reading {
	return Reading{raw: raw}
}

// Value returns the integer and whether it is known.
func (r Reading) Value() (int, bool) {
	return r.value, r.known
}

func (r Reading) Known() bool { return r.known }

func (r Reading) String() string {
	return r.raw
}

// MarshalJSON keeps the tools' shape: numbers for known values, the original
// string otherwise.
func (r Reading) MarshalJSON() ([]byte, error) {
	if r.known {
		return []byte(strconv.Itoa(r.value)), nil
	}
	return json.Marshal(r.raw)
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*r = Known(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = Unknown(s)
	return nil
}

// Quantity is an amount as the tool printed it plus an optional unit.
type Quantity struct {
	Amount string
	Unit   string
}

func (q Quantity) String() string {
	if q.Unit == "" {
		return q.Amount
	}
	return q.Amount + " " + q.Unit
}

func (q Quantity) Float() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(q.Amount), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MarshalJSON emits a bare number for unit-less numeric amounts and the
// "amount unit" string otherwise.
func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.Unit == "" {
		if _, ok := q.Float(); ok {
			return []byte(strings.TrimSpace(q.Amount)), nil
		}
	}
	return json.Marshal(q.String())
}
