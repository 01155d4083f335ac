package npu

import (
	"errors"
	"fmt"
)

// ErrNoBackend is returned by Select when neither tool answers.
var ErrNoBackend = errors.New("no usable npu tool found: npu-smi info returned nothing, check that the toolkit is installed and on PATH")

type ParseErrorKind int

const (
	// a line matched both record patterns
	KindAmbiguousLine ParseErrorKind = iota + 1
	// the two record patterns matched a different number of lines
	KindLineCountMismatch
	// record lines did not strictly alternate
	KindOutOfOrder
	// a card id reappeared after another card
	KindSplitCard
)

func (k ParseErrorKind) String() string {
	switch k {
	case KindAmbiguousLine:
		return "ambiguous line"
	case KindLineCountMismatch:
		return "line count mismatch"
	case KindOutOfOrder:
		return "out-of-order record lines"
	case KindSplitCard:
		return "card split across the table"
	default:
		return "unknown"
	}
}

// ParseError is a structural failure of the npu-smi table. It is fatal for
// the query that produced it.
type ParseError struct {
	Kind   ParseErrorKind
	Line   int // 1-based, 0 when not tied to one line
	Text   string
	Detail string
}

func (e *ParseError) Error() string {
	msg := "failed to parse npu-smi info output: " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d: %q)", e.Line, e.Text)
	}
	return msg
}

// IsParseError reports whether err is, or wraps, a ParseError of kind k.
func IsParseError(err error, k ParseErrorKind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == k
}
