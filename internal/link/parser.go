package link

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire format constants.
const (
	DefaultProtocolID = "WandererCoverV4"
	Separator         = 'A'
	Terminator        = '\n'

	// FieldCount is the number of positional fields after the identifier.
	FieldCount = 8

	maxFirmwareLen = 15
)

// ParseErrorKind classifies a ParseError.
type ParseErrorKind int

const (
	// KindIdentifier: first token is not the protocol identifier.
	KindIdentifier ParseErrorKind = iota
	// KindFieldCount: fewer than FieldCount fields followed the identifier.
	KindFieldCount
	// KindField: individual fields were malformed and skipped.
	KindField
)

// ParseError describes a rejected message or rejected fields.
type ParseError struct {
	Kind   ParseErrorKind
	Line   string
	Got    int      // fields present, for KindFieldCount
	Fields []string // names of skipped fields, for KindField
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindIdentifier:
		return fmt.Sprintf("unknown protocol identifier in %q", e.Line)
	case KindFieldCount:
		return fmt.Sprintf("short message: %d of %d fields in %q", e.Got, FieldCount, e.Line)
	case KindField:
		return fmt.Sprintf("skipped malformed fields %s in %q", strings.Join(e.Fields, ","), e.Line)
	}
	return fmt.Sprintf("parse error in %q", e.Line)
}

// Discarded reports whether the whole message was dropped.
func (e *ParseError) Discarded() bool {
	return e.Kind != KindField
}

// Tokenize splits a line on runs of Separator; empty tokens are dropped.
func Tokenize(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool { return r == Separator })
}

type field struct {
	name  string
	apply func(r *Record, tok string) error
}

var fields = [FieldCount]field{
	{"firmware", func(r *Record, tok string) error {
		if len(tok) > maxFirmwareLen {
			tok = tok[:maxFirmwareLen]
		}
		r.Firmware = tok
		return nil
	}},
	{"close_angle", floatField(func(r *Record) *float64 { return &r.CloseAngle })},
	{"open_angle", floatField(func(r *Record) *float64 { return &r.OpenAngle })},
	{"current_angle", floatField(func(r *Record) *float64 { return &r.CurrentAngle })},
	{"input_voltage", floatField(func(r *Record) *float64 { return &r.InputVoltage })},
	{"brightness", func(r *Record, tok string) error {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return err
		}
		if v < 0 || v > 255 {
			return fmt.Errorf("brightness %d out of range", v)
		}
		r.Brightness = v
		return nil
	}},
	{"heater_level", func(r *Record, tok string) error {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return err
		}
		h, err := ParseHeaterLevel(v)
		if err != nil {
			return err
		}
		r.Heater = h
		return nil
	}},
	{"external_enabled", func(r *Record, tok string) error {
		switch tok {
		case "0":
			r.ExternalControl = false
		case "1":
			r.ExternalControl = true
		default:
			return fmt.Errorf("flag %q not 0/1", tok)
		}
		return nil
	}},
}

func floatField(ptr func(*Record) *float64) func(*Record, string) error {
	return func(r *Record, tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return err
		}
		*ptr(r) = v
		return nil
	}
}

// Parser decodes status lines for one protocol identifier.
type Parser struct {
	ProtocolID string
}

// NewParser returns a parser for id (DefaultProtocolID when empty).
func NewParser(id string) Parser {
	if id == "" {
		id = DefaultProtocolID
	}
	return Parser{ProtocolID: id}
}

// Parse applies line on top of prev and returns the result.
//
// A line with the wrong identifier or fewer than FieldCount fields is
// discarded: prev is returned unchanged with a *ParseError. Otherwise
// every well-formed field is applied; malformed fields keep their prev
// value and are listed in a KindField *ParseError. Tokens after the last
// field are ignored.
func (p Parser) Parse(line string, prev Record) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	toks := Tokenize(line)

	if len(toks) == 0 || toks[0] != p.ProtocolID {
		return prev, &ParseError{Kind: KindIdentifier, Line: line}
	}
	toks = toks[1:]
	if len(toks) < FieldCount {
		return prev, &ParseError{Kind: KindFieldCount, Line: line, Got: len(toks)}
	}

	rec := prev
	var bad []string
	for i, f := range fields {
		if err := f.apply(&rec, toks[i]); err != nil {
			bad = append(bad, f.name)
		}
	}
	if len(bad) > 0 {
		return rec, &ParseError{Kind: KindField, Line: line, Fields: bad}
	}
	return rec, nil
}
