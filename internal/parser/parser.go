// Package parser decodes raw repair-order event documents into typed events.
// Parsing is a pure transformation: a document either yields a fully
// validated Event or a *ParseError describing why the whole document was
// rejected. No partial events are ever produced.
package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the exact timestamp format event documents carry.
// No timezone; anything beyond this shape is a parse failure.
const TimestampLayout = "2006-01-02T15:04:05"

// Status is the closed set of states a repair-order report may carry.
type Status string

const (
	StatusCompleted  Status = "Completed"
	StatusInProgress Status = "In Progress"
	StatusReceived   Status = "Received"
	StatusReopened   Status = "Reopened"
)

// ParseStatus maps a raw status string onto the closed Status set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusCompleted, StatusInProgress, StatusReceived, StatusReopened:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadStatus, s)
}

// Part is one consumed part entry from the repair_parts block.
type Part struct {
	Name     string
	Quantity int
}

// Event is one validated repair-order report.
type Event struct {
	OrderID    int
	Timestamp  time.Time
	Status     Status
	Cost       float64
	Technician string
	Parts      []Part
}

// Failure kinds. ParseError wraps one of these together with the field that
// triggered it.
var (
	ErrMissingField = errors.New("missing required field")
	ErrBadNumber    = errors.New("invalid numeric value")
	ErrBadTimestamp = errors.New("invalid timestamp")
	ErrBadStatus    = errors.New("unknown status")
	ErrBadParts     = errors.New("empty or malformed parts block")
)

// ParseError reports why a document was rejected. It is always recoverable:
// the caller logs it, skips the document, and continues with the next one.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string { return fmt.Sprintf("field %s: %v", e.Field, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

func badField(field string, err error) *ParseError {
	return &ParseError{Field: field, Err: err}
}

// Wire shape of one event document. The struct tags are the single place tag
// and attribute names are spelled; a renamed field is a compile-visible edit
// here, not a silent lookup miss downstream.
type eventDoc struct {
	XMLName  xml.Name `xml:"event"`
	OrderID  string   `xml:"order_id"`
	DateTime string   `xml:"date_time"`
	Status   string   `xml:"status"`
	Cost     string   `xml:"cost"`
	Details  struct {
		Technician string    `xml:"technician"`
		Parts      []partDoc `xml:"repair_parts>part"`
	} `xml:"repair_details"`
}

type partDoc struct {
	Name     string `xml:"name,attr"`
	Quantity string `xml:"quantity,attr"`
}

// Parse decodes and validates a single event document.
//
// The repair_parts block decodes into a slice whether the document carries
// one part element or many, so downstream code never sees a shape
// difference for the single-part case.
func Parse(raw []byte) (Event, error) {
	var doc eventDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return Event{}, badField("event", err)
	}

	orderID, err := parseInt("order_id", doc.OrderID)
	if err != nil {
		return Event{}, err
	}

	ts, err := parseTimestamp(doc.DateTime)
	if err != nil {
		return Event{}, err
	}

	status, err := parseStatusField(doc.Status)
	if err != nil {
		return Event{}, err
	}

	cost, err := parseCost(doc.Cost)
	if err != nil {
		return Event{}, err
	}

	technician := strings.TrimSpace(doc.Details.Technician)
	if technician == "" {
		return Event{}, badField("technician", ErrMissingField)
	}

	parts, err := parseParts(doc.Details.Parts)
	if err != nil {
		return Event{}, err
	}

	return Event{
		OrderID:    orderID,
		Timestamp:  ts,
		Status:     status,
		Cost:       cost,
		Technician: technician,
		Parts:      parts,
	}, nil
}

func parseInt(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, badField(field, ErrMissingField)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badField(field, fmt.Errorf("%w: %q", ErrBadNumber, raw))
	}
	return n, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, badField("date_time", ErrMissingField)
	}
	ts, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return time.Time{}, badField("date_time", fmt.Errorf("%w: %q", ErrBadTimestamp, raw))
	}
	return ts, nil
}

func parseStatusField(raw string) (Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", badField("status", ErrMissingField)
	}
	status, err := ParseStatus(raw)
	if err != nil {
		return "", badField("status", err)
	}
	return status, nil
}

func parseCost(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, badField("cost", ErrMissingField)
	}
	cost, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badField("cost", fmt.Errorf("%w: %q", ErrBadNumber, raw))
	}
	if cost < 0 {
		return 0, badField("cost", fmt.Errorf("%w: negative amount %q", ErrBadNumber, raw))
	}
	return cost, nil
}

// parseParts validates the decoded part entries. Part names must be unique
// within a document because (order_id, part_name) is the detail table's key.
func parseParts(docs []partDoc) ([]Part, error) {
	if len(docs) == 0 {
		return nil, badField("repair_parts", ErrBadParts)
	}
	parts := make([]Part, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, badField("part.name", fmt.Errorf("%w: part without a name", ErrBadParts))
		}
		if seen[name] {
			return nil, badField("part.name", fmt.Errorf("%w: duplicate part %q", ErrBadParts, name))
		}
		seen[name] = true
		qty, err := strconv.Atoi(strings.TrimSpace(d.Quantity))
		if err != nil {
			return nil, badField("part.quantity", fmt.Errorf("%w: %q", ErrBadParts, d.Quantity))
		}
		if qty <= 0 {
			return nil, badField("part.quantity", fmt.Errorf("%w: quantity %d", ErrBadParts, qty))
		}
		parts = append(parts, Part{Name: name, Quantity: qty})
	}
	return parts, nil
}
