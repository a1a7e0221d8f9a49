package camelshdf5

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DocumentType names the documents of a run's lifecycle.
type DocumentType string

// Document types routed by the Serializer.
const (
	DocStart      DocumentType = "start"
	DocDescriptor DocumentType = "descriptor"
	DocEvent      DocumentType = "event"
	DocEventPage  DocumentType = "event_page"
	DocStop       DocumentType = "stop"
)

// Document is the (name, document) envelope emitted by the host
// acquisition framework, one per record of the stream.
type Document struct {
	Name DocumentType    `json:"name"`
	Doc  json.RawMessage `json:"doc"`
}

// DeviceKind splits instrument devices into sensor and output categories.
type DeviceKind string

// Recognised device kinds. Devices default to sensors.
const (
	DeviceSensor DeviceKind = "sensor"
	DeviceOutput DeviceKind = "output"
)

// DeviceInfo describes one instrument device contributing channels to the
// run: its driver class, optional identification string, category and
// fabrication/calibration settings.
type DeviceInfo struct {
	ClassName string         `json:"device_class_name"`
	IDN       string         `json:"idn,omitempty"`
	Kind      DeviceKind     `json:"kind,omitempty"`
	Settings  map[string]any `json:"settings,omitempty"`
}

// RunStart opens a run. One start document maps to one numbered entry in
// the output file.
type RunStart struct {
	UID         string                `json:"uid"`
	Time        float64               `json:"time"`
	SessionName string                `json:"session_name,omitempty"`
	Description string                `json:"description,omitempty"`
	Identifier  string                `json:"identifier,omitempty"`
	PlanName    string                `json:"plan_name,omitempty"`
	User        map[string]any        `json:"user,omitempty"`
	Sample      map[string]any        `json:"sample,omitempty"`
	Versions    map[string]any        `json:"versions,omitempty"`
	Devices     map[string]DeviceInfo `json:"devices,omitempty"`
	Extra       map[string]any        `json:"extra,omitempty"`
}

// runStartFields lists the JSON keys RunStart maps to typed fields.
// Everything else in a start document lands in Extra.
var runStartFields = []string{
	"uid", "time", "session_name", "description", "identifier",
	"plan_name", "user", "sample", "versions", "devices", "extra",
}

// UnmarshalJSON decodes the typed fields and keeps every unrecognised
// top-level key in Extra, so host-specific start metadata survives into
// the entry instead of being dropped.
func (r *RunStart) UnmarshalJSON(data []byte) error {
	type plain RunStart
	var typed plain
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}

	var residual map[string]any
	if err := json.Unmarshal(data, &residual); err != nil {
		return err
	}
	for _, key := range runStartFields {
		delete(residual, key)
	}

	*r = RunStart(typed)
	if len(residual) == 0 {
		return nil
	}
	if r.Extra == nil {
		r.Extra = make(map[string]any, len(residual))
	}
	for key, val := range residual {
		if _, taken := r.Extra[key]; !taken {
			r.Extra[key] = val
		}
	}
	return nil
}

// ChannelKey is the descriptor metadata for one measured channel.
type ChannelKey struct {
	Dtype  string  `json:"dtype,omitempty"`
	Units  string  `json:"units,omitempty"`
	Shape  []int   `json:"shape,omitempty"`
	MaxLen uint64  `json:"max_length,omitempty"`
	Device string  `json:"object_name,omitempty"`
	Source string  `json:"source,omitempty"`
	Prec   float64 `json:"precision,omitempty"`
}

// EventDescriptor declares a measurement stream and its channels. Axes
// and Signal are optional plotting hints from the host framework.
type EventDescriptor struct {
	UID        string                `json:"uid"`
	RunStart   string                `json:"run_start"`
	StreamName string                `json:"name"`
	DataKeys   map[string]ChannelKey `json:"data_keys"`
	Axes       []string              `json:"axes,omitempty"`
	Signal     string                `json:"signal,omitempty"`
}

// EventPage carries a batch of measured rows for one stream. Column
// slices in Data are row-aligned with Time.
type EventPage struct {
	Descriptor string           `json:"descriptor"`
	Time       []float64        `json:"time"`
	Data       map[string][]any `json:"data"`
}

// Event is a single measured row. The Serializer converts events into
// one-row pages before writing.
type Event struct {
	Descriptor string         `json:"descriptor"`
	Time       float64        `json:"time"`
	Data       map[string]any `json:"data"`
}

// page converts a single event into an equivalent one-row event page.
func (e *Event) page() *EventPage {
	p := &EventPage{
		Descriptor: e.Descriptor,
		Time:       []float64{e.Time},
		Data:       make(map[string][]any, len(e.Data)),
	}
	for key, val := range e.Data {
		p.Data[key] = []any{val}
	}
	return p
}

// RunStop closes a run.
type RunStop struct {
	RunStart   string  `json:"run_start"`
	Time       float64 `json:"time"`
	ExitStatus string  `json:"exit_status,omitempty"`
}

// NewRunStart returns a start document stamped with a fresh uid.
func NewRunStart(ts float64) *RunStart {
	return &RunStart{UID: uuid.NewString(), Time: ts}
}

// decode unmarshals the envelope payload into the typed document for its
// name. Unrecognised names are surfaced, not dropped.
func (d Document) decode() (any, error) {
	var target any
	switch d.Name {
	case DocStart:
		target = &RunStart{}
	case DocDescriptor:
		target = &EventDescriptor{}
	case DocEvent:
		target = &Event{}
	case DocEventPage:
		target = &EventPage{}
	case DocStop:
		target = &RunStop{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocument, d.Name)
	}
	if err := json.Unmarshal(d.Doc, target); err != nil {
		return nil, wrapErr(fmt.Sprintf("decode %s document", d.Name), err)
	}
	return target, nil
}
