package output

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// EventType distinguishes pushed client messages.
type EventType string

const (
	EventOutput  EventType = "chunk_output"
	EventListing EventType = "chunk_outputs"
)

// Event is a client message announcing new or replayed outputs of a unit. Output is
// set on EventOutput, Outputs on EventListing.
type Event struct {
	Type       EventType
	UnitID     string
	DocumentID string
	Output     *Output
	Outputs    []Output
	RequestID  string
}

type outputMessage struct {
	Type       EventType `json:"type"`
	UnitID     string    `json:"chunk_id"`
	DocumentID string    `json:"doc_id"`
	Output     *Output   `json:"chunk_output"`
	RequestID  string    `json:"request_id"`
}

type listingMessage struct {
	Type       EventType `json:"type"`
	UnitID     string    `json:"chunk_id"`
	DocumentID string    `json:"doc_id"`
	Outputs    []Output  `json:"chunk_outputs"`
	RequestID  string    `json:"request_id"`
}

// MarshalJSON writes the wire message for the event type. Listings always carry
// chunk_outputs, even when no output remains.
func (ev Event) MarshalJSON() ([]byte, error) {
	if ev.Type == EventListing {
		outputs := ev.Outputs
		if outputs == nil {
			outputs = []Output{}
		}
		return json.Marshal(listingMessage{
			Type:       ev.Type,
			UnitID:     ev.UnitID,
			DocumentID: ev.DocumentID,
			Outputs:    outputs,
			RequestID:  ev.RequestID,
		})
	}
	return json.Marshal(outputMessage{
		Type:       ev.Type,
		UnitID:     ev.UnitID,
		DocumentID: ev.DocumentID,
		Output:     ev.Output,
		RequestID:  ev.RequestID,
	})
}

// Sink delivers events to listening clients.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Publisher serializes outputs and hands them to a Sink.
type Publisher struct {
	serializer *Serializer
	sink       Sink
	logger     *zap.Logger
}

func NewPublisher(serializer *Serializer, sink Sink, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{serializer: serializer, sink: sink, logger: logger}
}

// PublishOutput pushes one freshly written output. Serialization failures are logged
// and nothing is sent.
func (p *Publisher) PublishOutput(ctx context.Context, docID, unitID, ctxID, file string) error {
	out, err := p.serializer.SerializeOutput(docID, unitID, ctxID, file)
	if err != nil {
		p.logger.Warn("serialize output failed",
			zap.String("doc_id", docID),
			zap.String("unit_id", unitID),
			zap.String("file", file),
			zap.Error(err))
		return nil
	}
	return p.publish(ctx, Event{
		Type:       EventOutput,
		UnitID:     unitID,
		DocumentID: docID,
		Output:     &out,
	})
}

// PublishListing pushes every output of a unit. An empty listing is still sent so the
// client can drop state for units that no longer have output.
func (p *Publisher) PublishListing(ctx context.Context, docPath, docID, unitID, ctxID, requestID string) error {
	_, outputs := p.serializer.SerializeDirectory(docPath, docID, unitID, ctxID)
	if outputs == nil {
		outputs = []Output{}
	}
	return p.publish(ctx, Event{
		Type:       EventListing,
		UnitID:     unitID,
		DocumentID: docID,
		Outputs:    outputs,
		RequestID:  requestID,
	})
}

func (p *Publisher) publish(ctx context.Context, ev Event) error {
	if p.sink == nil {
		return nil
	}
	if err := p.sink.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
