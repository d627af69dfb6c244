package queue

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	eventdomain "github.com/smallbiznis/payledger/internal/event/domain"
	"gorm.io/datatypes"
)

// Envelope is the wire form of an event. Timestamp and EventDetails are
// older names for EventDate and Payload.
type Envelope struct {
	EventType                string          `json:"event_type"`
	ResourceType             string          `json:"resource_type"`
	ResourceExternalID       string          `json:"resource_external_id"`
	ParentResourceExternalID string          `json:"parent_resource_external_id,omitempty"`
	EventDate                string          `json:"event_date,omitempty"`
	Timestamp                string          `json:"timestamp,omitempty"`
	Payload                  json.RawMessage `json:"payload,omitempty"`
	EventDetails             json.RawMessage `json:"event_details,omitempty"`
}

// Decode turns a message body into an event. The dedup key is derived from
// the message id when the producer supplied one.
func Decode(msg Message) (*eventdomain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	rawDate := strings.TrimSpace(env.EventDate)
	if rawDate == "" {
		rawDate = strings.TrimSpace(env.Timestamp)
	}
	if rawDate == "" {
		return nil, fmt.Errorf("%w: event_date missing", ErrMalformedEnvelope)
	}
	eventDate, err := time.Parse(time.RFC3339Nano, rawDate)
	if err != nil {
		return nil, fmt.Errorf("%w: event_date: %v", ErrMalformedEnvelope, err)
	}

	payload := env.Payload
	if isEmptyJSON(payload) {
		payload = env.EventDetails
	}
	if isEmptyJSON(payload) {
		payload = json.RawMessage(`{}`)
	}

	event := &eventdomain.Event{
		ResourceType:       eventdomain.ResourceType(strings.TrimSpace(env.ResourceType)),
		ResourceExternalID: strings.TrimSpace(env.ResourceExternalID),
		EventType:          strings.TrimSpace(env.EventType),
		EventDate:          eventDate.UTC(),
		Payload:            datatypes.JSON(payload),
	}
	if parent := strings.TrimSpace(env.ParentResourceExternalID); parent != "" {
		event.ParentResourceExternalID = &parent
	}
	if id := strings.TrimSpace(msg.ID); id != "" {
		event.DedupKey = id
	}
	return event, nil
}

// MessageID derives a publish id from the envelope identity so republishing
// the same event yields the same dedup key. Bodies that do not decode get a
// fresh ulid and are rejected by the consumer.
func MessageID(body []byte) string {
	event, err := Decode(Message{Body: body})
	if err != nil {
		return ulid.Make().String()
	}
	return eventdomain.DedupKey("", event.ResourceExternalID, event.EventType, event.EventDate)
}

// Encode renders an event as an envelope body.
func Encode(event eventdomain.Event) ([]byte, error) {
	env := Envelope{
		EventType:          event.EventType,
		ResourceType:       string(event.ResourceType),
		ResourceExternalID: event.ResourceExternalID,
		EventDate:          event.EventDate.UTC().Format(time.RFC3339Nano),
		Payload:            json.RawMessage(event.Payload),
	}
	if event.ParentResourceExternalID != nil {
		env.ParentResourceExternalID = *event.ParentResourceExternalID
	}
	if isEmptyJSON(env.Payload) {
		env.Payload = json.RawMessage(`{}`)
	}
	return json.Marshal(env)
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
