package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ResourceType string

const (
	ResourceTypePayment   ResourceType = "PAYMENT"
	ResourceTypeRefund    ResourceType = "REFUND"
	ResourceTypeDispute   ResourceType = "DISPUTE"
	ResourceTypeAgreement ResourceType = "AGREEMENT"
)

// ParseResourceType accepts any casing of a known resource type.
func ParseResourceType(raw string) (ResourceType, bool) {
	switch t := ResourceType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case ResourceTypePayment, ResourceTypeRefund, ResourceTypeDispute, ResourceTypeAgreement:
		return t, true
	default:
		return "", false
	}
}

// Event is an immutable entry of the event log.
type Event struct {
	ID                       snowflake.ID   `gorm:"primaryKey" json:"id"`
	DedupKey                 string         `gorm:"column:dedup_key;uniqueIndex" json:"dedup_key"`
	ResourceType             ResourceType   `gorm:"column:resource_type" json:"resource_type"`
	ResourceExternalID       string         `gorm:"column:resource_external_id;index" json:"resource_external_id"`
	ParentResourceExternalID *string        `gorm:"column:parent_resource_external_id" json:"parent_resource_external_id,omitempty"`
	EventType                string         `gorm:"column:event_type" json:"event_type"`
	EventDate                time.Time      `gorm:"column:event_date" json:"event_date"`
	Payload                  datatypes.JSON `gorm:"column:payload" json:"payload"`
	IngestedAt               time.Time      `gorm:"column:ingested_at" json:"ingested_at"`
}

func (Event) TableName() string { return "events" }

type InsertResult string

const (
	InsertResultInserted InsertResult = "INSERTED"
	InsertResultIgnored  InsertResult = "IGNORED"
)

// DedupKey prefers the transport message id. Without one the key is derived
// from the event identity so redelivery of the same envelope collapses.
func DedupKey(messageID, resourceExternalID, eventType string, eventDate time.Time) string {
	if id := strings.TrimSpace(messageID); id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		resourceExternalID,
		eventType,
		eventDate.UTC().Format(time.RFC3339Nano),
	}, "|")))
	return hex.EncodeToString(sum[:])
}

// EventDigest is the recomputed summary of every stored event for a resource.
type EventDigest struct {
	ResourceExternalID         string
	ResourceType               ResourceType
	ParentResourceExternalID   *string
	EventCount                 int
	MostRecentSalientEventType string
	MergedPayload              map[string]any
	EventCreatedDate           time.Time
}
