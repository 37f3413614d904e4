package model

// EventType tags the variants carried over the event log and the live feed.
type EventType string

const (
	EventDuplicate EventType = "duplicate"
	EventNotarized EventType = "notarized"
	EventAttested  EventType = "attested"
	EventHello     EventType = "hello"
)

// Event sources.
const (
	SourceLocal = "local"
	SourceLog   = "log"
)

// Event is a notification published on the event log and broadcast to live listeners.
// Timestamp is in Unix milliseconds.
type Event struct {
	Type                EventType `json:"type"`
	Source              string    `json:"source,omitempty"`
	Hash                string    `json:"hash,omitempty"`
	ObjectID            string    `json:"fileId,omitempty"`
	TokenID             string    `json:"tokenId,omitempty"`
	AttestationObjectID string    `json:"attestationFileId,omitempty"`
	TopicID             string    `json:"hcsTopicId,omitempty"`
	Sequence            int64     `json:"sequence,omitempty"`
	Timestamp           int64     `json:"timestamp"`
}
