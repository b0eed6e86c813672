package types

import (
	"encoding/json"
)

// Inbound event names (client -> relay).
const (
	EventJoinClassroom  = "join-classroom"
	EventUpdateScore    = "update-score"
	EventBroadcastScore = "broadcast-score-update"
	EventSeatingUpdate  = "chair-seating-update"
	EventChairMovement  = "chair-movement-update"
	EventChairGroup     = "chair-group-update"
	EventChatMessage    = "chat-message"
)

// Outbound event names (relay -> clients). broadcast-score-update is echoed
// under its inbound name.
const (
	EventScoreUpdated        = "score-updated"
	EventSeatingUpdated      = "chair-seating-updated"
	EventChairMoved          = "chair-moved"
	EventChairGroupsUpdated  = "chair-groups-updated"
	EventChatMessageReceived = "chat-message-received"
)

// Envelope is the wire frame for every event in either direction. Data holds
// the event-specific payload and is decoded against the closed set of payload
// types below; frames with an unknown Event are rejected at the relay.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals payload into an outbound envelope.
func NewEnvelope(event string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Data: data}, nil
}

// JoinClassroomPayload binds the connection to its classroom's room. ClassID
// must match the classroom the connection authenticated for.
type JoinClassroomPayload struct {
	ClassID  string `json:"classId" validate:"required"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// UpdateScorePayload applies a rating preset to one student. Delta already
// carries the preset's polarity (+value or -value); the server performs the
// per-category accumulation.
type UpdateScorePayload struct {
	ClassID     string  `json:"classId" validate:"required"`
	StudentID   string  `json:"studentId" validate:"required"`
	StudentName string  `json:"studentName"`
	PresetName  string  `json:"presetName" validate:"required"`
	Delta       float64 `json:"delta" validate:"required"`
	UpdatedBy   string  `json:"updatedBy" validate:"required"`
	Timestamp   int64   `json:"timestamp"`
}

// ScoreUpdatedPayload is broadcast to the whole room, sender included, after
// the store has applied the increment. Scores is the resulting per-category
// map for the student.
type ScoreUpdatedPayload struct {
	StudentID   string             `json:"studentId"`
	StudentName string             `json:"studentName"`
	Scores      map[string]float64 `json:"scores"`
	PresetName  string             `json:"presetName"`
	UpdatedBy   string             `json:"updatedBy"`
	Timestamp   int64              `json:"timestamp"`
}

// BroadcastScorePayload pushes a full score table to the room without
// touching durable state. Echoed verbatim, sender included.
type BroadcastScorePayload struct {
	ClassID       string                        `json:"classId" validate:"required"`
	StudentScores map[string]map[string]float64 `json:"studentScores"`
	UpdatedBy     string                        `json:"updatedBy"`
	Timestamp     int64                         `json:"timestamp"`
}

// SeatingUpdatePayload replaces the seat assignment map wholesale. The client
// sends the entire recomputed map, including the removal of the actor's
// previous seat.
type SeatingUpdatePayload struct {
	ClassID       string                  `json:"classId" validate:"required"`
	ChairID       string                  `json:"chairId" validate:"required"`
	AssignedUsers map[string]AssignedUser `json:"assignedUsers" validate:"required"`
	Action        string                  `json:"action" validate:"required,oneof=sit leave move"`
	UserName      string                  `json:"userName"`
	UpdatedBy     string                  `json:"updatedBy" validate:"required"`
	Timestamp     int64                   `json:"timestamp"`
}

// SeatingUpdatedPayload is relayed to every room member except the sender.
type SeatingUpdatedPayload struct {
	ChairID       string                  `json:"chairId"`
	AssignedUsers map[string]AssignedUser `json:"assignedUsers"`
	Action        string                  `json:"action"`
	UserName      string                  `json:"userName"`
	UpdatedBy     string                  `json:"updatedBy"`
	Timestamp     int64                   `json:"timestamp"`
}

// ChairMovementPayload carries the full position map for every drag frame.
// Only frames with Save set are persisted; the rest are relay-only.
type ChairMovementPayload struct {
	ClassID        string                  `json:"classId" validate:"required"`
	ChairPositions map[string]SeatPosition `json:"chairPositions" validate:"required"`
	MovedChairID   *string                 `json:"movedChairId"`
	Save           bool                    `json:"save"`
	UpdatedBy      string                  `json:"updatedBy" validate:"required"`
	Timestamp      int64                   `json:"timestamp"`
}

// ChairMovedPayload is relayed to every room member except the sender.
type ChairMovedPayload struct {
	ChairPositions map[string]SeatPosition `json:"chairPositions"`
	MovedChairID   *string                 `json:"movedChairId"`
	UpdatedBy      string                  `json:"updatedBy"`
	Timestamp      int64                   `json:"timestamp"`
}

// ChairGroupUpdatePayload replaces the group list wholesale. Single-member
// groups are accepted; chair references are not validated against the
// position map.
type ChairGroupUpdatePayload struct {
	ClassID     string       `json:"classId" validate:"required"`
	ChairGroups []ChairGroup `json:"chairGroups" validate:"dive"`
	UpdatedBy   string       `json:"updatedBy" validate:"required"`
	Timestamp   int64        `json:"timestamp"`
}

// ChairGroupsUpdatedPayload is relayed to every room member except the sender.
type ChairGroupsUpdatedPayload struct {
	ChairGroups []ChairGroup `json:"chairGroups"`
	UpdatedBy   string       `json:"updatedBy"`
	Timestamp   int64        `json:"timestamp"`
}

// ChatMessagePayload appends one chat line. Timestamp is client-supplied and
// not required to be monotonic; persistence order is server-received order.
type ChatMessagePayload struct {
	ClassID     string `json:"classId" validate:"required"`
	Message     string `json:"message" validate:"required"`
	SenderID    string `json:"senderId" validate:"required"`
	SenderName  string `json:"senderName" validate:"required"`
	SenderPhoto string `json:"senderPhoto"`
	Timestamp   int64  `json:"timestamp"`
}

// ChatMessageReceivedPayload is broadcast to the whole room, sender included,
// so the sender's UI reconciles through the same path as everyone else's.
type ChatMessageReceivedPayload struct {
	Message     string `json:"message"`
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	SenderPhoto string `json:"senderPhoto"`
	Timestamp   int64  `json:"timestamp"`
}

// DecodeEventPayload decodes and validates the payload for an inbound event.
// The switch is the closed union of events the relay accepts; anything else
// is ErrUnknownEventType.
func DecodeEventPayload(event string, data []byte) (interface{}, error) {
	var payload interface{}

	switch event {
	case EventJoinClassroom:
		payload = &JoinClassroomPayload{}
	case EventUpdateScore:
		payload = &UpdateScorePayload{}
	case EventBroadcastScore:
		payload = &BroadcastScorePayload{}
	case EventSeatingUpdate:
		payload = &SeatingUpdatePayload{}
	case EventChairMovement:
		payload = &ChairMovementPayload{}
	case EventChairGroup:
		payload = &ChairGroupUpdatePayload{}
	case EventChatMessage:
		payload = &ChatMessagePayload{}
	default:
		return nil, ErrUnknownEventType
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return nil, ErrMalformedPayload
	}
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}
	return payload, nil
}
