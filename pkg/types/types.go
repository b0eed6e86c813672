package types

import (
	"time"
)

// SeatPosition is the x/y placement of one chair on the classroom canvas.
type SeatPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AssignedUser describes the occupant of a seat.
type AssignedUser struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	PhotoURL string `json:"photoURL,omitempty"`
}

// ChairGroup is a named grouping of seats ("connection" in the UI).
// ChairIDs is not checked against SeatingPositions: a group may keep
// referencing a seat that has since been deleted.
type ChairGroup struct {
	ID       string   `json:"id" validate:"required"`
	ChairIDs []string `json:"chairIds" validate:"required,min=1"`
	Label    string   `json:"label"`
	Color    string   `json:"color"`
}

// ChatMessage is one entry in a classroom's append-only chat log.
// Timestamp is the client's wall clock at emission; ReceivedAt is set by the
// server and defines the authoritative ordering.
type ChatMessage struct {
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	SenderPhoto string    `json:"senderPhoto,omitempty"`
	Message     string    `json:"message"`
	Timestamp   int64     `json:"timestamp"`
	ReceivedAt  time.Time `json:"receivedAt,omitempty"`
}

// Classroom is the durable, authoritative classroom record. The live relay
// mutates it through the state projector; chat history is stored alongside
// but served separately with a bounded limit.
type Classroom struct {
	ID               string                        `json:"id"`
	Name             string                        `json:"name"`
	SeatingPositions map[string]SeatPosition       `json:"seatingPositions"`
	AssignedUsers    map[string]AssignedUser       `json:"assignedUsers"`
	ChairGroups      []ChairGroup                  `json:"chairGroups"`
	StudentScores    map[string]map[string]float64 `json:"studentScores"`
	CreatedAt        time.Time                     `json:"createdAt"`
	UpdatedAt        time.Time                     `json:"updatedAt"`
}

// NewClassroom returns an empty classroom record with all containers
// initialized, so JSON round-trips never produce null fields.
func NewClassroom(id, name string) *Classroom {
	now := time.Now()
	return &Classroom{
		ID:               id,
		Name:             name,
		SeatingPositions: make(map[string]SeatPosition),
		AssignedUsers:    make(map[string]AssignedUser),
		ChairGroups:      []ChairGroup{},
		StudentScores:    make(map[string]map[string]float64),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Identity is the resolved principal behind a connection, supplied by the
// authentication collaborator at connection time and immutable afterwards.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}
