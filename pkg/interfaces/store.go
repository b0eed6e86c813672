package interfaces

import (
	"context"

	"classsync/pkg/types"
)

// ClassroomStore handles all durable classroom state. The live relay issues
// one call per persisted event; the REST layer uses the read methods for
// client hydration.
type ClassroomStore interface {
	// CreateClassroom inserts a new classroom record.
	CreateClassroom(ctx context.Context, classroom *types.Classroom) error

	// GetClassroom retrieves the full classroom record by ID. Returns
	// ErrClassroomNotFound for unknown IDs.
	GetClassroom(ctx context.Context, classID string) (*types.Classroom, error)

	// ReplaceAssignedUsers overwrites the seat assignment map wholesale.
	ReplaceAssignedUsers(ctx context.Context, classID string, assigned map[string]types.AssignedUser) error

	// ReplaceSeatingPositions overwrites the chair position map wholesale.
	ReplaceSeatingPositions(ctx context.Context, classID string, positions map[string]types.SeatPosition) error

	// ReplaceChairGroups overwrites the group list wholesale. Chair
	// references are not validated against the position map.
	ReplaceChairGroups(ctx context.Context, classID string, groups []types.ChairGroup) error

	// IncrementStudentScore atomically applies
	// scores[studentID][category] += delta and returns the student's
	// resulting per-category map. Scores may go negative.
	IncrementStudentScore(ctx context.Context, classID, studentID, category string, delta float64) (map[string]float64, error)

	// AppendChatMessage appends one chat entry. Existing entries are never
	// mutated or removed.
	AppendChatMessage(ctx context.Context, classID string, message *types.ChatMessage) error

	// GetChatHistory returns the most recent limit messages in
	// server-received order (oldest of the slice first). limit <= 0 applies
	// the default of 100.
	GetChatHistory(ctx context.Context, classID string, limit int) ([]*types.ChatMessage, error)

	// HealthCheck verifies store connectivity.
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and closes the store.
	Close() error
}
