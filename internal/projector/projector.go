package projector

import (
	"context"

	"go.uber.org/zap"

	"classsync/pkg/interfaces"
	"classsync/pkg/types"
)

// Projector translates live events into durable classroom mutations. Each
// event maps to exactly one store call: a wholesale replace, an atomic
// increment, or an append. There are no multi-step transactions, so a
// connection dropping mid-operation never leaves partial state behind.
type Projector struct {
	store interfaces.ClassroomStore
	log   *zap.SugaredLogger
}

// NewProjector creates a projector over the given store.
func NewProjector(store interfaces.ClassroomStore, log *zap.SugaredLogger) *Projector {
	return &Projector{store: store, log: log}
}

// ApplySeating replaces the seat assignment map wholesale with the client's
// recomputed map. On sit and move the actor is additionally stripped from any
// seat other than the payload seat, so a user occupies at most one seat even
// when the client's map is stale.
func (p *Projector) ApplySeating(ctx context.Context, classID string, payload *types.SeatingUpdatePayload) error {
	assigned := make(map[string]types.AssignedUser, len(payload.AssignedUsers))
	for seatID, occupant := range payload.AssignedUsers {
		assigned[seatID] = occupant
	}

	if payload.Action == "sit" || payload.Action == "move" {
		for seatID, occupant := range assigned {
			if occupant.UserID == payload.UpdatedBy && seatID != payload.ChairID {
				delete(assigned, seatID)
			}
		}
	}

	return p.store.ReplaceAssignedUsers(ctx, classID, assigned)
}

// ApplyMovement persists the full position map when the frame carries the
// explicit save flag. Live-drag frames are relay-only and return without
// touching the store.
func (p *Projector) ApplyMovement(ctx context.Context, classID string, payload *types.ChairMovementPayload) error {
	if !payload.Save {
		return nil
	}
	return p.store.ReplaceSeatingPositions(ctx, classID, payload.ChairPositions)
}

// ApplyGroups replaces the group list wholesale. Chair references are not
// checked against the position map: a group may keep pointing at a deleted
// seat, matching the source system's behavior.
func (p *Projector) ApplyGroups(ctx context.Context, classID string, payload *types.ChairGroupUpdatePayload) error {
	return p.store.ReplaceChairGroups(ctx, classID, payload.ChairGroups)
}

// ApplyScore performs the server-side increment for one rating application
// and returns the student's resulting per-category map. The increment runs
// inside the store's serialized write path, so two concurrent ratings of the
// same student both land.
func (p *Projector) ApplyScore(ctx context.Context, classID string, payload *types.UpdateScorePayload) (map[string]float64, error) {
	return p.store.IncrementStudentScore(ctx, classID, payload.StudentID, payload.PresetName, payload.Delta)
}

// ApplyChat appends one chat entry. The client timestamp is stored as-is;
// ordering comes from server receipt.
func (p *Projector) ApplyChat(ctx context.Context, classID string, payload *types.ChatMessagePayload) (*types.ChatMessage, error) {
	message := &types.ChatMessage{
		SenderID:    payload.SenderID,
		SenderName:  payload.SenderName,
		SenderPhoto: payload.SenderPhoto,
		Message:     payload.Message,
		Timestamp:   payload.Timestamp,
	}
	if err := p.store.AppendChatMessage(ctx, classID, message); err != nil {
		return nil, err
	}
	return message, nil
}
