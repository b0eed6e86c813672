package relay

import (
	"context"

	"go.uber.org/zap"

	"classsync/internal/projector"
	"classsync/internal/websocket"
	"classsync/pkg/interfaces"
	"classsync/pkg/types"
)

// Relay is the stateless event dispatcher. For each inbound event it decodes
// and validates the payload against the closed event union, lets the
// projector persist the durable fields, then fans the event out to the
// sender's room under the event's fan-out policy.
//
// Persistence failures are logged and the event is relayed anyway: live
// responsiveness is favored over consistency, and the durable record catches
// up on the next successful write. The transport carries no error channel
// back to the sender.
type Relay struct {
	registry  *websocket.Registry
	projector *projector.Projector
	log       *zap.SugaredLogger
}

// NewRelay creates a relay.
func NewRelay(registry *websocket.Registry, projector *projector.Projector, log *zap.SugaredLogger) *Relay {
	return &Relay{
		registry:  registry,
		projector: projector,
		log:       log,
	}
}

// HandleEvent processes one inbound event to completion. Malformed or
// unknown frames are rejected here and never reach the projector or the
// room. Events from a connection that has not joined its room are dropped
// and logged; the sender is not notified.
func (r *Relay) HandleEvent(ctx context.Context, sender interfaces.Connection, envelope *types.Envelope) error {
	payload, err := types.DecodeEventPayload(envelope.Event, envelope.Data)
	if err != nil {
		r.log.Warnw("rejecting event",
			"event", envelope.Event,
			"userId", sender.UserID(),
			"error", err)
		return err
	}

	if join, ok := payload.(*types.JoinClassroomPayload); ok {
		return r.handleJoin(sender, join)
	}

	if !r.registry.IsMember(sender) {
		r.log.Warnw("dropping event from unbound session",
			"event", envelope.Event,
			"userId", sender.UserID(),
			"classroomId", sender.ClassroomID())
		return ErrNotJoined
	}

	switch p := payload.(type) {
	case *types.UpdateScorePayload:
		return r.handleScore(ctx, sender, p)
	case *types.BroadcastScorePayload:
		return r.handleBroadcastScore(sender, p)
	case *types.SeatingUpdatePayload:
		return r.handleSeating(ctx, sender, p)
	case *types.ChairMovementPayload:
		return r.handleMovement(ctx, sender, p)
	case *types.ChairGroupUpdatePayload:
		return r.handleGroups(ctx, sender, p)
	case *types.ChatMessagePayload:
		return r.handleChat(ctx, sender, p)
	default:
		return types.ErrUnknownEventType
	}
}

// handleJoin binds the connection to its room. The payload classroom must
// match the classroom the connection authenticated for; a session does not
// move between rooms without reconnecting.
func (r *Relay) handleJoin(sender interfaces.Connection, payload *types.JoinClassroomPayload) error {
	if payload.ClassID != sender.ClassroomID() {
		r.log.Warnw("rejecting join for mismatched classroom",
			"userId", sender.UserID(),
			"bound", sender.ClassroomID(),
			"requested", payload.ClassID)
		return ErrClassroomMismatch
	}
	return r.registry.Join(sender)
}

// handleScore persists the increment and broadcasts the resulting map to the
// whole room, sender included, so the sender's UI reconciles through the same
// path as remote updates. On a write failure the event is still relayed with
// no score map; clients keep their local view until the next good update.
func (r *Relay) handleScore(ctx context.Context, sender interfaces.Connection, payload *types.UpdateScorePayload) error {
	if err := r.checkScope(sender, payload.ClassID, types.EventUpdateScore); err != nil {
		return err
	}

	scores, err := r.projector.ApplyScore(ctx, payload.ClassID, payload)
	if err != nil {
		r.log.Errorw("score persistence failed, relaying anyway",
			"classroomId", payload.ClassID,
			"studentId", payload.StudentID,
			"error", err)
		scores = nil
	}

	out := &types.ScoreUpdatedPayload{
		StudentID:   payload.StudentID,
		StudentName: payload.StudentName,
		Scores:      scores,
		PresetName:  payload.PresetName,
		UpdatedBy:   payload.UpdatedBy,
		Timestamp:   payload.Timestamp,
	}
	r.fanOut(sender, types.EventScoreUpdated, out, true)
	return nil
}

// handleBroadcastScore echoes a full score table to the whole room, sender
// included. Relay-only; durable state is untouched.
func (r *Relay) handleBroadcastScore(sender interfaces.Connection, payload *types.BroadcastScorePayload) error {
	if err := r.checkScope(sender, payload.ClassID, types.EventBroadcastScore); err != nil {
		return err
	}
	r.fanOut(sender, types.EventBroadcastScore, payload, true)
	return nil
}

// handleSeating persists the replacement assignment map and relays it to
// everyone except the sender, whose optimistic local state is already
// authoritative for itself.
func (r *Relay) handleSeating(ctx context.Context, sender interfaces.Connection, payload *types.SeatingUpdatePayload) error {
	if err := r.checkScope(sender, payload.ClassID, types.EventSeatingUpdate); err != nil {
		return err
	}

	if err := r.projector.ApplySeating(ctx, payload.ClassID, payload); err != nil {
		r.log.Errorw("seating persistence failed, relaying anyway",
			"classroomId", payload.ClassID,
			"chairId", payload.ChairID,
			"error", err)
	}

	out := &types.SeatingUpdatedPayload{
		ChairID:       payload.ChairID,
		AssignedUsers: payload.AssignedUsers,
		Action:        payload.Action,
		UserName:      payload.UserName,
		UpdatedBy:     payload.UpdatedBy,
		Timestamp:     payload.Timestamp,
	}
	r.fanOut(sender, types.EventSeatingUpdated, out, false)
	return nil
}

// handleMovement relays every drag frame to everyone except the sender and
// persists the position map only on the explicit save frame.
func (r *Relay) handleMovement(ctx context.Context, sender interfaces.Connection, payload *types.ChairMovementPayload) error {
	if err := r.checkScope(sender, payload.ClassID, types.EventChairMovement); err != nil {
		return err
	}

	if err := r.projector.ApplyMovement(ctx, payload.ClassID, payload); err != nil {
		r.log.Errorw("position persistence failed, relaying anyway",
			"classroomId", payload.ClassID,
			"error", err)
	}

	out := &types.ChairMovedPayload{
		ChairPositions: payload.ChairPositions,
		MovedChairID:   payload.MovedChairID,
		UpdatedBy:      payload.UpdatedBy,
		Timestamp:      payload.Timestamp,
	}
	r.fanOut(sender, types.EventChairMoved, out, false)
	return nil
}

// handleGroups persists the replacement group list and relays it to everyone
// except the sender.
func (r *Relay) handleGroups(ctx context.Context, sender interfaces.Connection, payload *types.ChairGroupUpdatePayload) error {
	if err := r.checkScope(sender, payload.ClassID, types.EventChairGroup); err != nil {
		return err
	}

	if err := r.projector.ApplyGroups(ctx, payload.ClassID, payload); err != nil {
		r.log.Errorw("group persistence failed, relaying anyway",
			"classroomId", payload.ClassID,
			"error", err)
	}

	out := &types.ChairGroupsUpdatedPayload{
		ChairGroups: payload.ChairGroups,
		UpdatedBy:   payload.UpdatedBy,
		Timestamp:   payload.Timestamp,
	}
	r.fanOut(sender, types.EventChairGroupsUpdated, out, false)
	return nil
}

// handleChat appends the message and broadcasts it to the whole room, sender
// included, which confirms receipt and keeps one reconciliation path.
func (r *Relay) handleChat(ctx context.Context, sender interfaces.Connection, payload *types.ChatMessagePayload) error {
	if err := r.checkScope(sender, payload.ClassID, types.EventChatMessage); err != nil {
		return err
	}

	if _, err := r.projector.ApplyChat(ctx, payload.ClassID, payload); err != nil {
		r.log.Errorw("chat persistence failed, relaying anyway",
			"classroomId", payload.ClassID,
			"senderId", payload.SenderID,
			"error", err)
	}

	out := &types.ChatMessageReceivedPayload{
		Message:     payload.Message,
		SenderID:    payload.SenderID,
		SenderName:  payload.SenderName,
		SenderPhoto: payload.SenderPhoto,
		Timestamp:   payload.Timestamp,
	}
	r.fanOut(sender, types.EventChatMessageReceived, out, true)
	return nil
}

// checkScope rejects events whose payload names a classroom other than the
// one the connection is bound to. This is what keeps room A's events out of
// room B regardless of what a client puts in its payloads.
func (r *Relay) checkScope(sender interfaces.Connection, classID, event string) error {
	if classID != sender.ClassroomID() {
		r.log.Warnw("dropping event for foreign classroom",
			"event", event,
			"userId", sender.UserID(),
			"bound", sender.ClassroomID(),
			"requested", classID)
		return ErrClassroomMismatch
	}
	return nil
}

// fanOut delivers an outbound envelope to the sender's room, fire-and-forget
// per member. A failed delivery to one member is logged and never blocks the
// others. An empty room is a no-op.
func (r *Relay) fanOut(sender interfaces.Connection, event string, payload interface{}, includeSender bool) {
	envelope, err := types.NewEnvelope(event, payload)
	if err != nil {
		r.log.Errorw("failed to build outbound envelope", "event", event, "error", err)
		return
	}

	members := r.registry.MembersOf(sender.ClassroomID())
	for _, member := range members {
		if !includeSender && member.ConnectionID() == sender.ConnectionID() {
			continue
		}
		if err := member.WriteJSON(envelope); err != nil {
			r.log.Warnw("delivery failed",
				"event", event,
				"recipient", member.UserID(),
				"error", err)
		}
	}
}
