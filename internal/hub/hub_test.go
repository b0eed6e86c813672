package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classsync/pkg/interfaces"
	"classsync/pkg/logger"
	"classsync/pkg/types"
)

type recordingRelay struct {
	mu     sync.Mutex
	events []string
	seen   chan struct{}
}

func newRecordingRelay() *recordingRelay {
	return &recordingRelay{seen: make(chan struct{}, 100)}
}

func (r *recordingRelay) HandleEvent(_ context.Context, _ interfaces.Connection, envelope *types.Envelope) error {
	r.mu.Lock()
	r.events = append(r.events, envelope.Event)
	r.mu.Unlock()
	r.seen <- struct{}{}
	return nil
}

func (r *recordingRelay) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type stubConn struct{}

func (stubConn) WriteJSON(interface{}) error { return nil }
func (stubConn) Close() error                { return nil }
func (stubConn) ConnectionID() string        { return "conn-1" }
func (stubConn) UserID() string              { return "user-1" }
func (stubConn) DisplayName() string         { return "User One" }
func (stubConn) PhotoURL() string            { return "" }
func (stubConn) ClassroomID() string         { return "class-1" }

func waitForEvents(t *testing.T, relay *recordingRelay, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-relay.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

func TestHub_DispatchDeliversToRelay(t *testing.T) {
	relay := newRecordingRelay()
	h := NewHub(relay, logger.NewNop())

	require.NoError(t, h.Start(context.Background()))
	defer func() { _ = h.Stop() }()

	envelope := &types.Envelope{Event: types.EventChatMessage, Data: []byte(`{}`)}
	require.NoError(t, h.Dispatch(stubConn{}, envelope))

	waitForEvents(t, relay, 1)
	assert.Equal(t, []string{types.EventChatMessage}, relay.recorded())
}

func TestHub_PreservesDispatchOrder(t *testing.T) {
	relay := newRecordingRelay()
	h := NewHub(relay, logger.NewNop())

	require.NoError(t, h.Start(context.Background()))
	defer func() { _ = h.Stop() }()

	events := []string{types.EventJoinClassroom, types.EventChatMessage, types.EventUpdateScore}
	for _, event := range events {
		require.NoError(t, h.Dispatch(stubConn{}, &types.Envelope{Event: event, Data: []byte(`{}`)}))
	}

	waitForEvents(t, relay, len(events))
	assert.Equal(t, events, relay.recorded())
}

func TestHub_StartTwice(t *testing.T) {
	h := NewHub(newRecordingRelay(), logger.NewNop())

	require.NoError(t, h.Start(context.Background()))
	defer func() { _ = h.Stop() }()

	assert.ErrorIs(t, h.Start(context.Background()), ErrHubAlreadyRunning)
}

func TestHub_DispatchBeforeStart(t *testing.T) {
	h := NewHub(newRecordingRelay(), logger.NewNop())

	err := h.Dispatch(stubConn{}, &types.Envelope{Event: types.EventChatMessage})
	assert.ErrorIs(t, err, ErrHubNotRunning)
}

func TestHub_StopWithoutStart(t *testing.T) {
	h := NewHub(newRecordingRelay(), logger.NewNop())
	assert.ErrorIs(t, h.Stop(), ErrHubNotRunning)
}

func TestHub_DispatchAfterStop(t *testing.T) {
	h := NewHub(newRecordingRelay(), logger.NewNop())

	require.NoError(t, h.Start(context.Background()))
	require.NoError(t, h.Stop())

	err := h.Dispatch(stubConn{}, &types.Envelope{Event: types.EventChatMessage})
	assert.ErrorIs(t, err, ErrHubNotRunning)
}

type failingRelay struct {
	seen chan struct{}
}

func (r *failingRelay) HandleEvent(context.Context, interfaces.Connection, *types.Envelope) error {
	r.seen <- struct{}{}
	return types.ErrUnknownEventType
}

func TestHub_SurvivesRelayErrors(t *testing.T) {
	relay := &failingRelay{seen: make(chan struct{}, 10)}
	h := NewHub(relay, logger.NewNop())

	require.NoError(t, h.Start(context.Background()))
	defer func() { _ = h.Stop() }()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Dispatch(stubConn{}, &types.Envelope{Event: "bogus"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-relay.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("hub stopped processing after a relay error")
		}
	}
}
