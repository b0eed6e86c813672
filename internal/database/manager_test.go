package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "classsync/pkg/database"
	"classsync/pkg/interfaces"
	"classsync/pkg/logger"
	"classsync/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	config := dbconfig.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	manager, err := NewManager(config, logger.NewNop())
	require.NoError(t, err)
	// Failed writes retry fast in tests.
	manager.retryDelay = 10 * time.Millisecond

	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func createTestClassroom(t *testing.T, m *Manager, id string) *types.Classroom {
	t.Helper()
	classroom := types.NewClassroom(id, "Test Classroom")
	require.NoError(t, m.CreateClassroom(context.Background(), classroom))
	return classroom
}

func TestCreateAndGetClassroom(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	created := createTestClassroom(t, m, "class-1")

	got, err := m.GetClassroom(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Name, got.Name)
	assert.Empty(t, got.SeatingPositions)
	assert.Empty(t, got.AssignedUsers)
	assert.Empty(t, got.ChairGroups)
	assert.Empty(t, got.StudentScores)
}

func TestGetClassroom_NotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.GetClassroom(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrClassroomNotFound)
}

func TestReplaceSeatingPositions(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createTestClassroom(t, m, "class-1")

	positions := map[string]types.SeatPosition{
		"chair-1": {X: 100, Y: 200},
		"chair-2": {X: 300, Y: 200},
	}
	require.NoError(t, m.ReplaceSeatingPositions(ctx, "class-1", positions))

	got, err := m.GetClassroom(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, positions, got.SeatingPositions)

	// A second replace overwrites, never merges.
	require.NoError(t, m.ReplaceSeatingPositions(ctx, "class-1", map[string]types.SeatPosition{
		"chair-3": {X: 50, Y: 50},
	}))
	got, err = m.GetClassroom(ctx, "class-1")
	require.NoError(t, err)
	assert.Len(t, got.SeatingPositions, 1)
	assert.Contains(t, got.SeatingPositions, "chair-3")
}

func TestReplaceAssignedUsers(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createTestClassroom(t, m, "class-1")

	assigned := map[string]types.AssignedUser{
		"chair-1": {UserID: "user-1", UserName: "Alice"},
	}
	require.NoError(t, m.ReplaceAssignedUsers(ctx, "class-1", assigned))

	got, err := m.GetClassroom(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, assigned, got.AssignedUsers)
}

func TestReplaceChairGroups(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createTestClassroom(t, m, "class-1")

	groups := []types.ChairGroup{
		{ID: "g1", ChairIDs: []string{"chair-1", "chair-2"}, Label: "Front", Color: "#ff0000"},
		{ID: "g2", ChairIDs: []string{"chair-3"}},
	}
	require.NoError(t, m.ReplaceChairGroups(ctx, "class-1", groups))

	got, err := m.GetClassroom(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, groups, got.ChairGroups)
}

func TestReplace_UnknownClassroom(t *testing.T) {
	m := newTestManager(t)

	err := m.ReplaceAssignedUsers(context.Background(), "missing", map[string]types.AssignedUser{})
	assert.ErrorIs(t, err, interfaces.ErrClassroomNotFound)
}

func TestIncrementStudentScore(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createTestClassroom(t, m, "class-1")

	scores, err := m.IncrementStudentScore(ctx, "class-1", "student-1", "helpful", 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"helpful": 2}, scores)

	scores, err = m.IncrementStudentScore(ctx, "class-1", "student-1", "helpful", 3)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"helpful": 5}, scores)

	// Negative deltas accumulate below zero; no floor.
	scores, err = m.IncrementStudentScore(ctx, "class-1", "student-1", "disruptive", -2)
	require.NoError(t, err)
	assert.Equal(t, float64(-2), scores["disruptive"])
	assert.Equal(t, float64(5), scores["helpful"])
}

func TestIncrementStudentScore_ConcurrentIncrements(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createTestClassroom(t, m, "class-1")

	const writers = 10
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := m.IncrementStudentScore(ctx, "class-1", "student-1", "helpful", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := m.GetClassroom(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, float64(writers), got.StudentScores["student-1"]["helpful"])
}

func TestIncrementStudentScore_UnknownClassroom(t *testing.T) {
	m := newTestManager(t)

	_, err := m.IncrementStudentScore(context.Background(), "missing", "student-1", "helpful", 1)
	assert.ErrorIs(t, err, interfaces.ErrClassroomNotFound)
}

func TestAppendChatMessageAndHistory(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createTestClassroom(t, m, "class-1")

	// Client timestamps arrive out of order; history follows arrival order.
	timestamps := []int64{3000, 1000, 2000}
	for i, ts := range timestamps {
		message := &types.ChatMessage{
			SenderID:   "user-1",
			SenderName: "Alice",
			Message:    string(rune('a' + i)),
			Timestamp:  ts,
		}
		require.NoError(t, m.AppendChatMessage(ctx, "class-1", message))
		assert.False(t, message.ReceivedAt.IsZero())
	}

	history, err := m.GetChatHistory(ctx, "class-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "a", history[0].Message)
	assert.Equal(t, "b", history[1].Message)
	assert.Equal(t, "c", history[2].Message)
	assert.Equal(t, []int64{3000, 1000, 2000}, []int64{history[0].Timestamp, history[1].Timestamp, history[2].Timestamp})
}

func TestGetChatHistory_LimitKeepsNewest(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createTestClassroom(t, m, "class-1")

	for i := 0; i < 5; i++ {
		require.NoError(t, m.AppendChatMessage(ctx, "class-1", &types.ChatMessage{
			SenderID:   "user-1",
			SenderName: "Alice",
			Message:    string(rune('a' + i)),
		}))
	}

	history, err := m.GetChatHistory(ctx, "class-1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "d", history[0].Message)
	assert.Equal(t, "e", history[1].Message)
}

func TestGetChatHistory_DefaultLimit(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	createTestClassroom(t, m, "class-1")

	history, err := m.GetChatHistory(ctx, "class-1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHealthCheck(t *testing.T) {
	m := newTestManager(t)
	assert.NoError(t, m.HealthCheck(context.Background()))
}

func TestClose_Idempotent(t *testing.T) {
	config := dbconfig.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	m, err := NewManager(config, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	err = m.CreateClassroom(context.Background(), types.NewClassroom("c1", "after close"))
	assert.Error(t, err)
}
