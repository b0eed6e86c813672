package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	dbconfig "classsync/pkg/database"
	"classsync/pkg/interfaces"
	"classsync/pkg/types"
)

// Manager implements interfaces.ClassroomStore on SQLite. All writes flow
// through a single goroutine: SQLite holds one writer at a time anyway, and
// the serialization doubles as the atomicity guarantee for score increments.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	log          *zap.SugaredLogger
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex

	retryDelay time.Duration
}

// writeOperation is one queued write and its completion channel.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies pragmas and migrations, and starts
// the single-writer loop.
func NewManager(config *dbconfig.Config, log *zap.SugaredLogger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite pragmas: %w", err)
	}

	if err := dbconfig.NewMigrationManager(db).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		log:          log,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
		retryDelay:   5 * time.Second,
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes queued writes sequentially, retrying each failed write
// once after retryDelay.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				m.log.Warnw("database write failed, retrying", "delay", m.retryDelay, "error", err)
				time.Sleep(m.retryDelay)
				err = op.operation(m.db)
				if err != nil {
					m.log.Errorw("database write failed after retry", "error", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			m.log.Info("database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write and waits for its completion.
func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("classroom store is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("classroom store is shutting down")
	}
}

// CreateClassroom inserts a new classroom record.
func (m *Manager) CreateClassroom(ctx context.Context, classroom *types.Classroom) error {
	return m.executeWrite(func(db *sql.DB) error {
		positions, err := json.Marshal(classroom.SeatingPositions)
		if err != nil {
			return fmt.Errorf("failed to marshal seating positions: %w", err)
		}
		assigned, err := json.Marshal(classroom.AssignedUsers)
		if err != nil {
			return fmt.Errorf("failed to marshal assigned users: %w", err)
		}
		groups, err := json.Marshal(classroom.ChairGroups)
		if err != nil {
			return fmt.Errorf("failed to marshal chair groups: %w", err)
		}
		scores, err := json.Marshal(classroom.StudentScores)
		if err != nil {
			return fmt.Errorf("failed to marshal student scores: %w", err)
		}

		query := `
			INSERT INTO classrooms (id, name, seating_positions, assigned_users, chair_groups, student_scores, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = db.ExecContext(ctx, query,
			classroom.ID,
			classroom.Name,
			string(positions),
			string(assigned),
			string(groups),
			string(scores),
			classroom.CreatedAt,
			classroom.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert classroom: %w", err)
		}
		return nil
	})
}

// GetClassroom retrieves the full classroom record. Reads bypass the write
// loop; WAL keeps them concurrent with in-flight writes.
func (m *Manager) GetClassroom(ctx context.Context, classID string) (*types.Classroom, error) {
	query := `
		SELECT id, name, seating_positions, assigned_users, chair_groups, student_scores, created_at, updated_at
		FROM classrooms
		WHERE id = ?
	`
	row := m.db.QueryRowContext(ctx, query, classID)

	var classroom types.Classroom
	var positions, assigned, groups, scores string

	err := row.Scan(
		&classroom.ID,
		&classroom.Name,
		&positions,
		&assigned,
		&groups,
		&scores,
		&classroom.CreatedAt,
		&classroom.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrClassroomNotFound
		}
		return nil, fmt.Errorf("failed to query classroom: %w", err)
	}

	if err := json.Unmarshal([]byte(positions), &classroom.SeatingPositions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seating positions: %w", err)
	}
	if err := json.Unmarshal([]byte(assigned), &classroom.AssignedUsers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assigned users: %w", err)
	}
	if err := json.Unmarshal([]byte(groups), &classroom.ChairGroups); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chair groups: %w", err)
	}
	if err := json.Unmarshal([]byte(scores), &classroom.StudentScores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal student scores: %w", err)
	}

	return &classroom, nil
}

// ReplaceAssignedUsers overwrites the seat assignment map wholesale.
func (m *Manager) ReplaceAssignedUsers(ctx context.Context, classID string, assignedUsers map[string]types.AssignedUser) error {
	return m.replaceColumn(ctx, classID, "assigned_users", assignedUsers)
}

// ReplaceSeatingPositions overwrites the chair position map wholesale.
func (m *Manager) ReplaceSeatingPositions(ctx context.Context, classID string, positions map[string]types.SeatPosition) error {
	return m.replaceColumn(ctx, classID, "seating_positions", positions)
}

// ReplaceChairGroups overwrites the group list wholesale.
func (m *Manager) ReplaceChairGroups(ctx context.Context, classID string, groups []types.ChairGroup) error {
	return m.replaceColumn(ctx, classID, "chair_groups", groups)
}

// replaceColumn serializes value and writes it over the named JSON column.
func (m *Manager) replaceColumn(ctx context.Context, classID, column string, value interface{}) error {
	return m.executeWrite(func(db *sql.DB) error {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", column, err)
		}

		query := fmt.Sprintf(`UPDATE classrooms SET %s = ?, updated_at = ? WHERE id = ?`, column)
		result, err := db.ExecContext(ctx, query, string(data), time.Now(), classID)
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", column, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrClassroomNotFound
		}
		return nil
	})
}

// IncrementStudentScore applies scores[studentID][category] += delta inside
// the write loop and returns the student's resulting per-category map. The
// read-modify-write runs in a transaction and, with all writes serialized on
// one goroutine, concurrent increments cannot lose updates. Scores may go
// negative; no floor is enforced.
func (m *Manager) IncrementStudentScore(ctx context.Context, classID, studentID, category string, delta float64) (map[string]float64, error) {
	var updated map[string]float64

	err := m.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var scoresJSON string
		err = tx.QueryRowContext(ctx, "SELECT student_scores FROM classrooms WHERE id = ?", classID).Scan(&scoresJSON)
		if err != nil {
			if err == sql.ErrNoRows {
				return interfaces.ErrClassroomNotFound
			}
			return fmt.Errorf("failed to read student scores: %w", err)
		}

		scores := make(map[string]map[string]float64)
		if err := json.Unmarshal([]byte(scoresJSON), &scores); err != nil {
			return fmt.Errorf("failed to unmarshal student scores: %w", err)
		}

		if scores[studentID] == nil {
			scores[studentID] = make(map[string]float64)
		}
		scores[studentID][category] += delta

		data, err := json.Marshal(scores)
		if err != nil {
			return fmt.Errorf("failed to marshal student scores: %w", err)
		}
		_, err = tx.ExecContext(ctx, "UPDATE classrooms SET student_scores = ?, updated_at = ? WHERE id = ?",
			string(data), time.Now(), classID)
		if err != nil {
			return fmt.Errorf("failed to update student scores: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit score update: %w", err)
		}

		updated = scores[studentID]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AppendChatMessage appends one chat entry. ReceivedAt is stamped here; the
// autoincrement row ID carries the authoritative order.
func (m *Manager) AppendChatMessage(ctx context.Context, classID string, message *types.ChatMessage) error {
	return m.executeWrite(func(db *sql.DB) error {
		receivedAt := time.Now()

		query := `
			INSERT INTO chat_messages (classroom_id, sender_id, sender_name, sender_photo, message, client_timestamp, received_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			classID,
			message.SenderID,
			message.SenderName,
			message.SenderPhoto,
			message.Message,
			message.Timestamp,
			receivedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chat message: %w", err)
		}

		message.ReceivedAt = receivedAt
		return nil
	})
}

// GetChatHistory returns the most recent limit messages in received order,
// oldest of the slice first. limit <= 0 applies the default of 100.
func (m *Manager) GetChatHistory(ctx context.Context, classID string, limit int) ([]*types.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT sender_id, sender_name, sender_photo, message, client_timestamp, received_at
		FROM chat_messages
		WHERE classroom_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := m.db.QueryContext(ctx, query, classID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*types.ChatMessage
	for rows.Next() {
		var message types.ChatMessage
		err := rows.Scan(
			&message.SenderID,
			&message.SenderName,
			&message.SenderPhoto,
			&message.Message,
			&message.Timestamp,
			&message.ReceivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		messages = append(messages, &message)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat rows: %w", err)
	}

	// Query returns newest first; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// HealthCheck validates database connectivity and a basic read.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM classrooms").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// GetDB exposes the handle for schema validation in tests.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close drains the write loop and closes the database.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
