package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/dyson360-bridge/internal/vacuum"
)

const (
	// DefaultLimit is used when no limit is given.
	DefaultLimit = 50

	// MaxLimit caps a single query.
	MaxLimit = 200

	// timestampLayout is fixed width so that text order is time order.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// ErrDeviceIDRequired is returned when no device ID is given.
var ErrDeviceIDRequired = errors.New("history: device id is required")

// SQLiteRepository implements Repository on the state_history table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts a row for the state. CreatedAt is the state's receipt
// time, or now for a state that was never received.
func (r *SQLiteRepository) Record(ctx context.Context, deviceID string, state vacuum.State, source string) error {
	if deviceID == "" {
		return ErrDeviceIDRequired
	}
	if source == "" {
		source = SourceStatus
	}

	createdAt := state.UpdatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	var deviceTime sql.NullString
	if !state.DeviceTime.IsZero() {
		deviceTime = sql.NullString{String: formatTimestamp(state.DeviceTime), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO state_history
		 (device_id, lifecycle_state, power_mode, battery_level, source, device_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		deviceID,
		string(state.Lifecycle),
		string(state.PowerMode),
		vacuum.ClampBattery(state.BatteryLevel),
		source,
		deviceTime,
		formatTimestamp(createdAt),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}

	return nil
}

// GetHistory returns recent entries for a device, newest first.
func (r *SQLiteRepository) GetHistory(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	limit = ClampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, lifecycle_state, power_mode, battery_level, source, device_time, created_at
		 FROM state_history
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			entry      Entry
			lifecycle  string
			powerMode  string
			deviceTime sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&entry.ID, &entry.DeviceID, &lifecycle, &powerMode,
			&entry.BatteryLevel, &entry.Source, &deviceTime, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		entry.LifecycleState = vacuum.LifecycleState(lifecycle)
		entry.PowerMode = vacuum.PowerMode(powerMode)

		if entry.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		if deviceTime.Valid {
			entry.DeviceTime, _ = parseTimestamp(deviceTime.String) //nolint:errcheck // Written by Record
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than olderThan.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := formatTimestamp(r.now().Add(-olderThan))
	result, err := r.db.ExecContext(ctx, "DELETE FROM state_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}
