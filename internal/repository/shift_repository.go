package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pharmedu/training-api/internal/models"
)

const shiftColumns = `id, duty_role, station, day_of_week, start_time, end_time, notes, synced_at`

// ShiftRepository persists the duty roster synced from the department
// spreadsheet.
type ShiftRepository struct {
	db *sqlx.DB
}

// NewShiftRepository constructs the repository.
func NewShiftRepository(db *sqlx.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// List returns roster entries matching the filter, ordered for display.
func (r *ShiftRepository) List(ctx context.Context, filter models.ShiftFilter) ([]models.Shift, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM shifts", shiftColumns))

	conditions := make([]string, 0, 3)
	if filter.DutyRole != "" {
		args = append(args, filter.DutyRole)
		conditions = append(conditions, fmt.Sprintf("duty_role = $%d", len(args)))
	}
	if filter.Station != "" {
		args = append(args, filter.Station)
		conditions = append(conditions, fmt.Sprintf("station = $%d", len(args)))
	}
	if filter.DayOfWeek != "" {
		args = append(args, filter.DayOfWeek)
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY day_of_week ASC, start_time ASC")

	var shifts []models.Shift
	if err := r.db.SelectContext(ctx, &shifts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	return shifts, nil
}

// ReplaceAll swaps the whole roster in one transaction. Sync is full-table:
// the spreadsheet is the source of truth and partial merges would leave
// deleted rows behind.
func (r *ShiftRepository) ReplaceAll(ctx context.Context, shifts []models.Shift, syncedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin shift sync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shifts`); err != nil {
		return fmt.Errorf("clear shifts: %w", err)
	}
	const query = `INSERT INTO shifts (id, duty_role, station, day_of_week, start_time, end_time, notes, synced_at)
	VALUES (:id, :duty_role, :station, :day_of_week, :start_time, :end_time, :notes, :synced_at)`
	for i := range shifts {
		if shifts[i].ID == "" {
			shifts[i].ID = uuid.NewString()
		}
		shifts[i].SyncedAt = syncedAt
		if _, err := tx.NamedExecContext(ctx, query, shifts[i]); err != nil {
			return fmt.Errorf("insert shift: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit shift sync: %w", err)
	}
	return nil
}

// LastSyncedAt returns the newest sync stamp, or the zero time when the
// roster has never been synced.
func (r *ShiftRepository) LastSyncedAt(ctx context.Context) (time.Time, error) {
	const query = `SELECT COALESCE(MAX(synced_at), 'epoch'::timestamptz) FROM shifts`
	var ts time.Time
	if err := r.db.GetContext(ctx, &ts, query); err != nil {
		return time.Time{}, fmt.Errorf("last shift sync: %w", err)
	}
	return ts, nil
}
