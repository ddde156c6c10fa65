package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pharmedu/training-api/internal/models"
)

const assessmentColumns = `id, student_id, student_email, student_name, form_type_id, status,
       field_values, evaluation_date, signatures, created_by, created_at, updated_at`

// AssessmentRepository persists assessment records.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Create inserts a new assessment record row.
func (r *AssessmentRepository) Create(ctx context.Context, record *models.AssessmentRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	const query = `INSERT INTO assessment_records
	(id, student_id, student_email, student_name, form_type_id, status, field_values, evaluation_date, signatures, created_by, created_at, updated_at)
	VALUES (:id, :student_id, :student_email, :student_name, :form_type_id, :status, :field_values, :evaluation_date, :signatures, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create assessment record: %w", err)
	}
	return nil
}

// GetByID fetches one record by identifier.
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*models.AssessmentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM assessment_records WHERE id = $1 LIMIT 1`, assessmentColumns)
	var record models.AssessmentRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get assessment record: %w", err)
	}
	return &record, nil
}

// List returns records matching the filter, newest first.
func (r *AssessmentRepository) List(ctx context.Context, filter models.AssessmentFilter) ([]models.AssessmentRecord, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM assessment_records", assessmentColumns))

	conditions := make([]string, 0, 3)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.FormTypeID != "" {
		args = append(args, filter.FormTypeID)
		conditions = append(conditions, fmt.Sprintf("form_type_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY updated_at DESC, created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var records []models.AssessmentRecord
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list assessment records: %w", err)
	}
	return records, nil
}

// Latest returns the most recently updated record for one student and form
// type, or sql.ErrNoRows when the student has no attempt yet.
func (r *AssessmentRepository) Latest(ctx context.Context, studentID, formTypeID string) (*models.AssessmentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM assessment_records
	WHERE student_id = $1 AND form_type_id = $2
	ORDER BY updated_at DESC, created_at DESC LIMIT 1`, assessmentColumns)
	var record models.AssessmentRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, formTypeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("latest assessment record: %w", err)
	}
	return &record, nil
}

// Update persists the mutable columns of a record. The status guard keeps a
// concurrent transition from silently overwriting a record that already moved
// on.
func (r *AssessmentRepository) Update(ctx context.Context, record *models.AssessmentRecord, expectedStatus models.AssessmentStatus) error {
	const query = `UPDATE assessment_records
	SET status = :status, field_values = :field_values, evaluation_date = :evaluation_date,
	    signatures = :signatures, updated_at = :updated_at
	WHERE id = :id AND status = :expected_status`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":              record.ID,
		"status":          record.Status,
		"field_values":    record.FieldValues,
		"evaluation_date": record.EvaluationDate,
		"signatures":      record.Signatures,
		"updated_at":      record.UpdatedAt,
		"expected_status": expectedStatus,
	})
	if err != nil {
		return fmt.Errorf("update assessment record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check assessment update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus returns the number of records per status for one student.
func (r *AssessmentRepository) CountByStatus(ctx context.Context, studentID string) (map[models.AssessmentStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM assessment_records WHERE student_id = $1 GROUP BY status`
	rows, err := r.db.QueryxContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("count assessment records: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.AssessmentStatus]int)
	for rows.Next() {
		var (
			status models.AssessmentStatus
			total  int
		)
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan assessment count: %w", err)
		}
		counts[status] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessment counts: %w", err)
	}
	return counts, nil
}
