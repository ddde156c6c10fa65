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

const sopColumns = `id, code, title, category, keywords, document_url, version, active, created_at, updated_at`

// SOPRepository persists standard operating procedure entries.
type SOPRepository struct {
	db *sqlx.DB
}

// NewSOPRepository constructs the repository.
func NewSOPRepository(db *sqlx.DB) *SOPRepository {
	return &SOPRepository{db: db}
}

// Create inserts a new SOP entry.
func (r *SOPRepository) Create(ctx context.Context, sop *models.SOP) error {
	if sop.ID == "" {
		sop.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sop.CreatedAt.IsZero() {
		sop.CreatedAt = now
	}
	sop.UpdatedAt = now
	if sop.Version <= 0 {
		sop.Version = 1
	}
	const query = `INSERT INTO sops (id, code, title, category, keywords, document_url, version, active, created_at, updated_at)
	VALUES (:id, :code, :title, :category, :keywords, :document_url, :version, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sop); err != nil {
		return fmt.Errorf("create sop: %w", err)
	}
	return nil
}

// GetByID fetches one SOP entry.
func (r *SOPRepository) GetByID(ctx context.Context, id string) (*models.SOP, error) {
	query := fmt.Sprintf(`SELECT %s FROM sops WHERE id = $1 LIMIT 1`, sopColumns)
	var sop models.SOP
	if err := r.db.GetContext(ctx, &sop, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get sop: %w", err)
	}
	return &sop, nil
}

// List returns SOP entries matching the filter with a total count. The text
// query matches code, title and keywords.
func (r *SOPRepository) List(ctx context.Context, filter models.SOPFilter) ([]models.SOP, int, error) {
	baseQuery := `FROM sops WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Query != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(code) LIKE $%d OR LOWER(title) LIKE $%d OR LOWER(keywords) LIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Query)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY code ASC LIMIT %d OFFSET %d", sopColumns, baseQuery, pageSize, offset)
	var sops []models.SOP
	if err := r.db.SelectContext(ctx, &sops, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list sops: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sops: %w", err)
	}
	return sops, total, nil
}

// Update updates mutable fields of a SOP entry and bumps its version.
func (r *SOPRepository) Update(ctx context.Context, sop *models.SOP) error {
	sop.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sops SET code = :code, title = :title, category = :category, keywords = :keywords,
	document_url = :document_url, version = version + 1, active = :active, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, sop)
	if err != nil {
		return fmt.Errorf("update sop: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check sop update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate hides a SOP entry without destroying the document history.
func (r *SOPRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE sops SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate sop: %w", err)
	}
	return nil
}
