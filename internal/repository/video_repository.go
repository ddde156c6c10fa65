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

const videoColumns = `id, title, description, url, topic, duration_sec, active, created_at, updated_at`

// VideoRepository persists training video gallery entries.
type VideoRepository struct {
	db *sqlx.DB
}

// NewVideoRepository constructs the repository.
func NewVideoRepository(db *sqlx.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create inserts a new video entry.
func (r *VideoRepository) Create(ctx context.Context, video *models.Video) error {
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}
	video.UpdatedAt = now
	const query = `INSERT INTO videos (id, title, description, url, topic, duration_sec, active, created_at, updated_at)
	VALUES (:id, :title, :description, :url, :topic, :duration_sec, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, video); err != nil {
		return fmt.Errorf("create video: %w", err)
	}
	return nil
}

// GetByID fetches one video entry.
func (r *VideoRepository) GetByID(ctx context.Context, id string) (*models.Video, error) {
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE id = $1 LIMIT 1`, videoColumns)
	var video models.Video
	if err := r.db.GetContext(ctx, &video, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get video: %w", err)
	}
	return &video, nil
}

// List returns gallery entries matching the filter with a total count.
func (r *VideoRepository) List(ctx context.Context, filter models.VideoFilter) ([]models.Video, int, error) {
	baseQuery := `FROM videos WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Topic != "" {
		conditions = append(conditions, fmt.Sprintf("topic = $%d", len(args)+1))
		args = append(args, filter.Topic)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Query != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", videoColumns, baseQuery, pageSize, offset)
	var videos []models.Video
	if err := r.db.SelectContext(ctx, &videos, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list videos: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}
	return videos, total, nil
}

// Update updates mutable fields of a video entry.
func (r *VideoRepository) Update(ctx context.Context, video *models.Video) error {
	video.UpdatedAt = time.Now().UTC()
	const query = `UPDATE videos SET title = :title, description = :description, url = :url, topic = :topic,
	duration_sec = :duration_sec, active = :active, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, video)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check video update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate hides a video from the gallery.
func (r *VideoRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE videos SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate video: %w", err)
	}
	return nil
}
