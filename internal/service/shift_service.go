package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pharmedu/training-api/internal/dto"
	"github.com/pharmedu/training-api/internal/models"
	appErrors "github.com/pharmedu/training-api/pkg/errors"
	"github.com/pharmedu/training-api/pkg/sheets"
)

type shiftStore interface {
	List(ctx context.Context, filter models.ShiftFilter) ([]models.Shift, error)
	ReplaceAll(ctx context.Context, shifts []models.Shift, syncedAt time.Time) error
	LastSyncedAt(ctx context.Context) (time.Time, error)
}

type rosterSource interface {
	FetchRoster(ctx context.Context) ([]sheets.RosterRow, error)
}

type shiftAuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ShiftService serves the duty roster and syncs it from the department
// spreadsheet.
type ShiftService struct {
	repo   shiftStore
	source rosterSource
	audit  shiftAuditRecorder
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewShiftService constructs the service. Source may be nil when spreadsheet
// sync is disabled; List keeps working off the last synced rows.
func NewShiftService(repo shiftStore, source rosterSource, audit shiftAuditRecorder, cache *CacheService, logger *zap.Logger) *ShiftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShiftService{repo: repo, source: source, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// List returns roster entries matching the filter.
func (s *ShiftService) List(ctx context.Context, filter models.ShiftFilter) ([]models.Shift, error) {
	shifts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list shifts")
	}
	return shifts, nil
}

// LastSyncedAt reports when the roster was last refreshed.
func (s *ShiftService) LastSyncedAt(ctx context.Context) (time.Time, error) {
	ts, err := s.repo.LastSyncedAt(ctx)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read sync stamp")
	}
	return ts, nil
}

// Sync pulls the spreadsheet and replaces the stored roster. Rows with no
// duty role are skipped rather than failing the whole run.
func (s *ShiftService) Sync(ctx context.Context, actorID string) (*dto.ShiftSyncResponse, error) {
	if s.source == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet sync is disabled")
	}
	rows, err := s.source.FetchRoster(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch roster")
	}

	syncedAt := s.now().UTC()
	shifts := make([]models.Shift, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.DutyRole) == "" {
			continue
		}
		shifts = append(shifts, models.Shift{
			DutyRole:  strings.TrimSpace(row.DutyRole),
			Station:   strings.TrimSpace(row.Station),
			DayOfWeek: strings.ToUpper(strings.TrimSpace(row.DayOfWeek)),
			StartTime: strings.TrimSpace(row.StartTime),
			EndTime:   strings.TrimSpace(row.EndTime),
			Notes:     strings.TrimSpace(row.Notes),
		})
	}
	if err := s.repo.ReplaceAll(ctx, shifts, syncedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store roster")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "shifts:*"); err != nil {
			s.logger.Warn("failed to invalidate shift cache", zap.Error(err))
		}
	}
	if s.audit != nil {
		payload, _ := json.Marshal(map[string]interface{}{"imported": len(shifts)})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:    &actorID,
			Action:    models.AuditActionShiftSync,
			Resource:  "shift",
			NewValues: payload,
		}); err != nil {
			s.logger.Warn("failed to record shift sync audit log", zap.Error(err))
		}
	}

	s.logger.Info("duty roster synced", zap.Int("imported", len(shifts)))
	return &dto.ShiftSyncResponse{Imported: len(shifts), SyncedAt: syncedAt.Format(time.RFC3339)}, nil
}
