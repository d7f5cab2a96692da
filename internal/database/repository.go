package database

import (
	"time"

	"github.com/actionsum/wsbridge/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when an update matches no row
var ErrNotFound = errors.New("record not found")

// Repository handles all database operations for focus spans and error logs
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateSpan inserts a new focus span
func (r *Repository) CreateSpan(span *models.FocusSpan) error {
	if result := r.db.Create(span); result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert focus span")
	}
	return nil
}

// UpdateDuration updates only the duration of a span
func (r *Repository) UpdateDuration(id uint, duration int64) error {
	result := r.db.Model(&models.FocusSpan{}).Where("id = ?", id).Update("duration", duration)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update span duration")
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "span %d", id)
	}
	return nil
}

// GetLatestSpan returns the most recent span, or nil when the journal is empty
func (r *Repository) GetLatestSpan() (*models.FocusSpan, error) {
	var span models.FocusSpan
	result := r.db.Order("timestamp DESC").First(&span)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest span")
	}
	return &span, nil
}

// GetSpansSince returns all spans that started at or after since, oldest first
func (r *Repository) GetSpansSince(since time.Time) ([]*models.FocusSpan, error) {
	var spans []*models.FocusSpan
	result := r.db.Where("timestamp >= ?", since).Order("timestamp ASC").Find(&spans)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query focus spans")
	}
	return spans, nil
}

// GetWorkspaceSummarySince aggregates focus time per workspace name
func (r *Repository) GetWorkspaceSummarySince(since time.Time) ([]models.WorkspaceSummary, error) {
	var summaries []models.WorkspaceSummary

	result := r.db.Model(&models.FocusSpan{}).
		Select("workspace_name, SUM(duration) as total_seconds, COUNT(*) as span_count").
		Where("timestamp >= ?", since).
		Group("workspace_name").
		Order("total_seconds DESC").
		Scan(&summaries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query workspace summary")
	}

	return summaries, nil
}

// DeleteSpansBefore soft deletes spans older than before
func (r *Repository) DeleteSpansBefore(before time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", before).Delete(&models.FocusSpan{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old spans")
	}
	return result.RowsAffected, nil
}

// Clear removes every focus span
func (r *Repository) Clear() error {
	if result := r.db.Exec("DELETE FROM focus_spans"); result.Error != nil {
		return errors.Wrap(result.Error, "failed to clear focus spans")
	}
	return nil
}

// CreateErrorLog inserts a new error log
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	if result := r.db.Create(errorLog); result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// GetRecentErrors returns up to limit error logs, newest first
func (r *Repository) GetRecentErrors(limit int) ([]*models.ErrorLog, error) {
	var logs []*models.ErrorLog
	result := r.db.Order("timestamp DESC").Limit(limit).Find(&logs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query error logs")
	}
	return logs, nil
}
