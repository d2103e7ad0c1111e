package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/juspay/hyperswitch-sub035/internal/repo"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

// TrackerUpdate is the mutable subset of a process tracker row.
type TrackerUpdate struct {
	Status         *enums.ProcessTrackerStatus
	BusinessStatus *string
	RetryCount     *int
	FailureCount   *int
	ScheduleTime   *time.Time
	TrackingData   []byte
}

func (u TrackerUpdate) columns() map[string]any {
	cols := map[string]any{"updated_at": time.Now().UTC()}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.BusinessStatus != nil {
		cols["business_status"] = *u.BusinessStatus
	}
	if u.RetryCount != nil {
		cols["retry_count"] = *u.RetryCount
	}
	if u.FailureCount != nil {
		cols["failure_count"] = *u.FailureCount
	}
	if u.ScheduleTime != nil {
		cols["schedule_time"] = u.ScheduleTime.UTC()
	}
	if u.TrackingData != nil {
		cols["tracking_data"] = u.TrackingData
	}
	return cols
}

type ProcessTrackerRepository struct {
	base repo.Base
}

func NewProcessTrackerRepository(provider db.Provider) *ProcessTrackerRepository {
	return &ProcessTrackerRepository{base: repo.NewBase(provider)}
}

func (r *ProcessTrackerRepository) WithTx(tx *gorm.DB) *ProcessTrackerRepository {
	return &ProcessTrackerRepository{base: r.base.WithTx(tx)}
}

func (r *ProcessTrackerRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB, txRepo *ProcessTrackerRepository) error) error {
	return r.base.Transaction(ctx, func(tx *gorm.DB) error {
		return fn(tx, r.WithTx(tx))
	})
}

// Find returns the row with id, or nil when it does not exist.
func (r *ProcessTrackerRepository) Find(ctx context.Context, id string) (*models.ProcessTracker, error) {
	var tracker models.ProcessTracker
	err := r.base.DB(ctx).Where("id = ?", id).First(&tracker).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &tracker, nil
}

func (r *ProcessTrackerRepository) Insert(ctx context.Context, tracker *models.ProcessTracker) error {
	if tracker == nil {
		return errors.New("process tracker is required")
	}
	return r.base.DB(ctx).Create(tracker).Error
}

// InsertIfAbsent inserts tracker unless a row with the same id exists, and
// returns the stored row either way.
func (r *ProcessTrackerRepository) InsertIfAbsent(ctx context.Context, tracker *models.ProcessTracker) (*models.ProcessTracker, bool, error) {
	if tracker == nil {
		return nil, false, errors.New("process tracker is required")
	}
	res := r.base.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(tracker)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return tracker, true, nil
	}
	existing, err := r.Find(ctx, tracker.ID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errors.New("process tracker vanished after conflict")
	}
	return existing, false, nil
}

// Update applies upd to the row only while its status is one of from. It
// reports whether the row was updated; false means another consumer moved it.
func (r *ProcessTrackerRepository) Update(ctx context.Context, id string, from []enums.ProcessTrackerStatus, upd TrackerUpdate) (bool, error) {
	q := r.base.DB(ctx).Model(&models.ProcessTracker{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.Updates(upd.columns())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindDue returns rows of runner that are ready to run at now.
func (r *ProcessTrackerRepository) FindDue(ctx context.Context, runner string, now time.Time, limit int) ([]models.ProcessTracker, error) {
	var rows []models.ProcessTracker
	q := r.base.DB(ctx).
		Where("status IN ?", []enums.ProcessTrackerStatus{enums.ProcessTrackerStatusNew, enums.ProcessTrackerStatusPending}).
		Where("schedule_time IS NOT NULL AND schedule_time <= ?", now.UTC())
	if runner != "" {
		q = q.Where("runner = ?", runner)
	}
	err := q.Order("schedule_time ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

// FindStale returns rows left in ProcessStarted since before cutoff.
func (r *ProcessTrackerRepository) FindStale(ctx context.Context, cutoff time.Time, limit int) ([]models.ProcessTracker, error) {
	var rows []models.ProcessTracker
	err := r.base.DB(ctx).
		Where("status = ?", enums.ProcessTrackerStatusProcessStarted).
		Where("updated_at < ?", cutoff.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListByRunner returns the newest rows of runner.
func (r *ProcessTrackerRepository) ListByRunner(ctx context.Context, runner string, limit int) ([]models.ProcessTracker, error) {
	var rows []models.ProcessTracker
	err := r.base.DB(ctx).
		Where("runner = ?", runner).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
