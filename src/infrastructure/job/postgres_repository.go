package job

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
)

// PostgresJobRepository persists jobs in the jobs table. Rows outlive the
// queue messages that reference them, so a job's outcome is queryable after
// the reindex worker is done with it.
type PostgresJobRepository struct {
	db *gorm.DB
}

func NewPostgresJobRepository(db *gorm.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

// Create inserts a pending job row and returns it with its assigned id.
func (r *PostgresJobRepository) Create(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error) {
	entry := &Job{
		TaskType: taskType,
		Payload:  payload,
		Status:   JobStatusPending,
	}

	if result := r.db.WithContext(ctx).Create(entry); result.Error != nil {
		return nil, result.Error
	}

	return entry, nil
}

// Get returns the job with the given id, or nil when no such row exists.
func (r *PostgresJobRepository) Get(ctx context.Context, id int) (*Job, error) {
	var entry Job
	if result := r.db.WithContext(ctx).First(&entry, id); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return &entry, nil
}

// UpdateStatus records a status transition, clearing or setting the error
// column alongside it.
func (r *PostgresJobRepository) UpdateStatus(ctx context.Context, id int, status JobStatus, errStr *string) error {
	result := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status": status,
		"error":  errStr,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("job not found")
	}

	return nil
}
