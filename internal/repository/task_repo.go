package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/adnreport/internal/domain"
	"gorm.io/gorm"
)

// TaskRepository handles report task status operations.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *TaskRepository: repository instance bound to db.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new task. Tasks are normally created by the scheduler;
// this exists for tooling and tests.
func (r *TaskRepository) Create(ctx context.Context, task *domain.ReportTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID retrieves a task by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: task ID.
// Returns:
//   - *domain.ReportTask: task record if found.
//   - error: gorm.ErrRecordNotFound when missing, or the query error.
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*domain.ReportTask, error) {
	var task domain.ReportTask
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// Claim marks a task RUNNING unless another run holds it. A RUNNING task
// whose updated_at is before staleBefore is treated as abandoned and can be
// claimed again; a zero staleBefore never reclaims.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: task ID.
//   - staleBefore: lease cutoff for RUNNING tasks.
// Returns:
//   - bool: true if this call moved the task to RUNNING.
//   - error: non-nil if the update fails.
func (r *TaskRepository) Claim(ctx context.Context, id int64, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.ReportTask{}).
		Where("id = ?", id).
		Where("(status <> ? OR updated_at < ?)", domain.TaskStatusRunning, staleBefore).
		Updates(map[string]interface{}{
			"status": domain.TaskStatusRunning,
			"msg":    "",
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim task: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Finish records the final status of a run and increments the run count.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: task ID.
//   - status: final status.
//   - msg: final error text; may be empty.
//   - durationMs: wall-clock duration of the run.
// Returns:
//   - error: non-nil if the update fails.
func (r *TaskRepository) Finish(ctx context.Context, id int64, status domain.TaskStatus, msg string, durationMs int64) error {
	return r.db.WithContext(ctx).Model(&domain.ReportTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"msg":         msg,
			"duration_ms": durationMs,
			"run_count":   gorm.Expr("run_count + 1"),
		}).Error
}

// UpdateRequestURL stores the report URL a run is about to request.
func (r *TaskRepository) UpdateRequestURL(ctx context.Context, id int64, url string) error {
	if err := r.db.WithContext(ctx).Model(&domain.ReportTask{}).
		Where("id = ?", id).
		Update("req_url", url).Error; err != nil {
		return fmt.Errorf("failed to update request url: %w", err)
	}
	return nil
}

// ListRunnable returns tasks the dispatcher may run, oldest report day
// first: pending or failed tasks under their run budget, plus RUNNING tasks
// whose lease expired before staleBefore. Tasks without an app id are never
// returned; they are rejected on every run and would crowd out valid work.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of tasks to return.
//   - maxRunCount: tasks with run_count at or above this are skipped; 0 disables the cap.
//   - staleBefore: lease cutoff for RUNNING tasks; zero never reclaims.
// Returns:
//   - []domain.ReportTask: runnable tasks.
//   - error: non-nil if the query fails.
func (r *TaskRepository) ListRunnable(ctx context.Context, limit, maxRunCount int, staleBefore time.Time) ([]domain.ReportTask, error) {
	query := r.db.WithContext(ctx).
		Where("TRIM(adn_app_id) <> ''").
		Where("(status IN ? OR (status = ? AND updated_at < ?))",
			[]domain.TaskStatus{domain.TaskStatusPending, domain.TaskStatusFailed},
			domain.TaskStatusRunning, staleBefore)
	if maxRunCount > 0 {
		query = query.Where("run_count < ?", maxRunCount)
	}

	var tasks []domain.ReportTask
	if err := query.
		Order("day ASC").
		Order("id ASC").
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list runnable tasks: %w", err)
	}
	return tasks, nil
}
