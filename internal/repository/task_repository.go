package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"todoapp/internal/model"
)

// TaskRepository defines task persistence. Subtasks are part of the task
// record; every subtask mutation is a single atomic update of its owning task.
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, id string) (*model.Task, error)
	FindBySubtaskID(ctx context.Context, subtaskID string) (*model.Task, error)
	ListByOwner(ctx context.Context, owner string, filter TaskFilter) ([]model.Task, error)
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) (*model.Task, error)
	Delete(ctx context.Context, id string) error
	AppendSubtask(ctx context.Context, taskID string, subtask model.Subtask) (*model.Task, error)
	CompleteSubtask(ctx context.Context, subtaskID string) (*model.Task, error)
	DeleteSubtask(ctx context.Context, subtaskID string) error
	// ListPendingRollover returns completed recurring tasks whose next occurrence has not been created.
	ListPendingRollover(ctx context.Context) ([]model.Task, error)
	// Rollover flags original as rolled over and stores next. It returns
	// ErrNotFound when original is gone or was already rolled over.
	Rollover(ctx context.Context, originalID string, next *model.Task) error
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new GORM task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create stores a new task.
func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	normalize(task)
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", translateGormError(err))
	}
	return nil
}

// FindByID finds a task by ID.
func (r *taskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &task, nil
}

// FindBySubtaskID finds the task that embeds the given subtask.
func (r *taskRepository) FindBySubtaskID(ctx context.Context, subtaskID string) (*model.Task, error) {
	var task model.Task
	if err := r.whereSubtask(r.db.WithContext(ctx), subtaskID).First(&task).Error; err != nil {
		return nil, translateGormError(err)
	}
	if _, ok := task.Subtask(subtaskID); !ok {
		return nil, ErrNotFound
	}
	return &task, nil
}

// ListByOwner returns the owner's tasks in insertion order.
func (r *taskRepository) ListByOwner(ctx context.Context, owner string, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("owner_username = ?", owner)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	kw := strings.TrimSpace(filter.Keyword)
	// SQLite's LOWER only folds ASCII, so the keyword is matched in Go there.
	sqlite := r.db.Dialector.Name() == "sqlite"
	if kw != "" && !sqlite {
		q = q.Where("LOWER(text) LIKE ? ESCAPE '!'", "%"+likeEscape(strings.ToLower(kw))+"%")
	}

	var tasks []model.Task
	if err := q.Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if sqlite {
		tasks = filterByKeyword(tasks, kw)
	}
	return filterByTags(tasks, filter.Tags), nil
}

// MarkCompleted completes the task under a row lock.
func (r *taskRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) (*model.Task, error) {
	return r.mutate(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ?", id)
	}, func(task *model.Task) error {
		task.MarkCompleted(completedAt)
		return nil
	})
}

// Delete removes a task; deleting a missing task is not an error.
func (r *taskRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// AppendSubtask adds subtask to the end of the task's subtask list.
func (r *taskRepository) AppendSubtask(ctx context.Context, taskID string, subtask model.Subtask) (*model.Task, error) {
	return r.mutate(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ?", taskID)
	}, func(task *model.Task) error {
		task.Subtasks = append(task.Subtasks, subtask)
		return nil
	})
}

// CompleteSubtask flags the subtask as done inside its owning task.
func (r *taskRepository) CompleteSubtask(ctx context.Context, subtaskID string) (*model.Task, error) {
	return r.mutate(ctx, func(tx *gorm.DB) *gorm.DB {
		return r.whereSubtask(tx, subtaskID)
	}, func(task *model.Task) error {
		sub, ok := task.Subtask(subtaskID)
		if !ok {
			return ErrNotFound
		}
		sub.Completed = true
		return nil
	})
}

// DeleteSubtask removes the subtask from its owning task, if any.
func (r *taskRepository) DeleteSubtask(ctx context.Context, subtaskID string) error {
	_, err := r.mutate(ctx, func(tx *gorm.DB) *gorm.DB {
		return r.whereSubtask(tx, subtaskID)
	}, func(task *model.Task) error {
		if !task.RemoveSubtask(subtaskID) {
			return ErrNotFound
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (r *taskRepository) ListPendingRollover(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("completed = ? AND rolled_over = ? AND recurrence <> ?", true, false, model.RecurrenceNone).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list rollover tasks: %w", err)
	}
	return tasks, nil
}

func (r *taskRepository) Rollover(ctx context.Context, originalID string, next *model.Task) error {
	normalize(next)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Task{}).
			Where("id = ? AND rolled_over = ?", originalID, false).
			Update("rolled_over", true)
		if res.Error != nil {
			return fmt.Errorf("flag rollover: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Create(next).Error; err != nil {
			return fmt.Errorf("create next occurrence: %w", translateGormError(err))
		}
		return nil
	})
}

// mutate loads one task with a row lock, applies fn and saves the result in
// the same transaction. fn returning an error rolls everything back.
func (r *taskRepository) mutate(ctx context.Context, where func(*gorm.DB) *gorm.DB, fn func(*model.Task) error) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := where(tx.Clauses(clause.Locking{Strength: "UPDATE"})).First(&task).Error; err != nil {
			return translateGormError(err)
		}
		if err := fn(&task); err != nil {
			return err
		}
		normalize(&task)
		return tx.Save(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// whereSubtask matches rows whose serialized subtask list contains the id.
// Ids are validated as UUIDs first so they never carry LIKE wildcards.
func (r *taskRepository) whereSubtask(tx *gorm.DB, subtaskID string) *gorm.DB {
	if _, err := uuid.Parse(subtaskID); err != nil {
		return tx.Where("1 = 0")
	}
	return tx.Where("subtasks LIKE ?", `%"id":"`+subtaskID+`"%`)
}
