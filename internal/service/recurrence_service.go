package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"todoapp/internal/model"
	"todoapp/internal/repository"
)

// RecurrenceService creates the next occurrence of completed recurring tasks.
type RecurrenceService interface {
	// RollOver processes every pending task and returns how many new
	// occurrences were created.
	RollOver(ctx context.Context) (int, error)
}

type recurrenceService struct {
	repo repository.TaskRepository
	log  *logrus.Logger
	now  func() time.Time
}

// NewRecurrenceService creates a new recurrence service.
func NewRecurrenceService(repo repository.TaskRepository, log *logrus.Logger) RecurrenceService {
	return &recurrenceService{repo: repo, log: log, now: time.Now}
}

func (s *recurrenceService) RollOver(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPendingRollover(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending rollover: %w", err)
	}

	created := 0
	now := s.now().UTC()
	for i := range pending {
		original := &pending[i]
		next := NextOccurrence(original, now)

		err := s.repo.Rollover(ctx, original.ID, next)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// already handled by a concurrent run
			continue
		case err != nil:
			return created, fmt.Errorf("roll over task %s: %w", original.ID, err)
		}

		created++
		s.log.WithFields(logrus.Fields{
			"username": original.OwnerUsername,
			"task_id":  original.ID,
			"next_id":  next.ID,
		}).Info("recurring task rolled over")
	}
	return created, nil
}

// NextOccurrence builds the open follow-up of a recurring task. Subtasks are
// copied as open with fresh ids and the end time moves by one period.
func NextOccurrence(task *model.Task, now time.Time) *model.Task {
	next := &model.Task{
		OwnerUsername: task.OwnerUsername,
		Text:          task.Text,
		StartTime:     now,
		Priority:      task.Priority,
		Category:      task.Category,
		Tags:          append([]string{}, task.Tags...),
		Recurrence:    task.Recurrence,
		Subtasks:      make([]model.Subtask, 0, len(task.Subtasks)),
		CreatedAt:     now,
	}
	if task.EndTime != nil {
		end := task.Recurrence.Next(*task.EndTime)
		next.EndTime = &end
	}
	for _, sub := range task.Subtasks {
		next.Subtasks = append(next.Subtasks, model.NewSubtask(sub.Text))
	}
	return next
}
