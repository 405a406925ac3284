package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"todoapp/internal/logging"
	"todoapp/internal/model"
	"todoapp/internal/repository"
)

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC)
	completedAt := now.Add(-time.Hour)

	original := &model.Task{
		ID:            "orig",
		OwnerUsername: "alice",
		Text:          "Pay rent",
		Completed:     true,
		CompletedAt:   &completedAt,
		EndTime:       &end,
		Priority:      model.PriorityHigh,
		Category:      "Home",
		Tags:          []string{"bills"},
		Recurrence:    model.RecurrenceMonthly,
		Subtasks:      []model.Subtask{{ID: "s1", Text: "transfer", Completed: true}},
	}

	next := NextOccurrence(original, now)

	assert.Empty(t, next.ID)
	assert.Equal(t, "alice", next.OwnerUsername)
	assert.Equal(t, "Pay rent", next.Text)
	assert.False(t, next.Completed)
	assert.Nil(t, next.CompletedAt)
	assert.Equal(t, model.PriorityHigh, next.Priority)
	assert.Equal(t, "Home", next.Category)
	assert.Equal(t, []string{"bills"}, next.Tags)
	assert.Equal(t, model.RecurrenceMonthly, next.Recurrence)
	assert.True(t, next.StartTime.Equal(now))
	require.NotNil(t, next.EndTime)
	assert.True(t, next.EndTime.Equal(end.AddDate(0, 1, 0)))

	require.Len(t, next.Subtasks, 1)
	assert.Equal(t, "transfer", next.Subtasks[0].Text)
	assert.False(t, next.Subtasks[0].Completed)
	assert.NotEqual(t, "s1", next.Subtasks[0].ID)

	next.Tags[0] = "changed"
	assert.Equal(t, "bills", original.Tags[0])

	original.EndTime = nil
	assert.Nil(t, NextOccurrence(original, now).EndTime)
}

func TestRecurrenceService_RollOver(t *testing.T) {
	gdb := newTestDB(t)
	tasks, _ := newTestTaskService(t, gdb)
	svc := NewRecurrenceService(repository.NewTaskRepository(gdb), logging.Discard())
	ctx := context.Background()

	due := time.Date(2024, 3, 11, 18, 0, 0, 0, time.UTC)
	daily, err := tasks.Add(ctx, AddTaskInput{
		Owner:      "alice",
		Text:       "Stretch",
		EndTime:    &due,
		Recurrence: "daily",
		Subtasks:   []string{"neck", "back"},
	})
	require.NoError(t, err)
	_, err = tasks.Add(ctx, AddTaskInput{Owner: "alice", Text: "Open weekly", Recurrence: "weekly"})
	require.NoError(t, err)
	oneOff, err := tasks.Add(ctx, AddTaskInput{Owner: "alice", Text: "One-off"})
	require.NoError(t, err)

	_, err = tasks.CompleteSubtask(ctx, daily.Subtasks[0].ID)
	require.NoError(t, err)
	_, err = tasks.Complete(ctx, daily.ID)
	require.NoError(t, err)
	_, err = tasks.Complete(ctx, oneOff.ID)
	require.NoError(t, err)

	created, err := svc.RollOver(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = svc.RollOver(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	stretches, err := tasks.Search(ctx, "alice", "stretch")
	require.NoError(t, err)
	require.Len(t, stretches, 2)

	var next *model.Task
	for i := range stretches {
		if stretches[i].ID != daily.ID {
			next = &stretches[i]
		}
	}
	require.NotNil(t, next)
	assert.False(t, next.Completed)
	require.NotNil(t, next.EndTime)
	assert.True(t, next.EndTime.Equal(due.AddDate(0, 0, 1)))
	require.Len(t, next.Subtasks, 2)
	for i, sub := range next.Subtasks {
		assert.False(t, sub.Completed)
		assert.NotEqual(t, daily.Subtasks[i].ID, sub.ID)
	}

	progress, err := tasks.SubtaskProgress(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, progress)
}

func TestRecurrenceService_SkipsConcurrentRollover(t *testing.T) {
	repo := new(MockTaskRepository)
	pending := []model.Task{
		{ID: "a", OwnerUsername: "alice", Text: "A", Recurrence: model.RecurrenceDaily, Completed: true},
		{ID: "b", OwnerUsername: "alice", Text: "B", Recurrence: model.RecurrenceWeekly, Completed: true},
	}
	repo.On("ListPendingRollover", mock.Anything).Return(pending, nil)
	repo.On("Rollover", mock.Anything, "a", mock.AnythingOfType("*model.Task")).Return(repository.ErrNotFound)
	repo.On("Rollover", mock.Anything, "b", mock.AnythingOfType("*model.Task")).Return(nil)

	svc := NewRecurrenceService(repo, logging.Discard())
	created, err := svc.RollOver(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	repo.AssertExpectations(t)
}

func TestRecurrenceService_StopsOnStoreFailure(t *testing.T) {
	boom := errors.New("disk full")
	repo := new(MockTaskRepository)
	repo.On("ListPendingRollover", mock.Anything).
		Return([]model.Task{{ID: "a", Recurrence: model.RecurrenceDaily, Completed: true}}, nil)
	repo.On("Rollover", mock.Anything, "a", mock.AnythingOfType("*model.Task")).Return(boom)

	svc := NewRecurrenceService(repo, logging.Discard())
	created, err := svc.RollOver(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, created)
}
