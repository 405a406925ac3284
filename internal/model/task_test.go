package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		raw    string
		want   Priority
		wantOK bool
	}{
		{"", PriorityMedium, true},
		{"High", PriorityHigh, true},
		{" low ", PriorityLow, true},
		{"MEDIUM", PriorityMedium, true},
		{"urgent", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParsePriority(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Equal(t, PriorityMedium.Rank(), Priority("bogus").Rank())
}

func TestParseRecurrence(t *testing.T) {
	tests := []struct {
		raw    string
		want   Recurrence
		wantOK bool
	}{
		{"", RecurrenceNone, true},
		{"none", RecurrenceNone, true},
		{"Daily", RecurrenceDaily, true},
		{"weekly", RecurrenceWeekly, true},
		{" MONTHLY", RecurrenceMonthly, true},
		{"hourly", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseRecurrence(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecurrenceNext(t *testing.T) {
	base := time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, base, RecurrenceNone.Next(base))
	assert.Equal(t, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), RecurrenceDaily.Next(base))
	assert.Equal(t, time.Date(2024, 2, 7, 9, 0, 0, 0, time.UTC), RecurrenceWeekly.Next(base))
	// time.AddDate normalizes Feb 31 into March.
	assert.Equal(t, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), RecurrenceMonthly.Next(base))
}

func TestTask_Subtasks(t *testing.T) {
	a, b := NewSubtask("a"), NewSubtask("b")
	require.NotEqual(t, a.ID, b.ID)
	b.Completed = true
	task := &Task{Subtasks: []Subtask{a, b}}

	assert.Equal(t, 1, task.CompletedSubtasks())

	got, ok := task.Subtask(a.ID)
	require.True(t, ok)
	got.Completed = true
	assert.Equal(t, 2, task.CompletedSubtasks())

	assert.True(t, task.RemoveSubtask(a.ID))
	assert.False(t, task.RemoveSubtask(a.ID))
	require.Len(t, task.Subtasks, 1)
	assert.Equal(t, "b", task.Subtasks[0].Text)

	_, ok = task.Subtask("missing")
	assert.False(t, ok)
}

func TestTask_HasTag(t *testing.T) {
	task := &Task{Tags: []string{"work", "q1"}}

	assert.True(t, task.HasTag("q1"))
	assert.True(t, task.HasTag("home", "work"))
	assert.False(t, task.HasTag("Work"))
	assert.False(t, task.HasTag())
}

func TestTask_MarkCompleted(t *testing.T) {
	first := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	t.Run("backfills end time", func(t *testing.T) {
		task := &Task{}
		task.MarkCompleted(first)
		assert.True(t, task.Completed)
		require.NotNil(t, task.CompletedAt)
		require.NotNil(t, task.EndTime)
		assert.Equal(t, first, *task.EndTime)
	})

	t.Run("keeps existing end time", func(t *testing.T) {
		end := first.Add(-24 * time.Hour)
		task := &Task{EndTime: &end}
		task.MarkCompleted(first)
		assert.Equal(t, end, *task.EndTime)
		assert.Equal(t, first, *task.CompletedAt)
	})

	t.Run("repeat keeps first completion", func(t *testing.T) {
		task := &Task{}
		task.MarkCompleted(first)
		task.MarkCompleted(later)
		assert.Equal(t, first, *task.CompletedAt)
		assert.Equal(t, first, *task.EndTime)
	})
}
