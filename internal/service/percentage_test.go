package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"todoapp/internal/model"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name        string
		done, total int
		want        int
	}{
		{"empty", 0, 0, 0},
		{"none done", 0, 4, 0},
		{"all done", 4, 4, 100},
		{"half", 1, 2, 50},
		{"half-up at 12.5", 1, 8, 13},
		{"half-up at 62.5", 5, 8, 63},
		{"half-up at 0.5", 1, 200, 1},
		{"odd total below half", 1, 3, 33},
		{"odd total above half", 2, 3, 67},
		{"odd total near half", 3, 7, 43},
		{"odd total just over half", 4, 7, 57},
		{"never 100 while one is open", 199, 200, 99},
		{"never 100 while one is open, large", 399, 400, 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percent(tt.done, tt.total))
		})
	}
}

func TestCompletionPercentage(t *testing.T) {
	assert.Equal(t, 0, CompletionPercentage(nil))
	assert.Equal(t, 0, CompletionPercentage([]model.Task{}))

	mixed := []model.Task{{Completed: true}, {Completed: false}, {Completed: true}}
	assert.Equal(t, 67, CompletionPercentage(mixed))

	for n := 1; n <= 9; n++ {
		tasks := make([]model.Task, n)
		for done := 0; done <= n; done++ {
			for i := range tasks {
				tasks[i].Completed = i < done
			}
			pct := CompletionPercentage(tasks)
			assert.GreaterOrEqual(t, pct, 0)
			assert.LessOrEqual(t, pct, 100)
			assert.Equal(t, done == n, pct == 100, "n=%d done=%d", n, done)
		}
	}
}

func TestPercentagesStayBelowHundredWhileWorkIsOpen(t *testing.T) {
	tasks := make([]model.Task, 200)
	for i := range tasks {
		tasks[i].Completed = i > 0
	}
	assert.Equal(t, 99, CompletionPercentage(tasks))
	tasks[0].Completed = true
	assert.Equal(t, 100, CompletionPercentage(tasks))

	task := &model.Task{Subtasks: make([]model.Subtask, 250)}
	for i := 1; i < len(task.Subtasks); i++ {
		task.Subtasks[i].Completed = true
	}
	assert.Equal(t, 99, SubtaskPercentage(task))
}

func TestSubtaskPercentage(t *testing.T) {
	assert.Equal(t, 100, SubtaskPercentage(&model.Task{}))

	task := &model.Task{Subtasks: []model.Subtask{{Completed: true}, {}, {}}}
	assert.Equal(t, 33, SubtaskPercentage(task))
}
