package service

import (
	"github.com/shopspring/decimal"

	"todoapp/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Percent returns 100*done/total rounded half-up to an integer, computed
// exactly. A zero total yields 0. Only a fully done set reports 100, so
// 199 of 200 gives 99.
func Percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	ratio := decimal.NewFromInt(int64(done)).Mul(hundred).Div(decimal.NewFromInt(int64(total)))
	pct := int(ratio.Round(0).IntPart())
	if pct == 100 && done < total {
		return 99
	}
	return pct
}

// CompletionPercentage returns the share of completed tasks, 0 for no tasks.
// The result follows Percent: it stays at 99 until every task is completed.
func CompletionPercentage(tasks []model.Task) int {
	done := 0
	for _, t := range tasks {
		if t.Completed {
			done++
		}
	}
	return Percent(done, len(tasks))
}

// SubtaskPercentage returns the share of completed subtasks, capped at 99
// while any subtask is open. A task without subtasks counts as fully done.
func SubtaskPercentage(task *model.Task) int {
	if len(task.Subtasks) == 0 {
		return 100
	}
	return Percent(task.CompletedSubtasks(), len(task.Subtasks))
}
