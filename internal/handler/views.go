package handler

import (
	"time"

	"todoapp/internal/model"
	"todoapp/internal/service"
	"todoapp/internal/timefmt"
)

const (
	fallbackNotAvailable = "Not available"
	fallbackNotSet       = "Not set"
)

// UserView is the public shape of a user.
type UserView struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	CreatedAt        time.Time `json:"created_at"`
	CreatedAtDisplay string    `json:"created_at_display"`
}

// SubtaskView is a subtask as rendered to clients.
type SubtaskView struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// TaskView is a task with raw timestamps and their display strings.
type TaskView struct {
	ID                 string        `json:"id"`
	Text               string        `json:"text"`
	Completed          bool          `json:"completed"`
	Priority           string        `json:"priority"`
	Category           string        `json:"category"`
	Tags               []string      `json:"tags"`
	Recurrence         string        `json:"recurrence"`
	StartTime          time.Time     `json:"start_time"`
	StartTimeDisplay   string        `json:"start_time_display"`
	EndTime            *time.Time    `json:"end_time"`
	EndTimeDisplay     string        `json:"end_time_display"`
	CompletedAt        *time.Time    `json:"completed_at"`
	CompletedAtDisplay string        `json:"completed_at_display"`
	CreatedAtDisplay   string        `json:"created_at_display"`
	Subtasks           []SubtaskView `json:"subtasks"`
	Progress           int           `json:"progress"`
}

// DashboardView is the overview page payload.
type DashboardView struct {
	Tasks              []TaskView     `json:"tasks"`
	Categories         []string       `json:"categories"`
	SelectedCategory   string         `json:"selected_category,omitempty"`
	Completion         int            `json:"completion_percentage"`
	CategoryCompletion map[string]int `json:"category_completion"`
}

// ProgressView reports subtask progress of one task.
type ProgressView struct {
	TaskID   string `json:"task_id"`
	Progress int    `json:"progress"`
}

func newUserView(zone *timefmt.Zone, u *model.User) UserView {
	return UserView{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		CreatedAt:        zone.In(u.CreatedAt),
		CreatedAtDisplay: zone.Format(&u.CreatedAt, fallbackNotAvailable),
	}
}

func newTaskView(zone *timefmt.Zone, t *model.Task) TaskView {
	subtasks := make([]SubtaskView, 0, len(t.Subtasks))
	for _, s := range t.Subtasks {
		subtasks = append(subtasks, SubtaskView{ID: s.ID, Text: s.Text, Completed: s.Completed})
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	return TaskView{
		ID:                 t.ID,
		Text:               t.Text,
		Completed:          t.Completed,
		Priority:           string(t.Priority),
		Category:           t.Category,
		Tags:               tags,
		Recurrence:         string(t.Recurrence),
		StartTime:          zone.In(t.StartTime),
		StartTimeDisplay:   zone.Format(&t.StartTime, fallbackNotAvailable),
		EndTime:            zone.InPtr(t.EndTime),
		EndTimeDisplay:     zone.Format(t.EndTime, fallbackNotSet),
		CompletedAt:        zone.InPtr(t.CompletedAt),
		CompletedAtDisplay: zone.Format(t.CompletedAt, fallbackNotSet),
		CreatedAtDisplay:   zone.Format(&t.CreatedAt, fallbackNotAvailable),
		Subtasks:           subtasks,
		Progress:           service.SubtaskPercentage(t),
	}
}

func newTaskViews(zone *timefmt.Zone, tasks []model.Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, newTaskView(zone, &tasks[i]))
	}
	return views
}
