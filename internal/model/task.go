package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Priority orders tasks on the dashboard.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Rank returns the sort rank of the priority; unknown values sort with Medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// ParsePriority matches a priority name case-insensitively. Empty input yields Medium.
func ParsePriority(raw string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	case "medium":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	default:
		return "", false
	}
}

// Recurrence describes how often a task comes back after completion.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// ParseRecurrence matches a recurrence name case-insensitively. Empty input yields none.
func ParseRecurrence(raw string) (Recurrence, bool) {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(raw))); r {
	case "":
		return RecurrenceNone, true
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return r, true
	default:
		return "", false
	}
}

// Next returns t advanced by one recurrence period. RecurrenceNone returns t unchanged.
func (r Recurrence) Next(t time.Time) time.Time {
	switch r {
	case RecurrenceDaily:
		return t.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		return t.AddDate(0, 0, 7)
	case RecurrenceMonthly:
		return t.AddDate(0, 1, 0)
	default:
		return t
	}
}

// DefaultCategory is assigned to tasks created without a category.
const DefaultCategory = "Others"

// Subtask is a smaller step embedded in its parent task.
type Subtask struct {
	ID        string `json:"id" bson:"id"`
	Text      string `json:"text" bson:"text"`
	Completed bool   `json:"completed" bson:"completed"`
}

// NewSubtask builds an open subtask with a fresh id.
func NewSubtask(text string) Subtask {
	return Subtask{ID: uuid.NewString(), Text: text}
}

// Task is a unit of work owned by a user. Subtasks are stored inside the task.
type Task struct {
	ID            string     `json:"id" bson:"_id" gorm:"type:char(36);primaryKey"`
	OwnerUsername string     `json:"owner_username" bson:"owner_username" gorm:"size:150;not null;index"`
	Text          string     `json:"text" bson:"text" gorm:"type:text;not null"`
	Completed     bool       `json:"completed" bson:"completed" gorm:"default:false;index"`
	StartTime     time.Time  `json:"start_time" bson:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty" bson:"end_time,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Priority      Priority   `json:"priority" bson:"priority" gorm:"size:16;not null;default:'Medium'"`
	Category      string     `json:"category" bson:"category" gorm:"size:100;not null;index"`
	Tags          []string   `json:"tags" bson:"tags" gorm:"type:text;serializer:json"`
	Recurrence    Recurrence `json:"recurrence" bson:"recurrence" gorm:"size:16;not null;default:'none'"`
	RolledOver    bool       `json:"-" bson:"rolled_over" gorm:"default:false"`
	Subtasks      []Subtask  `json:"subtasks" bson:"subtasks" gorm:"type:text;serializer:json"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at" gorm:"index"`
	UpdatedAt     time.Time  `json:"updated_at" bson:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// HasTag reports whether the task carries any of the given tags.
func (t *Task) HasTag(tags ...string) bool {
	for _, want := range tags {
		for _, have := range t.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Subtask returns the embedded subtask with the given id.
func (t *Task) Subtask(id string) (*Subtask, bool) {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			return &t.Subtasks[i], true
		}
	}
	return nil, false
}

// RemoveSubtask drops the subtask with the given id and reports whether it was present.
func (t *Task) RemoveSubtask(id string) bool {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
			return true
		}
	}
	return false
}

// CompletedSubtasks counts the finished subtasks.
func (t *Task) CompletedSubtasks() int {
	n := 0
	for _, s := range t.Subtasks {
		if s.Completed {
			n++
		}
	}
	return n
}

// MarkCompleted closes the task at the given time. A task that is already
// completed keeps its first completion time, and an existing end time is kept.
func (t *Task) MarkCompleted(at time.Time) {
	if !t.Completed || t.CompletedAt == nil {
		t.Completed = true
		t.CompletedAt = &at
	}
	if t.EndTime == nil {
		end := *t.CompletedAt
		t.EndTime = &end
	}
}
