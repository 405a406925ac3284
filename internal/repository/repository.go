package repository

import (
	"errors"
	"strings"

	"todoapp/internal/model"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate key")
)

// TaskFilter narrows an owner's task listing. Zero values disable a filter.
type TaskFilter struct {
	Category string
	// Tags matches tasks carrying any of the listed tags.
	Tags    []string
	Keyword string
}

// likeEscape escapes LIKE wildcards using '!' as the escape character, which
// behaves the same on MySQL and SQLite.
func likeEscape(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// filterByTags keeps the tasks carrying any of tags. Applied in Go for stores
// that keep tags in a serialized column.
func filterByTags(tasks []model.Task, tags []string) []model.Task {
	if len(tags) == 0 {
		return tasks
	}
	kept := tasks[:0]
	for i := range tasks {
		if tasks[i].HasTag(tags...) {
			kept = append(kept, tasks[i])
		}
	}
	return kept
}

// filterByKeyword keeps the tasks whose text contains keyword, ignoring case.
func filterByKeyword(tasks []model.Task, keyword string) []model.Task {
	if keyword == "" {
		return tasks
	}
	keyword = strings.ToLower(keyword)
	kept := tasks[:0]
	for i := range tasks {
		if strings.Contains(strings.ToLower(tasks[i].Text), keyword) {
			kept = append(kept, tasks[i])
		}
	}
	return kept
}

// normalize replaces nil collections so that stores never persist null arrays.
func normalize(task *model.Task) {
	if task.Tags == nil {
		task.Tags = []string{}
	}
	if task.Subtasks == nil {
		task.Subtasks = []model.Subtask{}
	}
}
