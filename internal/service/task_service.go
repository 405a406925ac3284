package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "todoapp/internal/errors"
	"todoapp/internal/model"
	"todoapp/internal/repository"
	"todoapp/internal/timefmt"
)

// AddTaskInput carries the fields of a new task. Priority and Recurrence are
// raw names; empty values select the defaults.
type AddTaskInput struct {
	Owner      string
	Text       string
	EndTime    *time.Time
	Priority   string
	Category   string
	Tags       []string
	Recurrence string
	Subtasks   []string
}

// Dashboard is the overview of one user's tasks.
type Dashboard struct {
	Tasks              []model.Task
	Categories         []string
	Completion         int
	CategoryCompletion map[string]int
}

// TaskService is the task store. Tasks come back ordered by priority with
// insertion order kept among equal priorities, and localized to the display zone.
type TaskService interface {
	Add(ctx context.Context, in AddTaskInput) (*model.Task, error)
	Get(ctx context.Context, id string) (*model.Task, error)
	GetBySubtask(ctx context.Context, subtaskID string) (*model.Task, error)
	List(ctx context.Context, owner, category string) ([]model.Task, error)
	CompletionPercentage(tasks []model.Task) int
	Complete(ctx context.Context, id string) (*model.Task, error)
	Delete(ctx context.Context, id string) error
	AddSubtask(ctx context.Context, taskID, text string) (*model.Subtask, error)
	CompleteSubtask(ctx context.Context, subtaskID string) (*model.Task, error)
	DeleteSubtask(ctx context.Context, subtaskID string) error
	SubtaskProgress(ctx context.Context, taskID string) (int, error)
	TasksByTag(ctx context.Context, owner string, tags []string) ([]model.Task, error)
	TasksByCategory(ctx context.Context, owner, category string) ([]model.Task, error)
	Search(ctx context.Context, owner, keyword string) ([]model.Task, error)
	Categories(ctx context.Context, owner string) ([]string, error)
	CategoryCompletion(ctx context.Context, owner string) (map[string]int, error)
	Dashboard(ctx context.Context, owner, category string) (*Dashboard, error)
}

type taskService struct {
	repo repository.TaskRepository
	zone *timefmt.Zone
	log  *logrus.Logger
	now  func() time.Time
}

// NewTaskService creates a new task service.
func NewTaskService(repo repository.TaskRepository, zone *timefmt.Zone, log *logrus.Logger) TaskService {
	return &taskService{
		repo: repo,
		zone: zone,
		log:  log,
		now:  time.Now,
	}
}

func (s *taskService) Add(ctx context.Context, in AddTaskInput) (*model.Task, error) {
	owner := NormalizeIdentifier(in.Owner)
	text := strings.TrimSpace(in.Text)
	if owner == "" {
		return nil, apperrors.NewValidationError("owner", "must not be empty")
	}
	if text == "" {
		return nil, apperrors.NewValidationError("text", "must not be empty")
	}
	priority, ok := model.ParsePriority(in.Priority)
	if !ok {
		return nil, apperrors.NewValidationError("priority", "must be one of High, Medium, Low")
	}
	recurrence, ok := model.ParseRecurrence(in.Recurrence)
	if !ok {
		return nil, apperrors.NewValidationError("recurrence", "must be one of none, daily, weekly, monthly")
	}

	now := s.now().UTC()
	task := &model.Task{
		OwnerUsername: owner,
		Text:          text,
		StartTime:     now,
		Priority:      priority,
		Category:      normalizeCategory(in.Category),
		Tags:          cleanTags(in.Tags),
		Recurrence:    recurrence,
		Subtasks:      []model.Subtask{},
		CreatedAt:     now,
	}
	if in.EndTime != nil {
		end := in.EndTime.UTC()
		task.EndTime = &end
	}
	for _, raw := range in.Subtasks {
		if t := strings.TrimSpace(raw); t != "" {
			task.Subtasks = append(task.Subtasks, model.NewSubtask(t))
		}
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"username": owner,
		"task_id":  task.ID,
		"subtasks": len(task.Subtasks),
	}).Info("task added")
	return s.localize(task), nil
}

func (s *taskService) Get(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	return s.localize(task), nil
}

func (s *taskService) GetBySubtask(ctx context.Context, subtaskID string) (*model.Task, error) {
	task, err := s.repo.FindBySubtaskID(ctx, subtaskID)
	if err != nil {
		return nil, notFound(err, "subtask", subtaskID)
	}
	return s.localize(task), nil
}

func (s *taskService) List(ctx context.Context, owner, category string) ([]model.Task, error) {
	return s.list(ctx, owner, repository.TaskFilter{Category: strings.TrimSpace(category)})
}

func (s *taskService) TasksByCategory(ctx context.Context, owner, category string) ([]model.Task, error) {
	return s.List(ctx, owner, category)
}

func (s *taskService) TasksByTag(ctx context.Context, owner string, tags []string) ([]model.Task, error) {
	return s.list(ctx, owner, repository.TaskFilter{Tags: cleanTags(tags)})
}

func (s *taskService) Search(ctx context.Context, owner, keyword string) ([]model.Task, error) {
	return s.list(ctx, owner, repository.TaskFilter{Keyword: strings.TrimSpace(keyword)})
}

func (s *taskService) list(ctx context.Context, owner string, filter repository.TaskFilter) ([]model.Task, error) {
	tasks, err := s.repo.ListByOwner(ctx, NormalizeIdentifier(owner), filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	SortByPriority(tasks)
	for i := range tasks {
		s.localizeInPlace(&tasks[i])
	}
	return tasks, nil
}

// SortByPriority orders tasks High, Medium, Low, keeping the existing order
// among tasks of equal priority.
func SortByPriority(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
	})
}

func (s *taskService) CompletionPercentage(tasks []model.Task) int {
	return CompletionPercentage(tasks)
}

func (s *taskService) Complete(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.repo.MarkCompleted(ctx, id, s.now().UTC())
	if err != nil {
		return nil, notFound(err, "task", id)
	}

	s.log.WithFields(logrus.Fields{
		"username": task.OwnerUsername,
		"task_id":  task.ID,
	}).Info("task completed")
	return s.localize(task), nil
}

func (s *taskService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.log.WithField("task_id", id).Info("task deleted")
	return nil
}

func (s *taskService) AddSubtask(ctx context.Context, taskID, text string) (*model.Subtask, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("text", "must not be empty")
	}

	sub := model.NewSubtask(text)
	task, err := s.repo.AppendSubtask(ctx, taskID, sub)
	if err != nil {
		return nil, notFound(err, "task", taskID)
	}

	s.log.WithFields(logrus.Fields{
		"task_id":    task.ID,
		"subtask_id": sub.ID,
	}).Info("subtask added")
	return &sub, nil
}

func (s *taskService) CompleteSubtask(ctx context.Context, subtaskID string) (*model.Task, error) {
	task, err := s.repo.CompleteSubtask(ctx, subtaskID)
	if err != nil {
		return nil, notFound(err, "subtask", subtaskID)
	}

	s.log.WithFields(logrus.Fields{
		"task_id":    task.ID,
		"subtask_id": subtaskID,
	}).Info("subtask completed")
	return s.localize(task), nil
}

func (s *taskService) DeleteSubtask(ctx context.Context, subtaskID string) error {
	if err := s.repo.DeleteSubtask(ctx, subtaskID); err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	s.log.WithField("subtask_id", subtaskID).Info("subtask deleted")
	return nil
}

func (s *taskService) SubtaskProgress(ctx context.Context, taskID string) (int, error) {
	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		return 0, notFound(err, "task", taskID)
	}
	return SubtaskPercentage(task), nil
}

func (s *taskService) Categories(ctx context.Context, owner string) ([]string, error) {
	tasks, err := s.repo.ListByOwner(ctx, NormalizeIdentifier(owner), repository.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return categoriesOf(tasks), nil
}

func (s *taskService) CategoryCompletion(ctx context.Context, owner string) (map[string]int, error) {
	tasks, err := s.repo.ListByOwner(ctx, NormalizeIdentifier(owner), repository.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return completionByCategory(tasks), nil
}

// Dashboard lists the owner's tasks, optionally narrowed to one category.
// Completion covers the listed tasks; categories and per-category completion
// always cover everything the owner has.
func (s *taskService) Dashboard(ctx context.Context, owner, category string) (*Dashboard, error) {
	all, err := s.list(ctx, owner, repository.TaskFilter{})
	if err != nil {
		return nil, err
	}

	category = strings.TrimSpace(category)
	shown := all
	if category != "" {
		shown = make([]model.Task, 0, len(all))
		for _, t := range all {
			if t.Category == category {
				shown = append(shown, t)
			}
		}
	}

	return &Dashboard{
		Tasks:              shown,
		Categories:         categoriesOf(all),
		Completion:         CompletionPercentage(shown),
		CategoryCompletion: completionByCategory(all),
	}, nil
}

func categoriesOf(tasks []model.Task) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, t := range tasks {
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	sort.Strings(out)
	return out
}

func completionByCategory(tasks []model.Task) map[string]int {
	groups := make(map[string][]model.Task)
	for _, t := range tasks {
		groups[t.Category] = append(groups[t.Category], t)
	}
	out := make(map[string]int, len(groups))
	for category, group := range groups {
		out[category] = CompletionPercentage(group)
	}
	return out
}

func normalizeCategory(raw string) string {
	if c := strings.TrimSpace(raw); c != "" {
		return c
	}
	return model.DefaultCategory
}

// cleanTags trims tags, drops empty ones and removes repeats, keeping the
// first occurrence.
func cleanTags(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func notFound(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(resource, id)
	}
	return fmt.Errorf("%s %s: %w", resource, id, err)
}

func (s *taskService) localize(task *model.Task) *model.Task {
	s.localizeInPlace(task)
	return task
}

func (s *taskService) localizeInPlace(task *model.Task) {
	task.StartTime = s.zone.In(task.StartTime)
	task.EndTime = s.zone.InPtr(task.EndTime)
	task.CompletedAt = s.zone.InPtr(task.CompletedAt)
	task.CreatedAt = s.zone.In(task.CreatedAt)
	task.UpdatedAt = s.zone.In(task.UpdatedAt)
}
