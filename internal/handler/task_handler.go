package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"todoapp/internal/errors"
	"todoapp/internal/model"
	"todoapp/internal/service"
	"todoapp/internal/timefmt"
)

// TaskHandler serves the signed-in user's tasks and their subtasks.
type TaskHandler struct {
	tasks service.TaskService
	zone  *timefmt.Zone
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(tasks service.TaskService, zone *timefmt.Zone) *TaskHandler {
	return &TaskHandler{tasks: tasks, zone: zone}
}

// CreateTaskRequest is the new-task form. EndTime uses the datetime-local
// layout in the display timezone. Tags may be repeated or comma separated.
type CreateTaskRequest struct {
	Text       string   `json:"text" form:"text" validate:"required,max=1000"`
	EndTime    string   `json:"end_time" form:"end_time"`
	Priority   string   `json:"priority" form:"priority" validate:"omitempty,oneof=High Medium Low high medium low"`
	Category   string   `json:"category" form:"category" validate:"max=100"`
	Tags       []string `json:"tags" form:"tags" validate:"dive,max=50"`
	Recurrence string   `json:"recurrence" form:"recurrence" validate:"omitempty,oneof=none daily weekly monthly"`
	Subtasks   []string `json:"subtasks" form:"subtasks"`
}

// AddSubtaskRequest is the new-subtask form.
type AddSubtaskRequest struct {
	Text string `json:"text" form:"text" validate:"required,max=1000"`
}

// Dashboard godoc
// @Summary Task overview with completion figures
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param category query string false "Only show this category"
// @Success 200 {object} DashboardView
// @Failure 401 {object} errors.ErrorResponse
// @Router /dashboard [get]
func (h *TaskHandler) Dashboard(c echo.Context) error {
	username, err := currentUsername(c)
	if err != nil {
		return err
	}
	category := strings.TrimSpace(c.QueryParam("category"))

	dash, err := h.tasks.Dashboard(c.Request().Context(), username, category)
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusOK, DashboardView{
		Tasks:              newTaskViews(h.zone, dash.Tasks),
		Categories:         dash.Categories,
		SelectedCategory:   category,
		Completion:         dash.Completion,
		CategoryCompletion: dash.CategoryCompletion,
	})
}

// List godoc
// @Summary List tasks
// @Description At most one filter applies, checked in the order q, tag, category.
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param category query string false "Category"
// @Param tag query []string false "Tags (any match)" collectionFormat(multi)
// @Param q query string false "Search text"
// @Success 200 {array} TaskView
// @Failure 401 {object} errors.ErrorResponse
// @Router /tasks [get]
func (h *TaskHandler) List(c echo.Context) error {
	username, err := currentUsername(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	query := c.QueryParams()

	var tasks []model.Task
	switch {
	case strings.TrimSpace(query.Get("q")) != "":
		tasks, err = h.tasks.Search(ctx, username, query.Get("q"))
	case len(query["tag"]) > 0:
		tasks, err = h.tasks.TasksByTag(ctx, username, splitTags(query["tag"]))
	default:
		tasks, err = h.tasks.List(ctx, username, query.Get("category"))
	}
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, newTaskViews(h.zone, tasks))
}

// Create godoc
// @Summary Add a task
// @Tags tasks
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param request body CreateTaskRequest true "Task"
// @Success 201 {object} TaskView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	username, err := currentUsername(c)
	if err != nil {
		return err
	}
	var req CreateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var endTime *time.Time
	if raw := strings.TrimSpace(req.EndTime); raw != "" {
		parsed, err := h.zone.ParseInput(raw)
		if err != nil {
			return respondError(errors.NewValidationError("end_time", "expected "+timefmt.InputLayout))
		}
		endTime = &parsed
	}

	task, err := h.tasks.Add(c.Request().Context(), service.AddTaskInput{
		Owner:      username,
		Text:       req.Text,
		EndTime:    endTime,
		Priority:   req.Priority,
		Category:   req.Category,
		Tags:       splitTags(req.Tags),
		Recurrence: req.Recurrence,
		Subtasks:   req.Subtasks,
	})
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, newTaskView(h.zone, task))
}

// Get godoc
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} TaskView
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c echo.Context) error {
	task, err := h.ownedTask(c, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newTaskView(h.zone, task))
}

// Complete godoc
// @Summary Mark a task completed
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} TaskView
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/complete [post]
func (h *TaskHandler) Complete(c echo.Context) error {
	task, err := h.ownedTask(c, c.Param("id"))
	if err != nil {
		return err
	}
	task, err = h.tasks.Complete(c.Request().Context(), task.ID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, newTaskView(h.zone, task))
}

// Delete godoc
// @Summary Delete a task
// @Description Deleting a task that no longer exists succeeds.
// @Tags tasks
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 204
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	username, err := currentUsername(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	task, err := h.tasks.Get(ctx, id)
	switch {
	case errors.IsNotFound(err):
		return c.NoContent(http.StatusNoContent)
	case err != nil:
		return respondError(err)
	case task.OwnerUsername != username:
		return respondError(errors.NewNotFoundError("task", id))
	}

	if err := h.tasks.Delete(ctx, id); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Progress godoc
// @Summary Subtask progress of a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} ProgressView
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/progress [get]
func (h *TaskHandler) Progress(c echo.Context) error {
	task, err := h.ownedTask(c, c.Param("id"))
	if err != nil {
		return err
	}
	progress, err := h.tasks.SubtaskProgress(c.Request().Context(), task.ID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, ProgressView{TaskID: task.ID, Progress: progress})
}

// AddSubtask godoc
// @Summary Append a subtask
// @Tags subtasks
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body AddSubtaskRequest true "Subtask"
// @Success 201 {object} SubtaskView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/subtasks [post]
func (h *TaskHandler) AddSubtask(c echo.Context) error {
	task, err := h.ownedTask(c, c.Param("id"))
	if err != nil {
		return err
	}
	var req AddSubtaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sub, err := h.tasks.AddSubtask(c.Request().Context(), task.ID, req.Text)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, SubtaskView{ID: sub.ID, Text: sub.Text, Completed: sub.Completed})
}

// CompleteSubtask godoc
// @Summary Mark a subtask completed
// @Tags subtasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subtask ID"
// @Success 200 {object} TaskView
// @Failure 404 {object} errors.ErrorResponse
// @Router /subtasks/{id}/complete [post]
func (h *TaskHandler) CompleteSubtask(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.ownedSubtaskParent(c, id); err != nil {
		return err
	}
	task, err := h.tasks.CompleteSubtask(c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, newTaskView(h.zone, task))
}

// DeleteSubtask godoc
// @Summary Delete a subtask
// @Description Deleting a subtask that no longer exists succeeds.
// @Tags subtasks
// @Security BearerAuth
// @Param id path string true "Subtask ID"
// @Success 204
// @Failure 404 {object} errors.ErrorResponse
// @Router /subtasks/{id} [delete]
func (h *TaskHandler) DeleteSubtask(c echo.Context) error {
	ctx := c.Request().Context()
	username, err := currentUsername(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	task, err := h.tasks.GetBySubtask(ctx, id)
	switch {
	case errors.IsNotFound(err):
		return c.NoContent(http.StatusNoContent)
	case err != nil:
		return respondError(err)
	case task.OwnerUsername != username:
		return respondError(errors.NewNotFoundError("subtask", id))
	}

	if err := h.tasks.DeleteSubtask(ctx, id); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ownedTask loads a task of the current user. Other users' tasks read as missing.
func (h *TaskHandler) ownedTask(c echo.Context, id string) (*model.Task, error) {
	username, err := currentUsername(c)
	if err != nil {
		return nil, err
	}
	task, err := h.tasks.Get(c.Request().Context(), id)
	if err != nil {
		return nil, respondError(err)
	}
	if task.OwnerUsername != username {
		return nil, respondError(errors.NewNotFoundError("task", id))
	}
	return task, nil
}

// ownedSubtaskParent loads the task embedding the subtask, if the current user owns it.
func (h *TaskHandler) ownedSubtaskParent(c echo.Context, subtaskID string) (*model.Task, error) {
	username, err := currentUsername(c)
	if err != nil {
		return nil, err
	}
	task, err := h.tasks.GetBySubtask(c.Request().Context(), subtaskID)
	if err != nil {
		return nil, respondError(err)
	}
	if task.OwnerUsername != username {
		return nil, respondError(errors.NewNotFoundError("subtask", subtaskID))
	}
	return task, nil
}

// splitTags flattens repeated and comma separated tag values.
func splitTags(raw []string) []string {
	var out []string
	for _, value := range raw {
		for _, tag := range strings.Split(value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				out = append(out, tag)
			}
		}
	}
	return out
}
