// Package seed imports users and tasks from a JSON fixture.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "todoapp/internal/errors"
	"todoapp/internal/service"
	"todoapp/internal/timefmt"
)

// Fixture is the document read by Load.
type Fixture struct {
	Users []UserFixture `json:"users"`
	Tasks []TaskFixture `json:"tasks"`
}

// UserFixture is one account to create.
type UserFixture struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TaskFixture is one task to add. EndTime uses timefmt.InputLayout.
type TaskFixture struct {
	Owner      string   `json:"owner"`
	Text       string   `json:"text"`
	EndTime    string   `json:"end_time"`
	Priority   string   `json:"priority"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Recurrence string   `json:"recurrence"`
	Subtasks   []string `json:"subtasks"`
	Completed  bool     `json:"completed"`
}

// Result counts what Apply did.
type Result struct {
	UsersCreated int
	UsersSkipped int
	TasksCreated int
	TasksSkipped int
}

// Load reads a fixture from a file path or an http(s) URL.
func Load(ctx context.Context, source string) (*Fixture, error) {
	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = fetch(ctx, source)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var fixture Fixture
	if err := json.Unmarshal(body, &fixture); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &fixture, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fixture source returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Apply creates the fixture's users and tasks through the services. Users
// that already exist are skipped, as are tasks whose owner already has a task
// with the same text, so rerunning a fixture adds nothing.
func Apply(ctx context.Context, users service.UserService, tasks service.TaskService, zone *timefmt.Zone, log *logrus.Logger, fixture *Fixture) (Result, error) {
	var res Result

	for _, u := range fixture.Users {
		_, err := users.Create(ctx, u.Username, u.Email, u.Password)
		switch {
		case apperrors.IsDuplicate(err):
			log.WithField("username", u.Username).Info("user exists, skipping")
			res.UsersSkipped++
		case err != nil:
			return res, fmt.Errorf("create user %q: %w", u.Username, err)
		default:
			res.UsersCreated++
		}
	}

	existing := make(map[string]map[string]bool)
	for i, t := range fixture.Tasks {
		owner := service.NormalizeIdentifier(t.Owner)
		texts, ok := existing[owner]
		if !ok {
			var err error
			if texts, err = taskTexts(ctx, tasks, owner); err != nil {
				return res, fmt.Errorf("task %d: %w", i, err)
			}
			existing[owner] = texts
		}
		text := strings.TrimSpace(t.Text)
		if text != "" && texts[text] {
			log.WithFields(logrus.Fields{"owner": owner, "text": text}).Info("task exists, skipping")
			res.TasksSkipped++
			continue
		}

		var endTime *time.Time
		if raw := strings.TrimSpace(t.EndTime); raw != "" {
			parsed, err := zone.ParseInput(raw)
			if err != nil {
				return res, fmt.Errorf("task %d: end_time: %w", i, err)
			}
			endTime = &parsed
		}

		task, err := tasks.Add(ctx, service.AddTaskInput{
			Owner:      t.Owner,
			Text:       t.Text,
			EndTime:    endTime,
			Priority:   t.Priority,
			Category:   t.Category,
			Tags:       t.Tags,
			Recurrence: t.Recurrence,
			Subtasks:   t.Subtasks,
		})
		if err != nil {
			return res, fmt.Errorf("task %d: %w", i, err)
		}
		if t.Completed {
			if _, err := tasks.Complete(ctx, task.ID); err != nil {
				return res, fmt.Errorf("task %d: complete: %w", i, err)
			}
		}
		texts[task.Text] = true
		res.TasksCreated++
	}

	return res, nil
}

func taskTexts(ctx context.Context, tasks service.TaskService, owner string) (map[string]bool, error) {
	list, err := tasks.List(ctx, owner, "")
	if err != nil {
		return nil, fmt.Errorf("list tasks of %q: %w", owner, err)
	}
	texts := make(map[string]bool, len(list))
	for _, t := range list {
		texts[t.Text] = true
	}
	return texts, nil
}
