package lead

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/pkg/validate"
	"github.com/lapublica/platform/internal/service/outbound"
)

// TaskInput holds the fields for a new task.
type TaskInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DueAt       time.Time       `json:"due_at"`
	Priority    domain.Priority `json:"priority"`
}

// CreateTask adds a follow-up task to a lead, assigned to the lead's gestor.
func (s *Service) CreateTask(ctx context.Context, actor domain.Actor, leadID string, in TaskInput) (*domain.LeadTask, error) {
	l, err := s.load(ctx, actor, leadID)
	if err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Priority == 0 {
		in.Priority = domain.PriorityNormal
	}
	v := validate.Errors{}
	v.Length("title", in.Title, 1, 200)
	if in.DueAt.IsZero() {
		v.Add("due_at", "is required")
	}
	if !in.Priority.Valid() {
		v.Add("priority", "must be low, normal, high or urgent")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	t := &domain.LeadTask{
		ID:          uuid.New().String(),
		LeadID:      l.ID,
		LeadName:    l.CompanyName,
		AssigneeID:  l.GestorID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		DueAt:       in.DueAt.UTC(),
		Priority:    in.Priority,
		Status:      domain.TaskPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTasks returns every task of a lead.
func (s *Service) ListTasks(ctx context.Context, actor domain.Actor, leadID string) ([]domain.LeadTask, error) {
	if _, err := s.load(ctx, actor, leadID); err != nil {
		return nil, err
	}
	return s.repo.ListTasks(ctx, leadID)
}

// MyTasks returns the actor's pending tasks, optionally due before a time.
func (s *Service) MyTasks(ctx context.Context, actor domain.Actor, dueBefore *time.Time) ([]domain.LeadTask, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	return s.repo.TasksFor(ctx, actor.UserID, dueBefore)
}

func (s *Service) loadTask(ctx context.Context, actor domain.Actor, id string) (*domain.LeadTask, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && t.AssigneeID != actor.UserID {
		return nil, ErrForbidden
	}
	return t, nil
}

// CompleteTask marks a task done. Assignee or admin.
func (s *Service) CompleteTask(ctx context.Context, actor domain.Actor, id string) error {
	if _, err := s.loadTask(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.CompleteTask(ctx, id, s.now().UTC())
}

// DeleteTask removes a task. Assignee or admin.
func (s *Service) DeleteTask(ctx context.Context, actor domain.Actor, id string) error {
	if _, err := s.loadTask(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.DeleteTask(ctx, id)
}

// RemindDueTasks notifies assignees of pending tasks due within
// ReminderWindow. Each task is reminded at most once.
func (s *Service) RemindDueTasks(ctx context.Context) (int, error) {
	now := s.now().UTC()
	tasks, err := s.repo.DueForReminder(ctx, now.Add(ReminderWindow))
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range tasks {
		t := &tasks[i]
		ok, err := s.repo.MarkReminded(ctx, t.ID, now)
		if err != nil {
			return sent, err
		}
		if !ok {
			continue
		}
		sent++
		s.remind(ctx, t)
	}
	if sent > 0 {
		logger.Info("lead: task reminders sent", "count", sent)
	}
	return sent, nil
}

func (s *Service) remind(ctx context.Context, t *domain.LeadTask) {
	title := "Tasca pendent: " + t.Title
	if err := s.notifier.Notify(ctx, t.AssigneeID, outbound.Note{
		Type:     domain.NotifyTaskDue,
		Title:    title,
		Body:     t.LeadName,
		Link:     "/leads/" + t.LeadID,
		Priority: t.Priority,
	}); err != nil {
		logger.Warn("lead: task reminder notify failed", "task_id", t.ID, "error", err)
	}
	u, err := s.users.Get(ctx, t.AssigneeID)
	if err != nil {
		logger.Warn("lead: load assignee failed", "task_id", t.ID, "error", err)
		return
	}
	var value int64
	if l, err := s.repo.Get(ctx, t.LeadID); err == nil {
		value = l.EstimatedValueCents
	}
	if err := s.mailer.Enqueue(ctx, outbound.Email{
		To:       u.Email,
		ToName:   u.Name,
		Template: outbound.TemplateTaskReminder,
		Data: map[string]any{
			"name":        u.Name,
			"task":        t.Title,
			"lead_name":   t.LeadName,
			"due_at":      t.DueAt,
			"priority":    t.Priority.String(),
			"value_cents": value,
		},
	}); err != nil {
		logger.Warn("lead: task reminder email failed", "task_id", t.ID, "error", err)
	}
}
