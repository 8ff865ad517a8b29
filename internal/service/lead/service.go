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

// ReminderWindow is how far ahead RemindDueTasks looks.
const ReminderWindow = time.Hour

// Service implements the lead pipeline.
type Service struct {
	repo     Repository
	users    Users
	notifier outbound.Notifier
	mailer   outbound.Mailer
	audit    outbound.Auditor
	now      func() time.Time
}

// NewService creates a lead service.
func NewService(repo Repository, users Users, notifier outbound.Notifier, mailer outbound.Mailer, audit outbound.Auditor) *Service {
	return &Service{repo: repo, users: users, notifier: notifier, mailer: mailer, audit: audit, now: time.Now}
}

// CreateInput holds the fields for a new lead.
type CreateInput struct {
	CompanyName         string `json:"company_name"`
	CIF                 string `json:"cif"`
	ContactName         string `json:"contact_name"`
	ContactEmail        string `json:"contact_email"`
	ContactPhone        string `json:"contact_phone"`
	Sector              string `json:"sector"`
	Source              string `json:"source"`
	Notes               string `json:"notes"`
	EstimatedValueCents int64  `json:"estimated_value_cents"`
	GestorID            string `json:"gestor_id"`
}

func checkFields(v validate.Errors, name, email, cif *string, value *int64) {
	if name != nil {
		v.Length("company_name", *name, 2, 200)
	}
	if email != nil && strings.TrimSpace(*email) != "" {
		v.Email("contact_email", *email)
	}
	if cif != nil && strings.TrimSpace(*cif) != "" && !domain.ValidTaxID(domain.NormalizeTaxID(*cif)) {
		v.Add("cif", "is not a valid CIF, NIF or NIE")
	}
	if value != nil && *value < 0 {
		v.Add("estimated_value_cents", "must not be negative")
	}
}

// Create opens a lead in stage NEW. Gestors own the leads they create;
// admins may assign any active gestor.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Lead, error) {
	switch {
	case actor.IsGestor():
		in.GestorID = actor.UserID
	case actor.IsAdmin():
		if in.GestorID == "" {
			return nil, validate.Errors{"gestor_id": "is required"}
		}
		if err := s.checkGestor(ctx, in.GestorID); err != nil {
			return nil, err
		}
	default:
		return nil, ErrForbidden
	}

	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	v := validate.Errors{}
	checkFields(v, &in.CompanyName, &in.ContactEmail, &in.CIF, &in.EstimatedValueCents)
	if err := v.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	l := &domain.Lead{
		ID:                  uuid.New().String(),
		CompanyName:         in.CompanyName,
		CIF:                 domain.NormalizeTaxID(in.CIF),
		ContactName:         strings.TrimSpace(in.ContactName),
		ContactEmail:        strings.ToLower(in.ContactEmail),
		ContactPhone:        strings.TrimSpace(in.ContactPhone),
		Sector:              in.Sector,
		Source:              in.Source,
		Notes:               in.Notes,
		EstimatedValueCents: in.EstimatedValueCents,
		Stage:               domain.StageNew,
		GestorID:            in.GestorID,
		CreatedBy:           actor.UserID,
		StageChangedAt:      now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) checkGestor(ctx context.Context, id string) error {
	u, err := s.users.Get(ctx, id)
	if err != nil || u.Role != domain.RoleGestor || !u.Active {
		return ErrNotGestor
	}
	return nil
}

func owns(actor domain.Actor, l *domain.Lead) bool {
	return actor.IsAdmin() || (actor.IsGestor() && l.GestorID == actor.UserID)
}

// load returns the lead if the actor owns it.
func (s *Service) load(ctx context.Context, actor domain.Actor, id string) (*domain.Lead, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !owns(actor, l) {
		return nil, ErrForbidden
	}
	return l, nil
}

// List returns leads. Gestors only see their own.
func (s *Service) List(ctx context.Context, actor domain.Actor, f ListFilter) ([]domain.Lead, int, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsGestor():
		f.GestorID = actor.UserID
	default:
		return nil, 0, ErrForbidden
	}
	return s.repo.List(ctx, f)
}

// Get returns a lead owned by the actor.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Lead, error) {
	return s.load(ctx, actor, id)
}

// Update edits lead details. Stage and owner have their own operations.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id string, u UpdateFields) (*domain.Lead, error) {
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	v := validate.Errors{}
	checkFields(v, u.CompanyName, u.ContactEmail, u.CIF, u.EstimatedValueCents)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if u.CIF != nil {
		cif := domain.NormalizeTaxID(*u.CIF)
		u.CIF = &cif
	}
	if err := s.repo.Update(ctx, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// ChangeStage moves a lead along the pipeline. Moving to LOST requires a
// reason.
func (s *Service) ChangeStage(ctx context.Context, actor domain.Actor, id string, next domain.LeadStage, lostReason string) (*domain.Lead, error) {
	l, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !l.Stage.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}
	lostReason = strings.TrimSpace(lostReason)
	if next == domain.StageLost && lostReason == "" {
		return nil, ErrLostReason
	}
	if next != domain.StageLost {
		lostReason = ""
	}
	if err := s.repo.SetStage(ctx, id, l.Stage, next, lostReason, s.now().UTC()); err != nil {
		return nil, err
	}

	details := map[string]string{"from": string(l.Stage), "to": string(next)}
	if lostReason != "" {
		details["reason"] = lostReason
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Entity:   domain.EntityLead,
		EntityID: id,
		Action:   "stage_changed",
		ActorID:  actor.UserID,
		Details:  details,
	})
	return s.repo.Get(ctx, id)
}

// Convert turns a WON lead into a PENDING company in the same gestor's
// portfolio.
func (s *Service) Convert(ctx context.Context, actor domain.Actor, id string) (*domain.Company, error) {
	l, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if l.ConvertedCompanyID != nil {
		return nil, ErrAlreadyConverted
	}
	if l.Stage != domain.StageWon {
		return nil, ErrNotWon
	}
	v := validate.Errors{}
	if !domain.ValidCIF(l.CIF) {
		v.Add("cif", "a valid CIF is required to convert")
	}
	if !validate.IsEmail(l.ContactEmail) {
		v.Add("contact_email", "a contact email is required to convert")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	gestor := l.GestorID
	c := &domain.Company{
		ID:        uuid.New().String(),
		Name:      l.CompanyName,
		CIF:       domain.NormalizeTaxID(l.CIF),
		Email:     l.ContactEmail,
		Phone:     l.ContactPhone,
		Sector:    l.Sector,
		Status:    domain.CompanyPending,
		GestorID:  &gestor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Convert(ctx, id, c); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Entity:   domain.EntityLead,
		EntityID: id,
		Action:   "converted",
		ActorID:  actor.UserID,
		Details:  map[string]string{"company_id": c.ID},
	})
	return c, nil
}

// Assign hands a lead to another gestor. Admin only.
func (s *Service) Assign(ctx context.Context, actor domain.Actor, id, gestorID string) (*domain.Lead, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkGestor(ctx, gestorID); err != nil {
		return nil, err
	}
	if err := s.repo.SetGestor(ctx, id, gestorID); err != nil {
		return nil, err
	}
	previous := l.GestorID
	l.GestorID = gestorID

	if err := s.notifier.Notify(ctx, gestorID, outbound.Note{
		Type:     domain.NotifyLeadAssigned,
		Title:    "Nou lead assignat: " + l.CompanyName,
		Link:     "/leads/" + l.ID,
		Priority: domain.PriorityNormal,
	}); err != nil {
		logger.Warn("lead: notify gestor failed", "lead_id", id, "error", err)
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Entity:   domain.EntityLead,
		EntityID: id,
		Action:   "assigned",
		ActorID:  actor.UserID,
		Details:  map[string]string{"gestor_id": gestorID, "previous_gestor_id": previous},
	})
	return l, nil
}

// Delete removes a lead and its tasks. Admin only.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// Pipeline returns count and value per stage in pipeline order. Gestors get
// their own figures; admins may pass a gestor or "" for everyone.
func (s *Service) Pipeline(ctx context.Context, actor domain.Actor, gestorID string) ([]domain.StageSummary, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsGestor():
		gestorID = actor.UserID
	default:
		return nil, ErrForbidden
	}
	rows, err := s.repo.Pipeline(ctx, gestorID)
	if err != nil {
		return nil, err
	}
	byStage := make(map[domain.LeadStage]domain.StageSummary, len(rows))
	for _, r := range rows {
		byStage[r.Stage] = r
	}
	out := make([]domain.StageSummary, len(domain.PipelineOrder))
	for i, st := range domain.PipelineOrder {
		out[i] = byStage[st]
		out[i].Stage = st
	}
	return out, nil
}
