package groupoffer

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

// Service implements the group offer review workflow.
type Service struct {
	repo      Repository
	companies Companies
	users     Users
	notifier  outbound.Notifier
	mailer    outbound.Mailer
	audit     outbound.Auditor
	now       func() time.Time
}

// NewService creates a group offer service.
func NewService(repo Repository, companies Companies, users Users, notifier outbound.Notifier, mailer outbound.Mailer, audit outbound.Auditor) *Service {
	return &Service{
		repo:      repo,
		companies: companies,
		users:     users,
		notifier:  notifier,
		mailer:    mailer,
		audit:     audit,
		now:       time.Now,
	}
}

// SubmitInput is a new request from a company.
type SubmitInput struct {
	Title                 string `json:"title"`
	Description           string `json:"description"`
	TargetAudience        string `json:"target_audience"`
	EstimatedParticipants int    `json:"estimated_participants"`
	ProposedDiscount      string `json:"proposed_discount"`
}

// Submit files a request on behalf of the actor's company and routes it to
// the company's gestor, or to every admin when it has none.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, in SubmitInput) (*domain.GroupOfferRequest, error) {
	if actor.Role != domain.RoleCompany || actor.CompanyID == "" {
		return nil, ErrForbidden
	}
	in.Title = strings.TrimSpace(in.Title)
	v := validate.Errors{}
	v.Length("title", in.Title, 3, 200)
	v.Required("description", in.Description)
	v.Required("target_audience", in.TargetAudience)
	v.Required("proposed_discount", in.ProposedDiscount)
	if in.EstimatedParticipants <= 0 {
		v.Add("estimated_participants", "must be greater than zero")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	c, err := s.companies.Get(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CompanyActive {
		return nil, ErrCompanyInactive
	}

	now := s.now().UTC()
	g := &domain.GroupOfferRequest{
		ID:                    uuid.New().String(),
		CompanyID:             c.ID,
		CompanyName:           c.Name,
		RequestedBy:           actor.UserID,
		Title:                 in.Title,
		Description:           strings.TrimSpace(in.Description),
		TargetAudience:        strings.TrimSpace(in.TargetAudience),
		EstimatedParticipants: in.EstimatedParticipants,
		ProposedDiscount:      strings.TrimSpace(in.ProposedDiscount),
		Status:                domain.GroupOfferPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if c.HasGestor() {
		g.GestorID = c.GestorID
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}

	note := outbound.Note{
		Type:     domain.NotifyGroupOfferNew,
		Title:    "Nova sol·licitud d'oferta col·lectiva: " + c.Name,
		Body:     g.Title,
		Link:     "/group-offers/" + g.ID,
		Priority: domain.PriorityHigh,
	}
	if g.GestorID != nil {
		err = s.notifier.Notify(ctx, *g.GestorID, note)
	} else {
		_, err = s.notifier.NotifyRole(ctx, domain.RoleAdmin, note)
	}
	if err != nil {
		logger.Warn("groupoffer: notify reviewer failed", "request_id", g.ID, "error", err)
	}
	return g, nil
}

func canView(actor domain.Actor, g *domain.GroupOfferRequest) bool {
	return actor.IsAdmin() || actor.ActsForCompany(g.CompanyID) || (actor.IsGestor() && g.AssignedTo(actor.UserID))
}

func canReview(actor domain.Actor, g *domain.GroupOfferRequest) bool {
	return actor.IsAdmin() || (actor.IsGestor() && g.AssignedTo(actor.UserID))
}

// List returns requests visible to the actor.
func (s *Service) List(ctx context.Context, actor domain.Actor, f ListFilter) ([]domain.GroupOfferRequest, int, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsGestor():
		f.GestorID = actor.UserID
	case actor.Role == domain.RoleCompany && actor.CompanyID != "":
		f.CompanyID = actor.CompanyID
	default:
		return nil, 0, ErrForbidden
	}
	return s.repo.List(ctx, f)
}

// Get returns a request visible to the actor.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.GroupOfferRequest, error) {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, g) {
		return nil, ErrForbidden
	}
	return g, nil
}

// StartReview moves a PENDING request to IN_REVIEW.
func (s *Service) StartReview(ctx context.Context, actor domain.Actor, id string) (*domain.GroupOfferRequest, error) {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canReview(actor, g) {
		return nil, ErrForbidden
	}
	if err := s.repo.Transition(ctx, id, []domain.GroupOfferStatus{domain.GroupOfferPending}, domain.GroupOfferInReview, Review{}); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// DecideInput is a reviewer's verdict.
type DecideInput struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// Decide approves or rejects a PENDING or IN_REVIEW request and informs
// the requester.
func (s *Service) Decide(ctx context.Context, actor domain.Actor, id string, in DecideInput) (*domain.GroupOfferRequest, error) {
	notes := strings.TrimSpace(in.Notes)
	if !in.Approve && notes == "" {
		return nil, ErrNotesRequired
	}
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canReview(actor, g) {
		return nil, ErrForbidden
	}

	next := domain.GroupOfferRejected
	if in.Approve {
		next = domain.GroupOfferApproved
	}
	if !g.Status.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}
	from := []domain.GroupOfferStatus{domain.GroupOfferPending, domain.GroupOfferInReview}
	r := Review{Notes: notes, ReviewedBy: actor.UserID, ReviewedAt: s.now().UTC()}
	if err := s.repo.Transition(ctx, id, from, next, r); err != nil {
		return nil, err
	}
	g, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Entity:   domain.EntityGroupOffer,
		EntityID: id,
		Action:   "decided",
		ActorID:  actor.UserID,
		Details:  map[string]string{"status": string(next)},
	})
	s.informRequester(ctx, g)
	return g, nil
}

func (s *Service) informRequester(ctx context.Context, g *domain.GroupOfferRequest) {
	verdict := "aprovada"
	if g.Status == domain.GroupOfferRejected {
		verdict = "rebutjada"
	}
	if err := s.notifier.Notify(ctx, g.RequestedBy, outbound.Note{
		Type:     domain.NotifyGroupOfferDecided,
		Title:    "Sol·licitud " + verdict + ": " + g.Title,
		Body:     g.ReviewNotes,
		Link:     "/group-offers/" + g.ID,
		Priority: domain.PriorityHigh,
	}); err != nil {
		logger.Warn("groupoffer: notify requester failed", "request_id", g.ID, "error", err)
	}

	u, err := s.users.Get(ctx, g.RequestedBy)
	if err != nil {
		logger.Warn("groupoffer: load requester failed", "request_id", g.ID, "error", err)
		return
	}
	if err := s.mailer.Enqueue(ctx, outbound.Email{
		To:       u.Email,
		ToName:   u.Name,
		Template: outbound.TemplateGroupOfferDecided,
		Data: map[string]any{
			"name":     u.Name,
			"title":    g.Title,
			"approved": g.Status == domain.GroupOfferApproved,
			"notes":    g.ReviewNotes,
		},
	}); err != nil {
		logger.Warn("groupoffer: email enqueue failed", "request_id", g.ID, "error", err)
	}
}

// Cancel withdraws a PENDING request. Requesting company only.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id string) error {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.ActsForCompany(g.CompanyID) {
		return ErrForbidden
	}
	return s.repo.Transition(ctx, id, []domain.GroupOfferStatus{domain.GroupOfferPending}, domain.GroupOfferCancelled, Review{})
}

// Reassign hands an open request to another gestor. Admin only.
func (s *Service) Reassign(ctx context.Context, actor domain.Actor, id, gestorID string) (*domain.GroupOfferRequest, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Status.Terminal() {
		return nil, ErrInvalidTransition
	}
	u, err := s.users.Get(ctx, gestorID)
	if err != nil || u.Role != domain.RoleGestor || !u.Active {
		return nil, ErrNotGestor
	}
	if err := s.repo.SetGestor(ctx, id, gestorID); err != nil {
		return nil, err
	}
	g.GestorID = &gestorID

	if err := s.notifier.Notify(ctx, gestorID, outbound.Note{
		Type:     domain.NotifyGroupOfferNew,
		Title:    "Sol·licitud assignada: " + g.Title,
		Link:     "/group-offers/" + g.ID,
		Priority: domain.PriorityHigh,
	}); err != nil {
		logger.Warn("groupoffer: notify gestor failed", "request_id", id, "error", err)
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Entity:   domain.EntityGroupOffer,
		EntityID: id,
		Action:   "reassigned",
		ActorID:  actor.UserID,
		Details:  map[string]string{"gestor_id": gestorID},
	})
	return g, nil
}
