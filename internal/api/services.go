package api

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/billing"
	"github.com/lapublica/platform/internal/service/company"
	"github.com/lapublica/platform/internal/service/content"
	"github.com/lapublica/platform/internal/service/conversation"
	"github.com/lapublica/platform/internal/service/coupon"
	"github.com/lapublica/platform/internal/service/dashboard"
	"github.com/lapublica/platform/internal/service/groupoffer"
	"github.com/lapublica/platform/internal/service/lead"
	"github.com/lapublica/platform/internal/service/notification"
	"github.com/lapublica/platform/internal/service/offer"
	"github.com/lapublica/platform/internal/service/user"
)

// The handler layer depends on these method sets; the service packages
// provide the implementations.

type UserService interface {
	Create(ctx context.Context, actor domain.Actor, in user.CreateInput) (*domain.User, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.User, error)
	List(ctx context.Context, actor domain.Actor, f user.ListFilter) ([]domain.User, int, error)
	Update(ctx context.Context, actor domain.Actor, id string, in user.UpdateInput) (*domain.User, error)
	SetActive(ctx context.Context, actor domain.Actor, id string, active bool) error
	ChangePassword(ctx context.Context, actor domain.Actor, current, next string) error
	Profile(ctx context.Context, viewer domain.Actor, id string) (domain.Profile, error)
	UpdateProfile(ctx context.Context, actor domain.Actor, in user.ProfileInput) (*domain.User, error)
	UpdatePrivacy(ctx context.Context, actor domain.Actor, p domain.PrivacySettings) (domain.PrivacySettings, error)
}

type CompanyService interface {
	Create(ctx context.Context, actor domain.Actor, in company.CreateInput) (*domain.Company, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Company, error)
	List(ctx context.Context, actor domain.Actor, f company.ListFilter) ([]domain.Company, int, error)
	Update(ctx context.Context, actor domain.Actor, id string, u company.UpdateFields) (*domain.Company, error)
	AssignGestor(ctx context.Context, actor domain.Actor, id, gestorID string) (*domain.Company, error)
	SetStatus(ctx context.Context, actor domain.Actor, id string, status domain.CompanyStatus) error
	UploadLogo(ctx context.Context, actor domain.Actor, id string, data []byte) (*domain.Company, error)
}

type BillingService interface {
	ListPlans(ctx context.Context, actor domain.Actor) ([]domain.Plan, error)
	CreatePlan(ctx context.Context, actor domain.Actor, in billing.PlanInput) (*domain.Plan, error)
	UpdatePlan(ctx context.Context, actor domain.Actor, id string, u billing.PlanFields) (*domain.Plan, error)
	PreviewChange(ctx context.Context, actor domain.Actor, companyID, planID string) (domain.PlanQuote, error)
	ApplyChange(ctx context.Context, actor domain.Actor, companyID, planID string) (*domain.BillingEvent, error)
	Events(ctx context.Context, actor domain.Actor, companyID string) ([]domain.BillingEvent, error)
}

type OfferService interface {
	Create(ctx context.Context, actor domain.Actor, in offer.CreateInput) (*domain.Offer, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Offer, error)
	List(ctx context.Context, actor domain.Actor, f offer.ListFilter) ([]domain.Offer, int, error)
	Update(ctx context.Context, actor domain.Actor, id string, u offer.UpdateFields) (*domain.Offer, error)
	Deactivate(ctx context.Context, actor domain.Actor, id string) error
}

type CouponService interface {
	Generate(ctx context.Context, actor domain.Actor, offerID string) (*domain.Coupon, bool, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Coupon, error)
	ListMine(ctx context.Context, actor domain.Actor, f coupon.ListFilter) ([]domain.Coupon, int, error)
	ListForCompany(ctx context.Context, actor domain.Actor, companyID string, f coupon.ListFilter) ([]domain.Coupon, int, error)
	QR(ctx context.Context, actor domain.Actor, id string) ([]byte, error)
	Cancel(ctx context.Context, actor domain.Actor, id string) error
	Redeem(ctx context.Context, actor domain.Actor, code string) (*domain.Coupon, error)
}

type ConversationService interface {
	Start(ctx context.Context, actor domain.Actor, in conversation.StartInput) (*domain.Conversation, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Conversation, error)
	List(ctx context.Context, actor domain.Actor, f conversation.ListFilter) ([]domain.Conversation, int, error)
	Send(ctx context.Context, actor domain.Actor, conversationID, body string) (*domain.Message, error)
	Messages(ctx context.Context, actor domain.Actor, id string, before *conversation.Cursor, limit int) ([]domain.Message, error)
	MarkRead(ctx context.Context, actor domain.Actor, id string) error
	Archive(ctx context.Context, actor domain.Actor, id string, archived bool) error
	UnreadTotal(ctx context.Context, actor domain.Actor) (int, error)
}

type NotificationService interface {
	List(ctx context.Context, userID string, f notification.ListFilter) ([]domain.Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, id string) error
}

type GroupOfferService interface {
	Submit(ctx context.Context, actor domain.Actor, in groupoffer.SubmitInput) (*domain.GroupOfferRequest, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.GroupOfferRequest, error)
	List(ctx context.Context, actor domain.Actor, f groupoffer.ListFilter) ([]domain.GroupOfferRequest, int, error)
	StartReview(ctx context.Context, actor domain.Actor, id string) (*domain.GroupOfferRequest, error)
	Decide(ctx context.Context, actor domain.Actor, id string, in groupoffer.DecideInput) (*domain.GroupOfferRequest, error)
	Cancel(ctx context.Context, actor domain.Actor, id string) error
	Reassign(ctx context.Context, actor domain.Actor, id, gestorID string) (*domain.GroupOfferRequest, error)
}

type LeadService interface {
	Create(ctx context.Context, actor domain.Actor, in lead.CreateInput) (*domain.Lead, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Lead, error)
	List(ctx context.Context, actor domain.Actor, f lead.ListFilter) ([]domain.Lead, int, error)
	Update(ctx context.Context, actor domain.Actor, id string, u lead.UpdateFields) (*domain.Lead, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
	ChangeStage(ctx context.Context, actor domain.Actor, id string, next domain.LeadStage, lostReason string) (*domain.Lead, error)
	Assign(ctx context.Context, actor domain.Actor, id, gestorID string) (*domain.Lead, error)
	Convert(ctx context.Context, actor domain.Actor, id string) (*domain.Company, error)
	Pipeline(ctx context.Context, actor domain.Actor, gestorID string) ([]domain.StageSummary, error)
	CreateTask(ctx context.Context, actor domain.Actor, leadID string, in lead.TaskInput) (*domain.LeadTask, error)
	ListTasks(ctx context.Context, actor domain.Actor, leadID string) ([]domain.LeadTask, error)
	MyTasks(ctx context.Context, actor domain.Actor, dueBefore *time.Time) ([]domain.LeadTask, error)
	CompleteTask(ctx context.Context, actor domain.Actor, id string) error
	DeleteTask(ctx context.Context, actor domain.Actor, id string) error
}

type ContentService interface {
	Create(ctx context.Context, actor domain.Actor, in content.CreateInput) (*domain.Content, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Content, error)
	Update(ctx context.Context, actor domain.Actor, id string, u content.UpdateFields) (*domain.Content, error)
	Submit(ctx context.Context, actor domain.Actor, id string) (*domain.Content, error)
	Moderate(ctx context.Context, actor domain.Actor, id string, in content.ModerateInput) (*domain.Content, error)
	Archive(ctx context.Context, actor domain.Actor, id string) error
	ListPublished(ctx context.Context, f content.ListFilter) ([]domain.Content, int, error)
	ListPending(ctx context.Context, actor domain.Actor, f content.ListFilter) ([]domain.Content, int, error)
	ListMine(ctx context.Context, actor domain.Actor, f content.ListFilter) ([]domain.Content, int, error)
	UploadImage(ctx context.Context, actor domain.Actor, data []byte) (domain.StoredImage, error)
}

type DashboardService interface {
	Admin(ctx context.Context, actor domain.Actor) (*dashboard.AdminStats, error)
	Gestor(ctx context.Context, actor domain.Actor, gestorID string) (*dashboard.GestorStats, error)
	Company(ctx context.Context, actor domain.Actor, companyID string) (*dashboard.CompanyStats, error)
}

// AuditLog lists an entity's audit trail.
type AuditLog interface {
	ListForEntity(ctx context.Context, entity, id string, limit int) ([]domain.AuditEvent, error)
}

// Services bundles everything the handlers call.
type Services struct {
	Users         UserService
	Companies     CompanyService
	Billing       BillingService
	Offers        OfferService
	Coupons       CouponService
	Conversations ConversationService
	Notifications NotificationService
	GroupOffers   GroupOfferService
	Leads         LeadService
	Content       ContentService
	Dashboard     DashboardService
	Audit         AuditLog
}
