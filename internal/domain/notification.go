package domain

import "time"

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotifyNewMessage        NotificationType = "NEW_MESSAGE"
	NotifyGroupOfferNew     NotificationType = "GROUP_OFFER_SUBMITTED"
	NotifyGroupOfferDecided NotificationType = "GROUP_OFFER_DECIDED"
	NotifyLeadAssigned      NotificationType = "LEAD_ASSIGNED"
	NotifyTaskDue           NotificationType = "TASK_DUE"
	NotifyCompanyAssigned   NotificationType = "COMPANY_ASSIGNED"
	NotifyPlanChanged       NotificationType = "PLAN_CHANGED"
	NotifyContentModerated  NotificationType = "CONTENT_MODERATED"
	NotifyCouponIssued      NotificationType = "COUPON_ISSUED"
	NotifySystem            NotificationType = "SYSTEM"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body,omitempty"`
	Link      string           `json:"link,omitempty"`
	Priority  Priority         `json:"priority"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
