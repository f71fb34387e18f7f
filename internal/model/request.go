package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreatePaymentRequest struct {
	MemberID   string          `json:"memberId"`
	MemberName string          `json:"memberName"`
	Amount     decimal.Decimal `json:"amount"`
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Date       time.Time       `json:"date"`
	Note       string          `json:"note"`
}

type CreateExpenseRequest struct {
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Date     time.Time       `json:"date"`
}

type CreateMemberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

type CreateProjectRequest struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Status  string `json:"status"`
	Goal    string `json:"goal"`
}

type SetMonthlyDueRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type AddYearRequest struct {
	Year int `json:"year"`
}

type EmptyBinResponse struct {
	Purged int `json:"purged"`
}

type CleanupResponse struct {
	Removed int `json:"removed"`
}

type AuditActor struct {
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	IP       string `json:"ip,omitempty"`
}

// Name is the identity string recorded as deletedBy.
func (a AuditActor) Name() string {
	if a.Username != "" {
		return a.Username
	}
	return a.UserID
}

type ActivityEntry struct {
	ID         string     `json:"id"`
	Action     string     `json:"action"`
	OccurredAt time.Time  `json:"occurredAt"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Resource   string     `json:"resource,omitempty"`
	Details    any        `json:"details,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type ActivityFilter struct {
	Action string
	UserID string
	Since  time.Time
}
