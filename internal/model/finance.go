package model

import (
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID            string          `json:"id"`
	MemberID      string          `json:"memberId"`
	MemberName    string          `json:"memberName"`
	Amount        decimal.Decimal `json:"amount"`
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	Date          time.Time       `json:"date"`
	Note          string          `json:"note,omitempty"`
	IsAggregate   bool            `json:"isAggregate,omitempty"`
	LinkedBatchID string          `json:"linkedBatchId,omitempty"`
}

// Label is the recycle bin display name of the payment.
func (p Payment) Label() string {
	if p.Month < 1 || p.Month > 12 {
		return "Dues — " + p.MemberName
	}
	return time.Month(p.Month).String()[:3] + " Dues — " + p.MemberName
}

type Expense struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category,omitempty"`
	Date     time.Time       `json:"date"`
	Year     int             `json:"year"`
	Month    int             `json:"month"`
}

// FinanceSettings is the single live settings document for dues tracking.
// DisabledMonths is keyed by the year in decimal.
type FinanceSettings struct {
	MonthlyDue     decimal.Decimal  `json:"monthlyDue"`
	Years          []int            `json:"years"`
	DisabledMonths map[string][]int `json:"disabledMonths"`
}

func (s FinanceSettings) HasYear(year int) bool {
	return slices.Contains(s.Years, year)
}

func (s FinanceSettings) MonthEnabled(year, month int) bool {
	return !slices.Contains(s.DisabledMonths[strconv.Itoa(year)], month)
}

// EnabledMonths lists the months of year that accrue dues.
func (s FinanceSettings) EnabledMonths(year int) []int {
	months := make([]int, 0, 12)
	for m := 1; m <= 12; m++ {
		if s.MonthEnabled(year, m) {
			months = append(months, m)
		}
	}
	return months
}

type MemberDue struct {
	MemberID    string          `json:"memberId"`
	MemberName  string          `json:"memberName"`
	Due         decimal.Decimal `json:"due"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	PaidMonths  []int           `json:"paidMonths"`
}

type Contributor struct {
	MemberID   string          `json:"memberId,omitempty"`
	MemberName string          `json:"memberName"`
	Total      decimal.Decimal `json:"total"`
	Payments   int             `json:"payments"`
}

type MonthStat struct {
	Month        int             `json:"month"`
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Net          decimal.Decimal `json:"net"`
	PaymentCount int             `json:"paymentCount"`
}
