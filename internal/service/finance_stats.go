package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"go-charity-backoffice/internal/model"
)

const defaultTopContributors = 5

// MemberDues computes what every member owes for year.
func (s *FinanceService) MemberDues(ctx context.Context, year int) ([]model.MemberDue, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.HasYear(year) {
		return nil, fmt.Errorf("%d: %w", year, model.ErrYearNotConfigured)
	}

	members, err := s.members.All(ctx)
	if err != nil {
		return nil, err
	}

	payments, err := s.payments.FindByYear(ctx, year)
	if err != nil {
		return nil, err
	}

	return computeMemberDues(cfg, year, members, payments), nil
}

func (s *FinanceService) TopContributors(ctx context.Context, limit int) ([]model.Contributor, error) {
	payments, err := s.payments.All(ctx)
	if err != nil {
		return nil, err
	}
	return rankContributors(payments, limit), nil
}

func (s *FinanceService) MonthlyStats(ctx context.Context, year int) ([]model.MonthStat, error) {
	payments, err := s.payments.FindByYear(ctx, year)
	if err != nil {
		return nil, err
	}

	expenses, err := s.expenses.FindByYear(ctx, year)
	if err != nil {
		return nil, err
	}

	return computeMonthlyStats(payments, expenses), nil
}

// computeMemberDues charges monthlyDue for each enabled month; payments
// recorded against disabled months do not count.
func computeMemberDues(cfg model.FinanceSettings, year int, members []model.Member, payments []model.Payment) []model.MemberDue {
	enabled := cfg.EnabledMonths(year)
	due := cfg.MonthlyDue.Mul(decimal.NewFromInt(int64(len(enabled))))

	byMember := make(map[string][]model.Payment)
	for _, p := range payments {
		if p.IsAggregate || !cfg.MonthEnabled(year, p.Month) {
			continue
		}
		byMember[p.MemberID] = append(byMember[p.MemberID], p)
	}

	dues := make([]model.MemberDue, 0, len(members))
	for _, m := range members {
		paid := sumPayments(byMember[m.ID])

		months := make([]int, 0, len(byMember[m.ID]))
		for _, p := range byMember[m.ID] {
			if !slices.Contains(months, p.Month) {
				months = append(months, p.Month)
			}
		}
		slices.Sort(months)

		outstanding := due.Sub(paid)
		if outstanding.IsNegative() {
			outstanding = decimal.Zero
		}

		dues = append(dues, model.MemberDue{
			MemberID:    m.ID,
			MemberName:  m.Name,
			Due:         due,
			Paid:        paid,
			Outstanding: outstanding,
			PaidMonths:  months,
		})
	}

	slices.SortStableFunc(dues, func(a, b model.MemberDue) int {
		return strings.Compare(a.MemberName, b.MemberName)
	})
	return dues
}

// rankContributors totals payments per member, largest first, ties by name.
// Payments without a member id are grouped by name.
func rankContributors(payments []model.Payment, limit int) []model.Contributor {
	if limit <= 0 {
		limit = defaultTopContributors
	}

	index := make(map[string]int)
	var contributors []model.Contributor
	for _, p := range payments {
		key := p.MemberID
		if key == "" {
			key = "name:" + strings.ToLower(strings.TrimSpace(p.MemberName))
		}

		i, ok := index[key]
		if !ok {
			i = len(contributors)
			index[key] = i
			contributors = append(contributors, model.Contributor{
				MemberID:   p.MemberID,
				MemberName: p.MemberName,
				Total:      decimal.Zero,
			})
		}
		contributors[i].Total = contributors[i].Total.Add(p.Amount)
		contributors[i].Payments++
	}

	slices.SortFunc(contributors, func(a, b model.Contributor) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.MemberName, b.MemberName)
	})

	if len(contributors) > limit {
		contributors = contributors[:limit]
	}
	return contributors
}

func computeMonthlyStats(payments []model.Payment, expenses []model.Expense) []model.MonthStat {
	stats := make([]model.MonthStat, 12)
	for i := range stats {
		stats[i] = model.MonthStat{Month: i + 1, Income: decimal.Zero, Expense: decimal.Zero, Net: decimal.Zero}
	}

	for _, p := range payments {
		if p.Month < 1 || p.Month > 12 {
			continue
		}
		stats[p.Month-1].Income = stats[p.Month-1].Income.Add(p.Amount)
		stats[p.Month-1].PaymentCount++
	}

	for _, e := range expenses {
		if e.Month < 1 || e.Month > 12 {
			continue
		}
		stats[e.Month-1].Expense = stats[e.Month-1].Expense.Add(e.Amount)
	}

	for i := range stats {
		stats[i].Net = stats[i].Income.Sub(stats[i].Expense)
	}
	return stats
}
