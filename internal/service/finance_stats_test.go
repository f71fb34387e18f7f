package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-charity-backoffice/internal/model"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestComputeMemberDues(t *testing.T) {
	cfg := model.FinanceSettings{
		MonthlyDue:     dec(100),
		Years:          []int{2024},
		DisabledMonths: map[string][]int{"2024": {12}},
	}
	members := []model.Member{{ID: "u2", Name: "Zara"}, {ID: "u1", Name: "Rahim"}}
	payments := []model.Payment{
		{MemberID: "u1", Amount: dec(100), Year: 2024, Month: 1},
		{MemberID: "u1", Amount: dec(100), Year: 2024, Month: 2},
		{MemberID: "u1", Amount: dec(100), Year: 2024, Month: 12},
		{MemberID: "u2", Amount: dec(2000), Year: 2024, Month: 5},
		{MemberID: "u2", Amount: dec(700), IsAggregate: true},
	}

	dues := computeMemberDues(cfg, 2024, members, payments)
	require.Len(t, dues, 2)

	rahim := dues[0]
	assert.Equal(t, "Rahim", rahim.MemberName)
	assert.True(t, rahim.Due.Equal(dec(1100)))
	assert.True(t, rahim.Paid.Equal(dec(200)))
	assert.True(t, rahim.Outstanding.Equal(dec(900)))
	assert.Equal(t, []int{1, 2}, rahim.PaidMonths)

	zara := dues[1]
	assert.True(t, zara.Paid.Equal(dec(2000)))
	assert.True(t, zara.Outstanding.IsZero())
}

func TestRankContributors(t *testing.T) {
	payments := []model.Payment{
		{MemberID: "u1", MemberName: "Rahim", Amount: dec(300)},
		{MemberID: "u2", MemberName: "Abdul", Amount: dec(500)},
		{MemberID: "u1", MemberName: "Rahim", Amount: dec(200)},
		{MemberName: "walk-in donor", Amount: dec(50)},
		{MemberName: "Walk-in Donor ", Amount: dec(25)},
	}

	ranked := rankContributors(payments, 0)
	require.Len(t, ranked, 3)

	assert.Equal(t, "Abdul", ranked[0].MemberName)
	assert.Equal(t, "Rahim", ranked[1].MemberName)
	assert.Equal(t, 2, ranked[1].Payments)
	assert.True(t, ranked[1].Total.Equal(dec(500)))
	assert.True(t, ranked[2].Total.Equal(dec(75)))

	assert.Len(t, rankContributors(payments, 1), 1)
}

func TestComputeMonthlyStats(t *testing.T) {
	payments := []model.Payment{
		{Amount: dec(100), Month: 1},
		{Amount: dec(50), Month: 1},
		{Amount: dec(500), Month: 0},
	}
	expenses := []model.Expense{{Amount: dec(30), Month: 1}, {Amount: dec(10), Month: 2}}

	stats := computeMonthlyStats(payments, expenses)
	require.Len(t, stats, 12)

	assert.Equal(t, 1, stats[0].Month)
	assert.True(t, stats[0].Income.Equal(dec(150)))
	assert.True(t, stats[0].Net.Equal(dec(120)))
	assert.Equal(t, 2, stats[0].PaymentCount)
	assert.True(t, stats[1].Net.Equal(dec(-10)))
	assert.True(t, stats[11].Net.IsZero())
}

func TestFinanceService_MemberDues(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	_, err := s.finance.MemberDues(ctx, 2024)
	assert.ErrorIs(t, err, model.ErrYearNotConfigured)

	require.NoError(t, s.config.AddYear(ctx, 2024))
	_, err = s.config.SetMonthlyDue(ctx, dec(50))
	require.NoError(t, err)

	member, err := s.members.Create(ctx, model.CreateMemberRequest{Name: "Rahim"}, model.AuditActor{})
	require.NoError(t, err)
	s.pay(t, member.ID, member.Name, 50, 2024, 1)

	dues, err := s.finance.MemberDues(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, dues, 1)
	assert.True(t, dues[0].Due.Equal(dec(600)))
	assert.True(t, dues[0].Outstanding.Equal(dec(550)))
}
