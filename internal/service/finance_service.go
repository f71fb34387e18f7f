package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/event"
	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/repository"
	"go-charity-backoffice/internal/util"
)

type FinanceService struct {
	payments *repository.PaymentRepository
	expenses *repository.ExpenseRepository
	members  *repository.MemberRepository
	config   *ConfigService
	recycle  *RecycleService
	activity *ActivityService
	bus      event.Bus
	now      func() time.Time
}

func NewFinanceService(store docstore.Store, config *ConfigService, recycle *RecycleService, activity *ActivityService, bus event.Bus) *FinanceService {
	return &FinanceService{
		payments: repository.NewPaymentRepository(store),
		expenses: repository.NewExpenseRepository(store),
		members:  repository.NewMemberRepository(store),
		config:   config,
		recycle:  recycle,
		activity: activity,
		bus:      bus,
		now:      time.Now,
	}
}

func (s *FinanceService) CreatePayment(ctx context.Context, req model.CreatePaymentRequest, actor model.AuditActor) (model.Payment, error) {
	name := util.CleanText(req.MemberName, util.MaxNameLength)
	if name == "" {
		return model.Payment{}, fmt.Errorf("%w: member name is required", model.ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return model.Payment{}, fmt.Errorf("%w: amount must be positive", model.ErrInvalidInput)
	}
	if err := validateMonth(req.Year, req.Month); err != nil {
		return model.Payment{}, err
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return model.Payment{}, err
	}
	if !cfg.HasYear(req.Year) {
		return model.Payment{}, fmt.Errorf("%d: %w", req.Year, model.ErrYearNotConfigured)
	}

	date := req.Date
	if date.IsZero() {
		date = s.now()
	}

	payment, err := s.payments.Create(ctx, model.Payment{
		MemberID:   strings.TrimSpace(req.MemberID),
		MemberName: name,
		Amount:     req.Amount,
		Year:       req.Year,
		Month:      req.Month,
		Date:       date.UTC(),
		Note:       util.CleanText(req.Note, util.MaxNoteLength),
	})
	if err != nil {
		return model.Payment{}, err
	}

	s.activity.Log(ctx, "payment.create", actor, ActivityStatusSuccess, repository.PaymentsCollection+"/"+payment.ID, payment, "")
	s.publish(event.TypePaymentCreated, actor.UserID, payment)
	return payment, nil
}

// ListPayments returns every payment when year is zero.
func (s *FinanceService) ListPayments(ctx context.Context, year int) ([]model.Payment, error) {
	if year == 0 {
		return s.payments.All(ctx)
	}
	return s.payments.FindByYear(ctx, year)
}

func (s *FinanceService) DeletePayment(ctx context.Context, id string, actor model.AuditActor) (model.HeldRecord, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return model.HeldRecord{}, err
	}

	return s.recycle.SoftDelete(ctx, model.SoftDeleteRequest{
		Collection:  repository.PaymentsCollection,
		ID:          payment.ID,
		Kind:        model.KindPayment,
		DisplayName: payment.Label(),
		DeletedBy:   actor.Name(),
	})
}

func (s *FinanceService) CreateExpense(ctx context.Context, req model.CreateExpenseRequest, actor model.AuditActor) (model.Expense, error) {
	title := util.CleanText(req.Title, util.MaxTitleLength)
	if title == "" {
		return model.Expense{}, fmt.Errorf("%w: title is required", model.ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return model.Expense{}, fmt.Errorf("%w: amount must be positive", model.ErrInvalidInput)
	}

	date := req.Date
	if date.IsZero() {
		date = s.now()
	}
	date = date.UTC()

	expense, err := s.expenses.Create(ctx, model.Expense{
		Title:    title,
		Amount:   req.Amount,
		Category: util.CleanText(req.Category, util.MaxNameLength),
		Date:     date,
		Year:     date.Year(),
		Month:    int(date.Month()),
	})
	if err != nil {
		return model.Expense{}, err
	}

	s.activity.Log(ctx, "expense.create", actor, ActivityStatusSuccess, repository.ExpensesCollection+"/"+expense.ID, expense, "")
	s.publish(event.TypeExpenseCreated, actor.UserID, expense)
	return expense, nil
}

func (s *FinanceService) ListExpenses(ctx context.Context, year int) ([]model.Expense, error) {
	if year == 0 {
		return s.expenses.All(ctx)
	}
	return s.expenses.FindByYear(ctx, year)
}

func (s *FinanceService) DeleteExpense(ctx context.Context, id string, actor model.AuditActor) (model.HeldRecord, error) {
	expense, err := s.expenses.FindByID(ctx, id)
	if err != nil {
		return model.HeldRecord{}, err
	}

	return s.recycle.SoftDelete(ctx, model.SoftDeleteRequest{
		Collection:  repository.ExpensesCollection,
		ID:          expense.ID,
		Kind:        model.KindOther,
		DisplayName: "Expense — " + expense.Title,
		DeletedBy:   actor.Name(),
	})
}

// RemoveYear soft-deletes every payment of year under one batch, records the
// removal in the recycle bin and drops the year from the settings. Restoring
// the returned record brings all of it back.
func (s *FinanceService) RemoveYear(ctx context.Context, year int, actor model.AuditActor) (model.HeldRecord, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return model.HeldRecord{}, err
	}
	if !cfg.HasYear(year) {
		return model.HeldRecord{}, fmt.Errorf("%d: %w", year, model.ErrYearNotConfigured)
	}

	payments, err := s.payments.FindByYear(ctx, year)
	if err != nil {
		return model.HeldRecord{}, err
	}

	batchID := uuid.NewString()
	if err := s.holdPayments(ctx, payments, batchID, actor); err != nil {
		return model.HeldRecord{}, err
	}

	held, err := s.recycle.LogSystemAction(ctx, actor.Name(),
		fmt.Sprintf("Year %d", year),
		fmt.Sprintf("Removed year %d and %d payments from finance settings", year, len(payments)),
		model.KindYearConfigRemoved,
		map[string]any{"year": year, "batchId": batchID, "payments": len(payments)})
	if err != nil {
		return model.HeldRecord{}, err
	}

	if err := s.config.RemoveYearEntry(ctx, year); err != nil {
		return model.HeldRecord{}, err
	}

	s.activity.Log(ctx, "finance.remove_year", actor, ActivityStatusSuccess, fmt.Sprintf("years/%d", year),
		map[string]any{"batchId": batchID, "payments": len(payments)}, "")
	return held, nil
}

// DisableMonth is RemoveYear for a single month of a configured year.
func (s *FinanceService) DisableMonth(ctx context.Context, year int, month int, actor model.AuditActor) (model.HeldRecord, error) {
	if err := validateMonth(year, month); err != nil {
		return model.HeldRecord{}, err
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return model.HeldRecord{}, err
	}
	if !cfg.HasYear(year) {
		return model.HeldRecord{}, fmt.Errorf("%d: %w", year, model.ErrYearNotConfigured)
	}
	if !cfg.MonthEnabled(year, month) {
		return model.HeldRecord{}, fmt.Errorf("%w: %d-%02d is already disabled", model.ErrInvalidInput, year, month)
	}

	payments, err := s.payments.FindByMonth(ctx, year, month)
	if err != nil {
		return model.HeldRecord{}, err
	}

	batchID := uuid.NewString()
	if err := s.holdPayments(ctx, payments, batchID, actor); err != nil {
		return model.HeldRecord{}, err
	}

	label := fmt.Sprintf("%s %d", time.Month(month).String(), year)
	held, err := s.recycle.LogSystemAction(ctx, actor.Name(),
		label,
		fmt.Sprintf("Disabled %s and removed %d payments", label, len(payments)),
		model.KindMonthConfigRemoved,
		map[string]any{"year": year, "month": month, "batchId": batchID, "payments": len(payments)})
	if err != nil {
		return model.HeldRecord{}, err
	}

	if err := s.config.DisableMonthEntry(ctx, year, month); err != nil {
		return model.HeldRecord{}, err
	}

	s.activity.Log(ctx, "finance.disable_month", actor, ActivityStatusSuccess, fmt.Sprintf("years/%d/months/%d", year, month),
		map[string]any{"batchId": batchID, "payments": len(payments)}, "")
	return held, nil
}

func (s *FinanceService) holdPayments(ctx context.Context, payments []model.Payment, batchID string, actor model.AuditActor) error {
	for _, p := range payments {
		_, err := s.recycle.SoftDelete(ctx, model.SoftDeleteRequest{
			Collection:  repository.PaymentsCollection,
			ID:          p.ID,
			Kind:        model.KindPayment,
			DisplayName: p.Label(),
			DeletedBy:   actor.Name(),
			BatchID:     batchID,
		})
		if err != nil {
			return fmt.Errorf("hold payment %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *FinanceService) publish(t event.Type, actorID string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(t, actorID, payload))
}

func sumPayments(payments []model.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
