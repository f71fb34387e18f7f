package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/model"
)

const (
	PaymentsCollection = "payments"
	ExpensesCollection = "expenses"
	SettingsCollection = "settings"

	financeSettingsID = "finance"
)

type PaymentRepository struct {
	store docstore.Store
}

func NewPaymentRepository(store docstore.Store) *PaymentRepository {
	return &PaymentRepository{store: store}
}

func (r *PaymentRepository) Create(ctx context.Context, p model.Payment) (model.Payment, error) {
	id, err := create(ctx, r.store, PaymentsCollection, p)
	if err != nil {
		return model.Payment{}, err
	}
	p.ID = id
	return p, nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (model.Payment, error) {
	return getAs[model.Payment](ctx, r.store, PaymentsCollection, id)
}

func (r *PaymentRepository) All(ctx context.Context) ([]model.Payment, error) {
	return findAs[model.Payment](ctx, r.store, docstore.Collection(PaymentsCollection).Order("date", docstore.Desc))
}

func (r *PaymentRepository) FindByYear(ctx context.Context, year int) ([]model.Payment, error) {
	return findAs[model.Payment](ctx, r.store, docstore.Collection(PaymentsCollection).
		Where("year", docstore.OpEq, year).
		Order("date", docstore.Desc))
}

func (r *PaymentRepository) FindByMonth(ctx context.Context, year, month int) ([]model.Payment, error) {
	return findAs[model.Payment](ctx, r.store, docstore.Collection(PaymentsCollection).
		Where("year", docstore.OpEq, year).
		Where("month", docstore.OpEq, month))
}

func (r *PaymentRepository) FindByMember(ctx context.Context, memberID string) ([]model.Payment, error) {
	return findAs[model.Payment](ctx, r.store, docstore.Collection(PaymentsCollection).
		Where("memberId", docstore.OpEq, memberID))
}

// FindByLinkedBatch returns the aggregate stand-ins created for a departed member's batch.
func (r *PaymentRepository) FindByLinkedBatch(ctx context.Context, batchID string) ([]model.Payment, error) {
	return findAs[model.Payment](ctx, r.store, docstore.Collection(PaymentsCollection).
		Where("linkedBatchId", docstore.OpEq, batchID))
}

func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, PaymentsCollection, id); err != nil {
		return fmt.Errorf("delete payment %s: %w", id, err)
	}
	return nil
}

type ExpenseRepository struct {
	store docstore.Store
}

func NewExpenseRepository(store docstore.Store) *ExpenseRepository {
	return &ExpenseRepository{store: store}
}

func (r *ExpenseRepository) Create(ctx context.Context, e model.Expense) (model.Expense, error) {
	id, err := create(ctx, r.store, ExpensesCollection, e)
	if err != nil {
		return model.Expense{}, err
	}
	e.ID = id
	return e, nil
}

func (r *ExpenseRepository) FindByID(ctx context.Context, id string) (model.Expense, error) {
	return getAs[model.Expense](ctx, r.store, ExpensesCollection, id)
}

func (r *ExpenseRepository) All(ctx context.Context) ([]model.Expense, error) {
	return findAs[model.Expense](ctx, r.store, docstore.Collection(ExpensesCollection).Order("date", docstore.Desc))
}

func (r *ExpenseRepository) FindByYear(ctx context.Context, year int) ([]model.Expense, error) {
	return findAs[model.Expense](ctx, r.store, docstore.Collection(ExpensesCollection).
		Where("year", docstore.OpEq, year).
		Order("date", docstore.Desc))
}

// SettingsRepository owns the always-live finance settings document.
type SettingsRepository struct {
	store docstore.Store
}

func NewSettingsRepository(store docstore.Store) *SettingsRepository {
	return &SettingsRepository{store: store}
}

// Get returns zero-valued settings when the document has never been written.
func (r *SettingsRepository) Get(ctx context.Context) (model.FinanceSettings, error) {
	s, err := getAs[model.FinanceSettings](ctx, r.store, SettingsCollection, financeSettingsID)
	if errors.Is(err, model.ErrRecordNotFound) {
		return model.FinanceSettings{MonthlyDue: decimal.Zero, Years: []int{}, DisabledMonths: map[string][]int{}}, nil
	}
	if err != nil {
		return model.FinanceSettings{}, err
	}

	if s.Years == nil {
		s.Years = []int{}
	}
	if s.DisabledMonths == nil {
		s.DisabledMonths = map[string][]int{}
	}
	return s, nil
}

func (r *SettingsRepository) Save(ctx context.Context, s model.FinanceSettings) error {
	data, err := docstore.Encode(s)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, SettingsCollection, financeSettingsID, data); err != nil {
		return fmt.Errorf("save finance settings: %w", err)
	}
	return nil
}
