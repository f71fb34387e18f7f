package service

import (
	"context"
	"fmt"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/model"
)

// restorePolicy is implemented only by the four variants below, one per
// family of held kinds.
type restorePolicy interface {
	restore(ctx context.Context, s *RecycleService, rec model.HeldRecord, res *model.RestoreResult) error
}

type (
	standardRestore    struct{}
	userRestore        struct{}
	yearConfigRestore  struct{}
	monthConfigRestore struct{}
)

func restorePolicyFor(kind model.HeldKind) (restorePolicy, error) {
	switch kind {
	case model.KindPayment, model.KindProject, model.KindOther:
		return standardRestore{}, nil
	case model.KindUser:
		return userRestore{}, nil
	case model.KindYearConfigRemoved:
		return yearConfigRestore{}, nil
	case model.KindMonthConfigRemoved:
		return monthConfigRestore{}, nil
	}
	return nil, fmt.Errorf("%w: no restore policy for kind %q", model.ErrInvalidInput, kind)
}

func (standardRestore) restore(ctx context.Context, s *RecycleService, rec model.HeldRecord, res *model.RestoreResult) error {
	if err := s.replay(ctx, rec, res); err != nil {
		return err
	}
	return s.release(ctx, rec)
}

// A user comes back with the payments deleted alongside it; aggregate
// stand-ins for those payments are dropped.
func (userRestore) restore(ctx context.Context, s *RecycleService, rec model.HeldRecord, res *model.RestoreResult) error {
	if err := s.replay(ctx, rec, res); err != nil {
		return err
	}

	if rec.BatchID != "" {
		if err := s.cascade(ctx, rec, res); err != nil {
			return err
		}
		if err := s.purgeAggregates(ctx, rec.BatchID, res); err != nil {
			return err
		}
	}

	return s.release(ctx, rec)
}

func (yearConfigRestore) restore(ctx context.Context, s *RecycleService, rec model.HeldRecord, res *model.RestoreResult) error {
	if s.config == nil {
		return fmt.Errorf("restore %s: no configuration service", rec.Kind)
	}

	year, ok := docstore.Int(rec.Snapshot, "year")
	if !ok {
		return fmt.Errorf("%w: held record %s carries no year", model.ErrInvalidInput, rec.ID)
	}

	if err := s.config.AddYear(ctx, year); err != nil {
		return fmt.Errorf("re-add year %d: %w", year, err)
	}
	res.Reapplied = fmt.Sprintf("year %d", year)

	if err := s.cascade(ctx, rec, res); err != nil {
		return err
	}
	return s.release(ctx, rec)
}

func (monthConfigRestore) restore(ctx context.Context, s *RecycleService, rec model.HeldRecord, res *model.RestoreResult) error {
	if s.config == nil {
		return fmt.Errorf("restore %s: no configuration service", rec.Kind)
	}

	year, yearOK := docstore.Int(rec.Snapshot, "year")
	month, monthOK := docstore.Int(rec.Snapshot, "month")
	if !yearOK || !monthOK {
		return fmt.Errorf("%w: held record %s carries no year/month", model.ErrInvalidInput, rec.ID)
	}

	if err := s.config.EnableMonth(ctx, year, month); err != nil {
		return fmt.Errorf("re-enable %d-%02d: %w", year, month, err)
	}
	res.Reapplied = fmt.Sprintf("month %d-%02d", year, month)

	if err := s.cascade(ctx, rec, res); err != nil {
		return err
	}
	return s.release(ctx, rec)
}
