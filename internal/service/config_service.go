package service

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/event"
	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/repository"
)

const (
	minYear = 2000
	maxYear = 2100
)

// ConfigService edits the finance settings document. It implements
// ConfigRestorer for the recycle bin.
type ConfigService struct {
	store    docstore.Store
	settings *repository.SettingsRepository
	bus      event.Bus
}

func NewConfigService(store docstore.Store, bus event.Bus) *ConfigService {
	return &ConfigService{store: store, settings: repository.NewSettingsRepository(store), bus: bus}
}

func (s *ConfigService) Get(ctx context.Context) (model.FinanceSettings, error) {
	return s.settings.Get(ctx)
}

func (s *ConfigService) SetMonthlyDue(ctx context.Context, amount decimal.Decimal) (model.FinanceSettings, error) {
	if amount.IsNegative() {
		return model.FinanceSettings{}, fmt.Errorf("%w: monthly due must not be negative", model.ErrInvalidInput)
	}

	return s.modify(ctx, func(cfg *model.FinanceSettings) error {
		cfg.MonthlyDue = amount
		return nil
	})
}

// AddYear is idempotent.
func (s *ConfigService) AddYear(ctx context.Context, year int) error {
	if err := validateYear(year); err != nil {
		return err
	}

	_, err := s.modify(ctx, func(cfg *model.FinanceSettings) error {
		if !cfg.HasYear(year) {
			cfg.Years = append(cfg.Years, year)
			slices.Sort(cfg.Years)
		}
		return nil
	})
	return err
}

// RemoveYearEntry drops year from the configured years. Disabled months for
// the year are kept so a later restore brings them back unchanged.
func (s *ConfigService) RemoveYearEntry(ctx context.Context, year int) error {
	_, err := s.modify(ctx, func(cfg *model.FinanceSettings) error {
		if !cfg.HasYear(year) {
			return fmt.Errorf("%d: %w", year, model.ErrYearNotConfigured)
		}
		cfg.Years = slices.DeleteFunc(cfg.Years, func(y int) bool { return y == year })
		return nil
	})
	return err
}

// EnableMonth is idempotent.
func (s *ConfigService) EnableMonth(ctx context.Context, year int, month int) error {
	if err := validateMonth(year, month); err != nil {
		return err
	}

	_, err := s.modify(ctx, func(cfg *model.FinanceSettings) error {
		key := strconv.Itoa(year)
		months := slices.DeleteFunc(cfg.DisabledMonths[key], func(m int) bool { return m == month })
		if len(months) == 0 {
			delete(cfg.DisabledMonths, key)
		} else {
			cfg.DisabledMonths[key] = months
		}
		return nil
	})
	return err
}

func (s *ConfigService) DisableMonthEntry(ctx context.Context, year int, month int) error {
	if err := validateMonth(year, month); err != nil {
		return err
	}

	_, err := s.modify(ctx, func(cfg *model.FinanceSettings) error {
		key := strconv.Itoa(year)
		if !slices.Contains(cfg.DisabledMonths[key], month) {
			cfg.DisabledMonths[key] = append(cfg.DisabledMonths[key], month)
			slices.Sort(cfg.DisabledMonths[key])
		}
		return nil
	})
	return err
}

func (s *ConfigService) modify(ctx context.Context, fn func(cfg *model.FinanceSettings) error) (model.FinanceSettings, error) {
	var updated model.FinanceSettings

	_, err := runInTx(ctx, s.store, func(ctx context.Context) error {
		cfg, err := s.settings.Get(ctx)
		if err != nil {
			return err
		}
		if err := fn(&cfg); err != nil {
			return err
		}
		if err := s.settings.Save(ctx, cfg); err != nil {
			return err
		}
		updated = cfg
		return nil
	})
	if err != nil {
		return model.FinanceSettings{}, err
	}

	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeSettingsChanged, "", updated))
	}
	return updated, nil
}

func validateYear(year int) error {
	if year < minYear || year > maxYear {
		return fmt.Errorf("%w: year %d outside %d-%d", model.ErrInvalidInput, year, minYear, maxYear)
	}
	return nil
}

func validateMonth(year, month int) error {
	if err := validateYear(year); err != nil {
		return err
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: %d", model.ErrMonthOutOfRange, month)
	}
	return nil
}
