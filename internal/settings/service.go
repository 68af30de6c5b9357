package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/seralvarez/casillero-backend/pkg/config"
	"github.com/seralvarez/casillero-backend/pkg/db/models"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
	"github.com/seralvarez/casillero-backend/pkg/logger"
)

// cache is the slice of the Redis client the settings service needs.
type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SettingsKey() string
}

// ServiceParams groups dependencies for the settings service.
type ServiceParams struct {
	Repo   *Repository
	Cache  cache
	Config config.PricingConfig
	Logger *logger.Logger
}

// Service exposes the store percentage configuration.
type Service interface {
	Get(ctx context.Context) StoreSettingsDTO
	Update(ctx context.Context, input UpdateSettingsInput) (StoreSettingsDTO, error)
}

type service struct {
	repo     *Repository
	cache    cache
	cacheTTL time.Duration
	defaults StoreSettingsDTO
	logg     *logger.Logger
}

// NewService builds a settings service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settings repo is required")
	}
	if params.Cache == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settings cache is required")
	}
	return &service{
		repo:     params.Repo,
		cache:    params.Cache,
		cacheTTL: params.Config.SettingsCacheTTL,
		defaults: StoreSettingsDTO{
			IVAPct:           decimal.NewFromFloat(params.Config.DefaultIVAPct),
			ServiceChargePct: decimal.NewFromFloat(params.Config.DefaultServiceChargePct),
		},
		logg: params.Logger,
	}, nil
}

// Get returns the store percentages. Cache and DB failures degrade to the
// compiled defaults so checkout never blocks on the settings row.
func (s *service) Get(ctx context.Context) StoreSettingsDTO {
	if cached, err := s.cache.Get(ctx, s.cache.SettingsKey()); err == nil {
		var dto StoreSettingsDTO
		if err := json.Unmarshal([]byte(cached), &dto); err == nil {
			return dto
		}
	}

	row, err := s.repo.Fetch(ctx)
	if err != nil {
		if s.logg != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "settings fetch failed, serving defaults")
		}
		return s.defaults
	}

	dto := StoreSettingsDTO{
		IVAPct:           row.IVAPct,
		ServiceChargePct: row.ServiceChargePct,
	}
	s.storeInCache(ctx, dto)
	return dto
}

// Update persists the singleton row and invalidates the cache.
func (s *service) Update(ctx context.Context, input UpdateSettingsInput) (StoreSettingsDTO, error) {
	if input.IVAPct.IsNegative() {
		return StoreSettingsDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "iva_pct must not be negative")
	}
	if input.ServiceChargePct.IsNegative() {
		return StoreSettingsDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "service_charge_pct must not be negative")
	}

	row := models.StoreSettings{
		IVAPct:           input.IVAPct,
		ServiceChargePct: input.ServiceChargePct,
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return StoreSettingsDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist settings")
	}

	if err := s.cache.Del(ctx, s.cache.SettingsKey()); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "settings cache invalidation failed")
	}

	return StoreSettingsDTO{
		IVAPct:           input.IVAPct,
		ServiceChargePct: input.ServiceChargePct,
	}, nil
}

func (s *service) storeInCache(ctx context.Context, dto StoreSettingsDTO) {
	payload, err := json.Marshal(dto)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.SettingsKey(), string(payload), s.cacheTTL); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "settings cache write failed")
	}
}
