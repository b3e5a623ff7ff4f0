package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/stackdesk/stackdesk/internal/config"
	"github.com/stackdesk/stackdesk/internal/observability/metrics"
	"github.com/stackdesk/stackdesk/internal/tenant/domain"
	"github.com/stackdesk/stackdesk/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	log         *zap.Logger
	db          *gorm.DB
	repo        domain.Repository
	profileRepo domain.ProfileRepository
	genID       *snowflake.Node
	metrics     *metrics.Metrics

	platformDomain string
	devSlug        string
}

func NewService(log *zap.Logger, dbConn *gorm.DB, repo domain.Repository, profileRepo domain.ProfileRepository, genID *snowflake.Node, m *metrics.Metrics, cfg config.Config) domain.Service {
	return &service{
		log:            log.Named("tenant.service"),
		db:             dbConn,
		repo:           repo,
		profileRepo:    profileRepo,
		genID:          genID,
		metrics:        m,
		platformDomain: strings.TrimPrefix(cfg.PlatformDomain, "."),
		devSlug:        cfg.DevTenantSlug,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateTenantRequest) (*domain.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	tenantSlug := strings.TrimSpace(req.Slug)
	if tenantSlug == "" {
		tenantSlug = name
	}
	tenantSlug = slug.Make(tenantSlug)
	if tenantSlug == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	tenant := &domain.Tenant{
		ID:        s.genID.Generate(),
		Slug:      tenantSlug,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateTenant(ctx, tenant); err != nil {
			return err
		}
		return repo.CreateSettings(ctx, &domain.TenantSettings{
			TenantID:  tenant.ID,
			Timezone:  "UTC",
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	s.log.Info("tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("slug", tenant.Slug),
	)

	return tenant, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Tenant, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context) ([]domain.Tenant, error) {
	return s.repo.ListTenants(ctx)
}

func (s *service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateTenantRequest) (*domain.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	fields := map[string]any{
		"name":       name,
		"updated_at": time.Now().UTC(),
	}
	if err := s.repo.UpdateTenant(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) Resolve(ctx context.Context, host string) (*domain.Resolution, error) {
	info := domain.ResolveHost(host, s.platformDomain, s.devSlug)
	if info.App == domain.AppMarketing || info.Slug == "" {
		s.metrics.RecordTenantLookup(ctx, "marketing")
		return &domain.Resolution{App: domain.AppMarketing}, nil
	}

	tenant, err := s.repo.FindBySlug(ctx, info.Slug)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			// Expected for unconfigured hosts, not a dependency failure.
			s.metrics.RecordTenantLookup(ctx, "miss")
			s.log.Info("tenant not found", zap.String("host", host), zap.String("slug", info.Slug))
			return nil, domain.ErrTenantNotFound
		}
		s.metrics.RecordTenantLookup(ctx, "error")
		s.log.Error("tenant lookup failed", zap.String("host", host), zap.String("slug", info.Slug), zap.Error(err))
		return nil, err
	}

	s.metrics.RecordTenantLookup(ctx, "hit")
	return &domain.Resolution{
		App:    info.App,
		Slug:   info.Slug,
		Tenant: tenant,
	}, nil
}

// Settings returns the tenant's settings, creating a default row on
// first read.
func (s *service) Settings(ctx context.Context, tenantID snowflake.ID) (*domain.TenantSettings, error) {
	settings, err := s.repo.GetSettings(ctx, tenantID)
	if errors.Is(err, domain.ErrSettingsNotFound) {
		if _, err := s.repo.FindByID(ctx, tenantID); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		settings = &domain.TenantSettings{
			TenantID:  tenantID,
			Timezone:  "UTC",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateSettings(ctx, settings); err != nil {
			// Lost a create race; the winner's row is authoritative.
			if db.IsDuplicateKeyErr(err) {
				settings, err = s.repo.GetSettings(ctx, tenantID)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
	} else if err != nil {
		return nil, err
	}

	settings.LogoURL = s.normalizeLogoURL(settings.LogoPath)
	return settings, nil
}

func (s *service) UpdateSettings(ctx context.Context, tenantID snowflake.ID, req domain.UpdateSettingsRequest) (*domain.TenantSettings, error) {
	if _, err := s.Settings(ctx, tenantID); err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": time.Now().UTC()}
	if req.Timezone != nil {
		fields["timezone"] = strings.TrimSpace(*req.Timezone)
	}
	if req.SupportEmail != nil {
		fields["support_email"] = strings.TrimSpace(*req.SupportEmail)
	}
	if req.LogoPath != nil {
		fields["logo_path"] = strings.TrimSpace(*req.LogoPath)
	}
	if req.OnboardingComplete != nil {
		fields["onboarding_complete"] = *req.OnboardingComplete
	}

	if err := s.repo.UpdateSettings(ctx, tenantID, fields); err != nil {
		return nil, err
	}
	return s.Settings(ctx, tenantID)
}

func (s *service) ProfileFor(ctx context.Context, tenantID, userID snowflake.ID) (*domain.Profile, error) {
	return s.profileRepo.GetProfile(ctx, tenantID, userID)
}

func (s *service) ProfileByUser(ctx context.Context, userID snowflake.ID) (*domain.Profile, error) {
	return s.profileRepo.GetProfileByUser(ctx, userID)
}

func (s *service) ListProfiles(ctx context.Context, tenantID snowflake.ID) ([]domain.Profile, error) {
	return s.profileRepo.ListProfiles(ctx, tenantID)
}

func (s *service) CreateProfile(ctx context.Context, req domain.CreateProfileRequest) (*domain.Profile, error) {
	if req.TenantID == 0 || req.UserID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.RoleUser
	}

	now := time.Now().UTC()
	profile := &domain.Profile{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		TenantID:  req.TenantID,
		Role:      role,
		FullName:  strings.TrimSpace(req.FullName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.profileRepo.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *service) UpdateProfileRole(ctx context.Context, tenantID, profileID snowflake.ID, role string) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return domain.ErrProfileNotFound
	}
	return s.profileRepo.UpdateProfile(ctx, profileID, map[string]any{
		"role":       role,
		"updated_at": time.Now().UTC(),
	})
}

// normalizeLogoURL turns a stored object path into a public URL.
// Already-absolute URLs pass through untouched.
func (s *service) normalizeLogoURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return fmt.Sprintf("https://assets.%s/%s", s.platformDomain, strings.TrimPrefix(path, "/"))
}
