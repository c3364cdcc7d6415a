package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/config"
	"github.com/you/eventhub/internal/infrastructure/audit"
	"github.com/you/eventhub/internal/infrastructure/auth"
	"github.com/you/eventhub/internal/infrastructure/database"
	"github.com/you/eventhub/internal/infrastructure/notifications"
	"github.com/you/eventhub/internal/infrastructure/repositories"
	"github.com/you/eventhub/internal/phone"
	"github.com/you/eventhub/internal/services"
)

// Container holds all dependencies
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	// Infrastructure
	DB          *gorm.DB
	RedisClient *redis.Client
	Casbin      *auth.CasbinService
	Normalizer  *phone.Normalizer

	// Repositories
	AccountRepo domain.AccountRepository
	OTPRepo     domain.OTPRepository
	ExpenseRepo domain.ExpenseRepository

	// Collaborators
	TokenSvc domain.TokenService
	SMS      domain.SMSProvider
	Identity domain.IdentityProvider
	Locker   domain.SendLocker
	Audit    domain.AuditLogger

	// Services
	RateLimiter domain.RateLimiter
	OTPSvc      domain.OTPService
	Resolver    domain.IdentityResolver
	AuthSvc     domain.AuthService
	ApprovalSvc domain.ApprovalService
	ExpenseSvc  domain.ExpenseService
	PolicySvc   domain.PolicyService
}

// NewContainer creates and initializes all dependencies
func NewContainer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	if err := c.initDatabase(); err != nil {
		return nil, err
	}
	if err := c.initRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.initRepositories()
	if err := c.initServices(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initPolicies(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) initDatabase() error {
	db, err := database.Open(c.Config.DSN, c.Config.IsDevelopment())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	c.DB = db
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	rdb := database.NewRedis(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
	if err := rdb.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	c.RedisClient = rdb.Client
	return nil
}

func (c *Container) initRepositories() {
	c.AccountRepo = repositories.NewAccountRepository(c.DB)
	c.OTPRepo = repositories.NewOTPRepository(c.DB)
	c.ExpenseRepo = repositories.NewExpenseRepository(c.DB)
}

func (c *Container) initServices() error {
	cfg := c.Config
	log := c.Log

	tokenSvc, err := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TempTTL, cfg.FullTTL)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	c.TokenSvc = tokenSvc

	c.Normalizer = phone.NewNormalizer(cfg.PhoneRegion)
	c.Audit = audit.NewZerologAuditLogger(log)
	c.Locker = database.NewSendLock(c.RedisClient, cfg.OTP_SendLockTTL)
	c.SMS = notifications.NewTwilioService(notifications.TwilioSettings{
		AccountSID:       cfg.TwilioSID,
		AuthToken:        cfg.TwilioToken,
		FromNumber:       cfg.TwilioFrom,
		VerifyServiceSID: cfg.TwilioVerifyService,
		LookupEnabled:    cfg.TwilioLookup,
		Timeout:          cfg.TwilioTimeout,
	}, c.Normalizer, log)
	c.Identity = auth.NewGoogleVerifier(cfg.GoogleClientID, log)

	c.RateLimiter = services.NewRateLimiter(c.OTPRepo, services.RateLimitConfig{
		MaxAttempts:    cfg.OTP_MaxAttempts,
		ResendInterval: cfg.OTP_ResendInterval,
		Cooldown:       cfg.OTP_Cooldown,
	}, nil, log)

	c.OTPSvc = services.NewOTPService(
		c.OTPRepo,
		c.RateLimiter,
		c.SMS,
		c.Locker,
		c.Normalizer,
		c.Audit,
		services.OTPConfig{
			Length:            cfg.OTP_Length,
			TTL:               cfg.OTP_TTL,
			Delegated:         cfg.DelegatedOTP(),
			DevFallback:       cfg.IsDevelopment(),
			MaxVerifyFailures: cfg.OTP_MaxFailures,
			AttemptWindow:     max(cfg.OTP_Cooldown, cfg.OTP_ResendInterval),
		},
		nil,
		log,
	)

	c.Resolver = services.NewIdentityResolver(c.AccountRepo, c.Normalizer, log)
	c.AuthSvc = services.NewAuthService(
		c.AccountRepo,
		c.Resolver,
		c.OTPSvc,
		c.TokenSvc,
		c.Identity,
		c.Normalizer,
		c.Audit,
		services.AuthConfig{
			RefreshGrace:     cfg.RefreshGrace,
			RefreshableRoles: cfg.RefreshableRoles,
		},
		nil,
		log,
	)
	c.ApprovalSvc = services.NewApprovalService(c.AccountRepo, c.Audit, nil, log)
	c.ExpenseSvc = services.NewExpenseService(c.ExpenseRepo, c.AccountRepo, cfg.ReferralRateBasisPoints, nil)
	return nil
}

func (c *Container) initPolicies() error {
	cas, err := auth.NewCasbinService(c.DB, c.Config.CasbinModelPath)
	if err != nil {
		return fmt.Errorf("failed to load casbin: %w", err)
	}
	c.Casbin = cas
	c.PolicySvc = services.NewPolicyService(cas.E)
	if err := services.SeedPolicies(c.PolicySvc, services.DefaultPolicies); err != nil {
		return fmt.Errorf("failed to seed policies: %w", err)
	}
	c.Log.Info().Int("policies", len(c.PolicySvc.GetPolicies())).Msg("casbin policies loaded")
	return nil
}

// Close closes all connections
func (c *Container) Close() error {
	if c.RedisClient != nil {
		c.RedisClient.Close()
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}
