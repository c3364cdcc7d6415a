package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/you/eventhub/domain"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type AppConfig struct {
	Port          int    `yaml:"port" env:"PORT"`
	GinMode       string `yaml:"gin_mode" env:"GIN_MODE"`
	Environment   string `yaml:"environment" env:"APP_ENV"`
	LogLevel      string `yaml:"log_level" env:"LOG_LEVEL"`
	PhoneRegion   string `yaml:"phone_region" env:"PHONE_REGION"`
	CleanupSecret string `yaml:"cleanup_secret" env:"CLEANUP_SECRET"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type JWTConfig struct {
	Secret           string   `yaml:"secret" env:"JWT_SECRET"`
	Issuer           string   `yaml:"issuer" env:"JWT_ISSUER"`
	TempTTL          string   `yaml:"temp_ttl" env:"JWT_TEMP_TTL"`
	FullTTL          string   `yaml:"full_ttl" env:"JWT_FULL_TTL"`
	RefreshGrace     string   `yaml:"refresh_grace" env:"JWT_REFRESH_GRACE"`
	RefreshableRoles []string `yaml:"refreshable_roles" env:"JWT_REFRESHABLE_ROLES" envSeparator:","`
}

type OTPConfig struct {
	TTL            string `yaml:"ttl" env:"OTP_TTL"`
	Length         int    `yaml:"length" env:"OTP_LENGTH"`
	MaxAttempts    int    `yaml:"max_attempts" env:"OTP_MAX_ATTEMPTS"`
	MaxFailures    int    `yaml:"max_verify_failures" env:"OTP_MAX_VERIFY_FAILURES"`
	ResendInterval string `yaml:"resend_interval" env:"OTP_RESEND_INTERVAL"`
	Cooldown       string `yaml:"cooldown" env:"OTP_COOLDOWN"`
	SendLockTTL    string `yaml:"send_lock_ttl" env:"OTP_SEND_LOCK_TTL"`
}

type TwilioConfig struct {
	AccountSID       string `yaml:"account_sid" env:"TWILIO_ACCOUNT_SID"`
	AuthToken        string `yaml:"auth_token" env:"TWILIO_AUTH_TOKEN"`
	FromNumber       string `yaml:"from_number" env:"TWILIO_FROM_NUMBER"`
	VerifyServiceSID string `yaml:"verify_service_sid" env:"TWILIO_VERIFY_SERVICE_SID"`
	LookupEnabled    bool   `yaml:"lookup_enabled" env:"TWILIO_LOOKUP_ENABLED"`
	Timeout          string `yaml:"timeout" env:"TWILIO_TIMEOUT"`
}

type GoogleConfig struct {
	ClientID string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
}

type CasbinConfig struct {
	ModelPath string `yaml:"model_path" env:"CASBIN_MODEL_PATH"`
}

type ReferralConfig struct {
	RateBasisPoints int `yaml:"rate_basis_points" env:"REFERRAL_RATE_BASIS_POINTS"`
}

type ConfigFile struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	OTP      OTPConfig      `yaml:"otp"`
	Twilio   TwilioConfig   `yaml:"twilio"`
	Google   GoogleConfig   `yaml:"google"`
	Casbin   CasbinConfig   `yaml:"casbin"`
	Referral ReferralConfig `yaml:"referral"`
}

type Config struct {
	Port          string
	GinMode       string
	Environment   string
	LogLevel      string
	PhoneRegion   string
	CleanupSecret string

	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret        string
	JWTIssuer        string
	TempTTL          time.Duration
	FullTTL          time.Duration
	RefreshGrace     time.Duration
	RefreshableRoles []domain.Role

	OTP_TTL            time.Duration
	OTP_Length         int
	OTP_MaxAttempts    int
	OTP_MaxFailures    int
	OTP_ResendInterval time.Duration
	OTP_Cooldown       time.Duration
	OTP_SendLockTTL    time.Duration

	TwilioSID           string
	TwilioToken         string
	TwilioFrom          string
	TwilioVerifyService string
	TwilioLookup        bool
	TwilioTimeout       time.Duration

	GoogleClientID string

	CasbinModelPath string

	ReferralRateBasisPoints int
}

// IsDevelopment reports whether development-only fallbacks may run.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// DelegatedOTP reports whether a hosted verification service owns OTP codes.
func (c *Config) DelegatedOTP() bool {
	return c.TwilioVerifyService != ""
}

// Load reads .env, then the YAML file named by CONFIG_PATH (default
// config/config.yml), then applies environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yml"
	}
	return LoadFile(path)
}

// LoadFile builds a Config from the YAML file at path plus environment
// overrides. A missing file is allowed; the environment alone may suffice.
func LoadFile(path string) (*Config, error) {
	configFile := defaults()
	if err := readConfigFile(path, configFile); err != nil {
		return nil, err
	}
	if err := env.Parse(configFile); err != nil {
		return nil, fmt.Errorf("could not parse environment overrides: %w", err)
	}
	return build(configFile)
}

func defaults() *ConfigFile {
	return &ConfigFile{
		App: AppConfig{
			Port:        8080,
			GinMode:     "release",
			Environment: EnvProduction,
			LogLevel:    "info",
			PhoneRegion: "ID",
		},
		JWT: JWTConfig{
			Issuer:           "eventhub",
			TempTTL:          "30m",
			FullTTL:          "168h",
			RefreshGrace:     "720h",
			RefreshableRoles: []string{"USER", "STAFF"},
		},
		OTP: OTPConfig{
			TTL:            "10m",
			Length:         6,
			MaxAttempts:    5,
			MaxFailures:    5,
			ResendInterval: "60s",
			Cooldown:       "60m",
			SendLockTTL:    "15s",
		},
		Twilio:   TwilioConfig{Timeout: "10s"},
		Casbin:   CasbinConfig{ModelPath: "config/rbac_model.conf"},
		Referral: ReferralConfig{RateBasisPoints: 500},
	}
}

func readConfigFile(path string, into *ConfigFile) error {
	bytes, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not read config file at %s: %w", path, err)
	}
	if err := yaml.Unmarshal(bytes, into); err != nil {
		return fmt.Errorf("could not parse config yaml: %w", err)
	}
	return nil
}

func build(f *ConfigFile) (*Config, error) {
	var errs []error
	duration := func(name, value string) time.Duration {
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
		}
		return d
	}

	cfg := &Config{
		Port:          fmt.Sprintf("%d", f.App.Port),
		GinMode:       f.App.GinMode,
		Environment:   strings.ToLower(f.App.Environment),
		LogLevel:      f.App.LogLevel,
		PhoneRegion:   f.App.PhoneRegion,
		CleanupSecret: f.App.CleanupSecret,

		DSN:           f.Database.DSN,
		RedisAddr:     f.Redis.Addr,
		RedisPassword: f.Redis.Password,
		RedisDB:       f.Redis.DB,

		JWTSecret:    f.JWT.Secret,
		JWTIssuer:    f.JWT.Issuer,
		TempTTL:      duration("JWT temp TTL", f.JWT.TempTTL),
		FullTTL:      duration("JWT full TTL", f.JWT.FullTTL),
		RefreshGrace: duration("JWT refresh grace", f.JWT.RefreshGrace),

		OTP_TTL:            duration("OTP TTL", f.OTP.TTL),
		OTP_Length:         f.OTP.Length,
		OTP_MaxAttempts:    f.OTP.MaxAttempts,
		OTP_MaxFailures:    f.OTP.MaxFailures,
		OTP_ResendInterval: duration("OTP resend interval", f.OTP.ResendInterval),
		OTP_Cooldown:       duration("OTP cooldown", f.OTP.Cooldown),
		OTP_SendLockTTL:    duration("OTP send lock TTL", f.OTP.SendLockTTL),

		TwilioSID:           f.Twilio.AccountSID,
		TwilioToken:         f.Twilio.AuthToken,
		TwilioFrom:          f.Twilio.FromNumber,
		TwilioVerifyService: f.Twilio.VerifyServiceSID,
		TwilioLookup:        f.Twilio.LookupEnabled,
		TwilioTimeout:       duration("Twilio timeout", f.Twilio.Timeout),

		GoogleClientID:          f.Google.ClientID,
		CasbinModelPath:         f.Casbin.ModelPath,
		ReferralRateBasisPoints: f.Referral.RateBasisPoints,
	}

	for _, r := range f.JWT.RefreshableRoles {
		role, err := domain.ParseRole(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid refreshable role: %w", err))
			continue
		}
		cfg.RefreshableRoles = append(cfg.RefreshableRoles, role)
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if cfg.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if cfg.RedisAddr == "" {
		errs = append(errs, errors.New("redis addr is required"))
	}
	if cfg.OTP_Length < 4 || cfg.OTP_Length > 10 {
		errs = append(errs, fmt.Errorf("otp length must be between 4 and 10, got %d", cfg.OTP_Length))
	}
	if cfg.OTP_MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("otp max verify failures cannot be negative, got %d", cfg.OTP_MaxFailures))
	}
	if cfg.OTP_MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("otp max attempts must be positive, got %d", cfg.OTP_MaxAttempts))
	}
	if cfg.Environment != EnvDevelopment && cfg.Environment != EnvProduction {
		errs = append(errs, fmt.Errorf("unknown environment %q", cfg.Environment))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}
