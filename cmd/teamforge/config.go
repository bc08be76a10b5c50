package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/teamforge/teamforge/internal/duration"
	"github.com/teamforge/teamforge/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultCleanupSchedule = "0 2 * * *"
	defaultSMTPPort        = 587
	defaultAppName         = "Teamforge"
	defaultFrontendURL     = "http://localhost:3000"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Environment
	Environment string

	// Signing keys, one per token purpose. All four are required.
	AuthTokenKey         string
	RefreshTokenKey      string
	EmailVerificationKey string
	PasswordResetKey     string

	// Token lifetimes. Accept plain seconds or values like "15m", "7d".
	// Zero means the built in default of the codec.
	AuthTokenDuration         time.Duration
	RefreshTokenDuration      time.Duration
	EmailVerificationDuration time.Duration
	PasswordResetDuration     time.Duration

	// Enable the sliding expiry window for refresh tokens
	RefreshTokenReset bool

	// Cron schedule of the expired token cleanup
	CleanupSchedule string

	// Outgoing mail
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	// Used to build links in outgoing mail
	AppName     string
	FrontendURL string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		Environment:     defaultEnvironment,
		CleanupSchedule: defaultCleanupSchedule,
		SMTPPort:        defaultSMTPPort,
		AppName:         defaultAppName,
		FrontendURL:     defaultFrontendURL,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	var firstErr error

	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			parsed, err := strconv.Atoi(value)
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid integer value %q: %w", value, err)
				return
			}
			*o = parsed
		}
	}
	setBool := func(o *bool) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			parsed, err := strconv.ParseBool(value)
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid bool value %q: %w", value, err)
				return
			}
			*o = parsed
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			parsed, err := duration.Parse(value)
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid duration value %q: %w", value, err)
				return
			}
			*o = parsed
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":  setString(&c.ListenAddr),
		"DATABASE_URI": setString(&c.DatabaseDSN),
		"LOG_LEVEL":    setString(&c.LogLevel),
		"ENVIRONMENT":  setString(&c.Environment),

		"AUTH_TOKEN_KEY":         setString(&c.AuthTokenKey),
		"REFRESH_TOKEN_KEY":      setString(&c.RefreshTokenKey),
		"EMAIL_VERIFICATION_KEY": setString(&c.EmailVerificationKey),
		"PASSWORD_RESET_KEY":     setString(&c.PasswordResetKey),

		"AUTH_TOKEN_DURATION":         setDuration(&c.AuthTokenDuration),
		"REFRESH_TOKEN_DURATION":      setDuration(&c.RefreshTokenDuration),
		"EMAIL_VERIFICATION_DURATION": setDuration(&c.EmailVerificationDuration),
		"PASSWORD_RESET_DURATION":     setDuration(&c.PasswordResetDuration),

		"REFRESH_TOKEN_RESET": setBool(&c.RefreshTokenReset),
		"CLEANUP_SCHEDULE":    setString(&c.CleanupSchedule),

		"SMTP_HOST":     setString(&c.SMTPHost),
		"SMTP_PORT":     setInt(&c.SMTPPort),
		"SMTP_USER":     setString(&c.SMTPUser),
		"SMTP_PASSWORD": setString(&c.SMTPPassword),
		"MAIL_FROM":     setString(&c.MailFrom),

		"APP_NAME":     setString(&c.AppName),
		"FRONTEND_URL": setString(&c.FrontendURL),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}

	return firstErr
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("teamforge", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.CleanupSchedule, "cleanup-schedule", c.CleanupSchedule, "Cron schedule of the token cleanup")

	return fs.Parse(args)
}

// Validate checks the options without defaults
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("database DSN is required")
	}

	for name, key := range map[string]string{
		"AUTH_TOKEN_KEY":         c.AuthTokenKey,
		"REFRESH_TOKEN_KEY":      c.RefreshTokenKey,
		"EMAIL_VERIFICATION_KEY": c.EmailVerificationKey,
		"PASSWORD_RESET_KEY":     c.PasswordResetKey,
	} {
		if key == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	return nil
}
