package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teamforge/teamforge/internal/db"
	"github.com/teamforge/teamforge/internal/handlers"
	"github.com/teamforge/teamforge/internal/logger"
	"github.com/teamforge/teamforge/internal/mailer"
	"github.com/teamforge/teamforge/internal/repository/postgres"
	"github.com/teamforge/teamforge/internal/service/auth"
	"github.com/teamforge/teamforge/internal/service/auth/tokencodec"
	"github.com/teamforge/teamforge/internal/service/reset"
	"github.com/teamforge/teamforge/internal/service/sweep"
	"github.com/teamforge/teamforge/internal/service/team"
	"github.com/teamforge/teamforge/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	cron   *cron.Cron
	logger logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize the token codec with one key family per purpose
	codec, err := tokencodec.New(tokencodec.Config{
		Access:         tokencodec.KeyConfig{Key: c.AuthTokenKey, TTL: c.AuthTokenDuration},
		Refresh:        tokencodec.KeyConfig{Key: c.RefreshTokenKey, TTL: c.RefreshTokenDuration},
		Verify:         tokencodec.KeyConfig{Key: c.EmailVerificationKey, TTL: c.EmailVerificationDuration},
		Reset:          tokencodec.KeyConfig{Key: c.PasswordResetKey, TTL: c.PasswordResetDuration},
		RefreshSliding: c.RefreshTokenReset,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token codec. Err: %w", err)
	}

	// Initialize outgoing mail. Without SMTP settings account mail is
	// disabled and the services log what they would have sent.
	var m mailer.Mailer
	if c.SMTPHost != "" {
		m, err = mailer.NewSMTP(mailer.SMTPConfig{
			Host:        c.SMTPHost,
			Port:        c.SMTPPort,
			Username:    c.SMTPUser,
			Password:    c.SMTPPassword,
			From:        c.MailFrom,
			AppName:     c.AppName,
			FrontendURL: c.FrontendURL,
		})
		if err != nil {
			return nil, fmt.Errorf("error while creating mailer. Err: %w", err)
		}
	} else {
		logger.Warn("SMTP is not configured, account mail is disabled")
	}

	// Initialize services
	authService, err := auth.NewService(auth.Config{}, codec, storage.User(), storage.Refresh(), m, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	resetService, err := reset.NewService(reset.Config{}, codec, storage.User(), storage.Reset(), storage.Refresh(), m, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating reset service. Err: %w", err)
	}
	userService, err := user.NewService(user.Config{}, codec, storage.User(), storage.Refresh(), storage.Reset(), m, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating user service. Err: %w", err)
	}
	teamService, err := team.NewService(storage, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating team service. Err: %w", err)
	}

	// Schedule the expired token cleanup
	sweeper, err := sweep.NewSweeper(authService.Evaluator(), codec, storage.Refresh(), storage.Reset(), logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating sweeper. Err: %w", err)
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(c.CleanupSchedule, func() {
		if err := sweeper.Run(context.Background()); err != nil {
			logger.Error("token sweep failed", "error", err.Error())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q. Err: %w", c.CleanupSchedule, err)
	}

	mux := handlers.NewRouter(
		authService,
		authService,
		resetService,
		userService,
		teamService,
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		cron:       scheduler,
		logger:     logger,
	}, nil
}

// Run starts the cron scheduler and the http server, closing both gracefully
// on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	s.cron.Start()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		<-s.cron.Stop().Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
