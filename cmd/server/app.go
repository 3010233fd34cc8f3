package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yukikurage/hive/internal/auth"
	"github.com/yukikurage/hive/internal/config"
	"github.com/yukikurage/hive/internal/database"
	"github.com/yukikurage/hive/internal/logger"
	"github.com/yukikurage/hive/internal/models"
	"github.com/yukikurage/hive/internal/notify"
	"github.com/yukikurage/hive/internal/otp"
	"github.com/yukikurage/hive/internal/repository"
	"github.com/yukikurage/hive/internal/services"
	"gorm.io/gorm"
)

// app holds the wired services shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *gorm.DB
	redis    *redis.Client
	tokens   *auth.TokenManager
	notifier *notify.Notifier
	auth     *services.AuthService
	queries  *services.QueryService
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db}

	store, err := a.otpStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	mailer, err := newMailer(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.notifier = notify.NewNotifier(mailer, log)
	a.tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	// Initialize AI service
	var aiService *services.AIService
	if cfg.OpenAIAPIKey != "" {
		aiService = services.NewAIService(cfg.OpenAIAPIKey)
	} else {
		log.Info("OPENAI_API_KEY not set, reply suggestions disabled")
	}

	members := repository.NewMemberRepository(db)
	queries := repository.NewQueryRepository(db)

	a.auth = services.NewAuthService(members, otp.NewVerifier(store), a.notifier, a.tokens, map[models.Role]string{
		models.RoleHead:  cfg.HeadSignupPIN,
		models.RoleAdmin: cfg.AdminSignupPIN,
	})
	a.queries = services.NewQueryService(queries, members, a.notifier, aiService, log)

	return a, nil
}

func (a *app) otpStore(ctx context.Context) (otp.Store, error) {
	switch a.cfg.OTPStore {
	case "memory":
		return otp.NewMemoryStore(nil), nil
	case "redis":
		a.redis = redis.NewClient(&redis.Options{
			Addr:         a.cfg.RedisAddr(),
			Password:     a.cfg.RedisPassword,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.RedisAddr(), err)
		}

		a.log.Info("OTP store connected to redis", "addr", a.cfg.RedisAddr())
		return otp.NewRedisStore(a.redis), nil
	default:
		return nil, fmt.Errorf("unsupported OTP store %q", a.cfg.OTPStore)
	}
}

func newMailer(cfg *config.Config, log *logger.Logger) (notify.Mailer, error) {
	if cfg.SMTPHost == "" {
		log.Warn("SMTP_HOST not set, emails are only logged")
		return notify.NewLogMailer(log), nil
	}
	mailer, err := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	if err != nil {
		return nil, err
	}
	return mailer, nil
}

// Close drains pending notifications and releases connections.
func (a *app) Close() {
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("error closing redis", "error", err)
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.log.Warn("error closing database", "error", err)
		}
	}
}
