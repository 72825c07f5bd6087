package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"gopherblog/internal/app"
	"gopherblog/internal/cache"
	"gopherblog/internal/config"
	"gopherblog/internal/logging"
	mysqlClient "gopherblog/internal/platform/mysql"
	rabbitmqClient "gopherblog/internal/platform/rabbitmq"
	redisClient "gopherblog/internal/platform/redis"
	sqliteClient "gopherblog/internal/platform/sqlite"
	"gopherblog/internal/platform/storage"
	"gopherblog/internal/repository"
	"gopherblog/internal/transport/http/handler"
	"gopherblog/internal/worker"
)

type App struct {
	Config   *config.Config
	Logger   logging.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	MQConn   *amqp.Connection
	Services app.Services

	AuthEventWorker *worker.AuthEventWorker
	SessionJanitor  *worker.SessionJanitor

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	a := &App{
		Config:    cfg,
		Logger:    logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format),
		StartedAt: time.Now(),
	}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	a.DB = db
	if err := repository.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	authEventRepo := repository.NewAuthEventRepository(db)

	var sessionStore app.SessionStore
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		a.Redis, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		sessionStore = cache.NewSessionStore(a.Redis)
	default:
		sessionRepo := repository.NewSessionRepository(db)
		sessionStore = sessionRepo
		a.SessionJanitor = worker.NewSessionJanitor(sessionRepo, cfg.SessionCleanupInterval(), a.Logger)
		a.SessionJanitor.Start(ctx)
	}

	// Without a broker, audit events go straight to the table.
	var events app.AuthEventPublisher = authEventRepo
	if cfg.RabbitMQ.URL != "" {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.AuthEventQueue)
		if err != nil {
			return err
		}
		events = rabbitmqClient.NewAuthEventPublisher(a.MQConn, cfg.RabbitMQ.AuthEventQueue)
		a.AuthEventWorker = worker.NewAuthEventWorker(a.MQConn, authEventRepo, cfg.RabbitMQ.AuthEventQueue, a.Logger)
		if err := a.AuthEventWorker.Start(ctx); err != nil {
			return fmt.Errorf("start auth event worker failed: %w", err)
		}
	}

	files, err := openFileStore(ctx, cfg)
	if err != nil {
		return err
	}

	authService, err := app.NewAuthService(userRepo, app.NewPasswordHasher(cfg.Auth.BcryptCost), events, a.Logger)
	if err != nil {
		return fmt.Errorf("init auth service failed: %w", err)
	}
	a.Services = app.Services{
		Auth:     authService,
		Sessions: app.NewSessionService(sessionStore, cfg.SessionTTL()),
		Posts:    app.NewPostService(postRepo),
		Profiles: app.NewProfileService(userRepo, files, cfg.Storage.MaxAvatarBytes, a.Logger),
	}

	a.Logger.Info(ctx, "app initialized",
		"db_driver", cfg.Database.Driver,
		"session_backend", cfg.Session.Backend,
		"storage_backend", cfg.Storage.Backend,
		"audit_queue", a.MQConn != nil,
	)
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Driver == config.DriverSQLite {
		return sqliteClient.New(ctx, cfg.SQLite.Path)
	}
	return mysqlClient.New(ctx, cfg.MySQLDSN())
}

func openFileStore(ctx context.Context, cfg *config.Config) (app.FileStore, error) {
	if cfg.Storage.Backend == config.StorageBackendS3 {
		return storage.NewS3Store(ctx, cfg.Storage.S3)
	}
	return storage.NewLocalStore(cfg.Storage.UploadDir)
}

// HealthDependencies lists the backing services that are actually in use.
func (a *App) HealthDependencies() []handler.Dependency {
	deps := []handler.Dependency{{
		Name: a.Config.Database.Driver,
		Check: func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if a.Redis != nil {
		deps = append(deps, handler.Dependency{
			Name:  "redis",
			Check: func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
		})
	}
	if a.MQConn != nil {
		deps = append(deps, handler.Dependency{
			Name: "rabbitmq",
			Check: func(context.Context) error {
				if a.MQConn.IsClosed() {
					return errors.New("connection closed")
				}
				return nil
			},
		})
	}
	return deps
}

func (a *App) Close() error {
	var errs []error
	if a.SessionJanitor != nil {
		a.SessionJanitor.Close()
	}
	if a.AuthEventWorker != nil {
		a.AuthEventWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
