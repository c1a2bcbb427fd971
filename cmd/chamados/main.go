// @title			Helpdesk API
// @version		1.0
// @description	Chamado lifecycle engine for the helpdesk.
// @BasePath		/api/v1
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
// @securityDefinitions.apikey	SolicitanteCPF
// @in							header
// @name						X-Solicitante-CPF

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mtlprog/helpdesk/internal/auth"
	"github.com/mtlprog/helpdesk/internal/config"
	"github.com/mtlprog/helpdesk/internal/database"
	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/mtlprog/helpdesk/internal/handler"
	"github.com/mtlprog/helpdesk/internal/logger"
	"github.com/mtlprog/helpdesk/internal/metrics"
	"github.com/mtlprog/helpdesk/internal/middleware"
	"github.com/mtlprog/helpdesk/internal/notify"
	"github.com/mtlprog/helpdesk/internal/repository"
	"github.com/mtlprog/helpdesk/internal/service"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	app := &cli.App{
		Name:  "chamados",
		Usage: "Helpdesk chamado lifecycle engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Aliases: []string{"d"},
				Usage:   "PostgreSQL database URL",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if v := c.String("log-level"); v != "" {
				cfg.App.LogLevel = v
			}
			if v := c.String("database-url"); v != "" {
				cfg.Postgres.DSN = v
			}

			logger.Setup(logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, cfg.App.Env)
			c.App.Metadata = map[string]interface{}{configKey: cfg}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
				},
				Action: runServe,
			},
			{
				Name:   "worker",
				Usage:  "Process queued chamado emails",
				Action: runWorker,
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "down",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: runMigrate,
			},
			{
				Name:  "create-user",
				Usage: "Create a staff user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true, Usage: "Login name (4-20 characters)"},
					&cli.StringFlag{Name: "password", Required: true, Usage: "Password (min 8 characters)", EnvVars: []string{"HELPDESK_USER_PASSWORD"}},
					&cli.StringFlag{Name: "nome", Usage: "Display name"},
					&cli.StringFlag{Name: "email", Usage: "Email address"},
					&cli.Int64Flag{Name: "setor-id", Usage: "Setor the user works in"},
					&cli.BoolFlag{Name: "manager", Usage: "Grant manager role"},
				},
				Action: runCreateUser,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func loadedConfig(c *cli.Context) *config.Config {
	return c.App.Metadata[configKey].(*config.Config)
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	if cfg.Postgres.DSN == "" {
		return nil, errors.New("database url is required (--database-url or DATABASE_URL)")
	}

	db, err := database.New(ctx, cfg.Postgres.DSN, database.WithPoolSize(cfg.Postgres.MaxConns, cfg.Postgres.MinConns))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadedConfig(c)
	if port := c.String("port"); port != "" {
		cfg.App.Port = port
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	metrics.Register()

	pool := db.Pool()
	chamadoRepo := repository.NewChamadoRepository(pool)
	setorRepo := repository.NewSetorRepository(pool)
	solicitanteRepo := repository.NewSolicitanteRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	hub := notify.NewHub()
	defer hub.Close()

	sinks, closeSinks, err := buildSinks(ctx, cfg, hub)
	if err != nil {
		return err
	}
	defer closeSinks()

	dispatcher := notify.NewDispatcher(notify.NewFanOut(sinks), cfg.Notify.Workers, cfg.Notify.QueueSize)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := dispatcher.Close(drainCtx); err != nil {
			slog.Warn("notification queue not drained", "error", err)
		}
	}()

	chamadoService := service.NewChamadoService(service.ChamadoServiceDeps{
		DB:           pool,
		Tx:           pool,
		Chamados:     chamadoRepo,
		ChamadosTI:   repository.NewChamadoTIRepository(pool),
		Alteracoes:   repository.NewAlteracaoRepository(pool),
		Setores:      setorRepo,
		Solicitantes: solicitanteRepo,
		Notifier:     dispatcher,
		Lifecycle:    cfg.Lifecycle,
	})
	authService := service.NewAuthService(userRepo, auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()))

	h := handler.New(handler.Deps{
		Chamados:  chamadoService,
		Auth:      authService,
		Setores:   setorRepo,
		Stats:     chamadoRepo,
		DB:        pool,
		Guard:     middleware.NewAuthMiddleware(authService, solicitanteRepo),
		Websocket: http.HandlerFunc(hub.ServeWS),
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           h.Routes(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildSinks wires the notification sinks that are configured. With Redis,
// websocket events travel through the pub/sub channel so every replica
// broadcasts them; without it the local Hub is fed directly.
func buildSinks(ctx context.Context, cfg *config.Config, hub *notify.Hub) ([]notify.Sink, func(), error) {
	var (
		sinks   []notify.Sink
		closers []func() error
	)
	closeAll := func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				slog.Warn("failed to close notification sink", "error", err)
			}
		}
	}

	if cfg.Redis.Enabled() {
		client, err := notify.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, client.Close)
		sinks = append(sinks, notify.NewRedisSink(client, cfg.Redis.Channel))

		go func() {
			if err := hub.Subscribe(ctx, client, cfg.Redis.Channel); err != nil {
				slog.Error("redis relay stopped", "error", err)
			}
		}()

		queue := asynq.NewClient(redisOpt(cfg.Redis))
		closers = append(closers, queue.Close)
		sinks = append(sinks, notify.NewEmailSink(queue, cfg.Asynq.Queue))
	} else {
		slog.Info("redis not configured, websocket events stay local and emails are disabled")
		sinks = append(sinks, notify.NewHubSink(hub))
	}

	if cfg.Kafka.Enabled() {
		sink := notify.NewKafkaSink(notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID))
		closers = append(closers, sink.Close)
		sinks = append(sinks, sink)
	}

	return sinks, closeAll, nil
}

func runWorker(c *cli.Context) error {
	cfg := loadedConfig(c)
	if !cfg.Redis.Enabled() {
		return errors.New("worker requires REDIS_ADDR")
	}

	srv := asynq.NewServer(redisOpt(cfg.Redis), asynq.Config{
		Concurrency: cfg.Asynq.Concurrency,
		Queues:      map[string]int{cfg.Asynq.Queue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			slog.Error("task failed", "type", task.Type(), "error", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(notify.TypeChamadoEmail, notify.NewEmailTaskHandler(notify.NewSMTPMailer(cfg.SMTP)))

	slog.Info("starting worker", "queue", cfg.Asynq.Queue, "concurrency", cfg.Asynq.Concurrency)
	if err := srv.Run(mux); err != nil {
		return fmt.Errorf("worker error: %w", err)
	}
	return nil
}

func runMigrate(c *cli.Context) error {
	ctx := c.Context
	cfg := loadedConfig(c)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Bool("down") {
		if err := database.RollbackMigration(ctx, db.Pool()); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		slog.Info("rolled back last migration")
		return nil
	}

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("migrations applied")
	return nil
}

func runCreateUser(c *cli.Context) error {
	ctx := c.Context
	cfg := loadedConfig(c)

	username := c.String("username")
	password := c.String("password")
	if len(username) < 4 || len(username) > 20 {
		return errors.New("username must be between 4 and 20 characters")
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(password, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		Nome:         c.String("nome"),
		Email:        c.String("email"),
		IsManager:    c.Bool("manager"),
		IsActive:     true,
	}
	if c.IsSet("setor-id") {
		setorID := c.Int64("setor-id")
		user.SetorID = &setorID
	}

	if err := repository.NewUserRepository(db.Pool()).Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created", "user_id", user.ID, "username", user.Username)
	return nil
}
