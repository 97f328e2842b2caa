package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/alphabot-ai/inkwell/internal/auth"
	"github.com/alphabot-ai/inkwell/internal/config"
	httpapp "github.com/alphabot-ai/inkwell/internal/http"
	"github.com/alphabot-ai/inkwell/internal/jobs"
	"github.com/alphabot-ai/inkwell/internal/logx"
	"github.com/alphabot-ai/inkwell/internal/rate"
	"github.com/alphabot-ai/inkwell/internal/store/sqlite"
)

// Stamped with -ldflags "-X main.version=..." at build time.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:    "inkwell",
		Usage:   "Blogging platform API server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file",
				EnvVars: []string{"INKWELL_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite database path (overrides config)",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP server and background jobs (default)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides config)"},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply schema migrations and exit",
				Action: migrate,
			},
			{
				Name:  "createadmin",
				Usage: "Create a staff account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"INKWELL_ADMIN_PASSWORD"}},
				},
				Action: createAdmin,
			},
			{
				Name:   "purge-tokens",
				Usage:  "Delete expired tokens once and exit",
				Action: purgeTokens,
			},
			{
				Name:  "version",
				Usage: "Print build information",
				Action: func(c *cli.Context) error {
					fmt.Printf("inkwell %s (commit %s, built %s)\n", version, commit, buildTime)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and applies command-line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	if path := c.String("config"); path != "" {
		os.Setenv("INKWELL_CONFIG", path)
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if db := c.String("db"); db != "" {
		cfg.DBPath = db
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Addr = addr
	}
	cfg.Version, cfg.Commit, cfg.BuildTime = version, commit, buildTime
	return cfg, nil
}

func setup(c *cli.Context) (config.Config, zerolog.Logger, *sqlite.Store, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return config.Config{}, zerolog.Logger{}, nil, err
	}
	log := logx.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	st, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return config.Config{}, zerolog.Logger{}, nil, fmt.Errorf("open db: %w", err)
	}
	return cfg, log, st, nil
}

func serve(c *cli.Context) error {
	cfg, log, st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.Close()

	authSvc := auth.NewService(st, cfg.AccessTTL, cfg.RefreshTTL)
	server := httpapp.NewServer(st, authSvc, rate.NewMemory(), cfg, log)

	scheduler := jobs.NewScheduler(log, time.Minute)
	if err := scheduler.Register(jobs.PurgeExpiredTokens, cfg.TokenPurgeSchedule, jobs.PurgeTokens(authSvc, log)); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("db", cfg.DBPath).Str("version", version).Msg("inkwell listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("systemd notify failed")
	} else if ok {
		log.Debug().Msg("notified systemd")
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("stopped gracefully")
	return nil
}

func migrate(c *cli.Context) error {
	_, log, st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.Close()
	v, err := st.SchemaVersion(c.Context)
	if err != nil {
		return err
	}
	log.Info().Int("schema_version", v).Msg("database is up to date")
	return nil
}

func createAdmin(c *cli.Context) error {
	cfg, log, st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.Close()

	authSvc := auth.NewService(st, cfg.AccessTTL, cfg.RefreshTTL)
	user, err := authSvc.CreateAdmin(c.Context, c.String("username"), c.String("email"), c.String("password"))
	if err != nil {
		var verr *auth.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid input: %v", verr.Fields)
		}
		return err
	}
	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("staff account created")
	return nil
}

func purgeTokens(c *cli.Context) error {
	cfg, log, st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.Close()

	authSvc := auth.NewService(st, cfg.AccessTTL, cfg.RefreshTTL)
	return jobs.PurgeTokens(authSvc, log)(c.Context)
}
