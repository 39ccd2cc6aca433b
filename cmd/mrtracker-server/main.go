package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fieldforce/mrtracker/internal/config"
	"github.com/fieldforce/mrtracker/internal/domain/dashboard"
	"github.com/fieldforce/mrtracker/internal/domain/identity"
	"github.com/fieldforce/mrtracker/internal/domain/task"
	"github.com/fieldforce/mrtracker/internal/domain/visit"
	"github.com/fieldforce/mrtracker/internal/platform/auth"
	"github.com/fieldforce/mrtracker/internal/platform/db"
	"github.com/fieldforce/mrtracker/internal/platform/middleware"
	"github.com/fieldforce/mrtracker/internal/platform/timefmt"
)

const (
	version       = "0.1.0"
	shutdownGrace = 10 * time.Second
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mrtracker-server",
		Short: "MR field visit tracking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context())
		},
	}
}

// connect loads the configuration and opens the pool used by the one-shot
// commands.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		migrationCmd("up", "Apply pending migrations", func(ctx context.Context, w io.Writer, m *db.Migrator) error {
			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			fmt.Fprintf(w, "Applied %d migration(s).\n", count)
			return nil
		}),
		migrationCmd("status", "List migrations and whether they are applied", func(ctx context.Context, w io.Writer, m *db.Migrator) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("read migration status: %w", err)
			}
			printStatus(w, statuses)
			return nil
		}),
	)
	return cmd
}

// migrationCmd builds a migrate subcommand that runs fn against the
// directory given by --dir, or MIGRATIONS_DIR when the flag is empty.
func migrationCmd(use, short string, fn func(context.Context, io.Writer, *db.Migrator) error) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if dir == "" {
				dir = cfg.MigrationsDir
			}
			return fn(ctx, cmd.OutOrStdout(), db.NewMigrator(pool, dir))
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default MIGRATIONS_DIR)")
	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin or MR account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := newUserFromFlags(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := newLogger(cfg)
			svc := identity.NewService(identity.NewUserRepoPG(pool), nil, nil, logger)
			u, err := svc.CreateUser(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %q (id %d).\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Login name (required)")
	createCmd.Flags().String("password", "", "Password (required)")
	createCmd.Flags().String("role", string(auth.RoleMR), "Role: admin or MR")
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("email", "", "Email address")

	cmd.AddCommand(createCmd)
	return cmd
}

func newUserFromFlags(cmd *cobra.Command) (identity.NewUser, error) {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	roleFlag, _ := cmd.Flags().GetString("role")
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")

	if username == "" {
		return identity.NewUser{}, errors.New("--username is required")
	}
	if password == "" {
		return identity.NewUser{}, errors.New("--password is required")
	}
	role, err := auth.ParseRole(roleFlag)
	if err != nil {
		return identity.NewUser{}, err
	}
	return identity.NewUser{
		Username: username,
		Password: password,
		Role:     role,
		Name:     name,
		Email:    email,
	}, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newServer builds the echo instance with every route mounted. The pool is
// only dereferenced when a request reaches a repository.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*echo.Echo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clock := timefmt.NewClock(loc)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Pre(echomw.RemoveTrailingSlash())

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	issuer := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	api := e.Group("/api", middleware.RateLimit(rateLimitCfg))
	authed := api.Group("", auth.Middleware(issuer))

	// Repositories
	users := identity.NewUserRepoPG(pool)
	doctors := visit.NewDoctorRepoPG(pool)
	doctorVisits := visit.NewDoctorVisitRepoPG(pool)
	shopVisits := visit.NewShopVisitRepoPG(pool)

	// Identity domain
	identitySvc := identity.NewService(users, issuer, auth.NewPGBlacklist(pool), logger)
	identity.NewHandler(identitySvc).RegisterRoutes(api, authed)

	// Visit domain
	visitSvc := visit.NewService(doctors, doctorVisits, shopVisits, clock, logger)
	visit.NewHandler(visitSvc).RegisterRoutes(authed)

	// Task domain
	taskSvc := task.NewService(task.NewTaskRepoPG(pool), doctors, doctorVisits, users,
		db.NewTransactor(pool), clock, logger)
	task.NewHandler(taskSvc).RegisterRoutes(authed)

	// Dashboard domain
	dashboardSvc := dashboard.NewService(dashboard.NewRepoPG(pool), users, clock, logger)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(authed)

	return e, nil
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	e, err := newServer(cfg, pool, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", cfg.Timezone).Str("env", cfg.Env).Msg("mrtracker listening")
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("draining connections")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := e.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("stopped")
	return nil
}
