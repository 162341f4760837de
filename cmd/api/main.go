package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bbabel1/property-manager-sub011/internal/allocation"
	"github.com/bbabel1/property-manager-sub011/internal/buildium"
	"github.com/bbabel1/property-manager-sub011/internal/escrow"
	"github.com/bbabel1/property-manager-sub011/internal/glaccounts"
	"github.com/bbabel1/property-manager-sub011/internal/ledger"
	"github.com/bbabel1/property-manager-sub011/internal/reconcile"
	"github.com/bbabel1/property-manager-sub011/internal/reports"
	"github.com/bbabel1/property-manager-sub011/internal/router"
	"github.com/bbabel1/property-manager-sub011/internal/transactions"
)

func main() {
	log, err := buildLogger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	ctx := context.Background()
	pool, err := newPool(ctx, dsn)
	if err != nil {
		log.Fatal("database pool", zap.Error(err))
	}
	defer pool.Close()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "internal server error"

			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
				message = fiberErr.Message
			}

			return c.Status(code).JSON(fiber.Map{"error": message})
		},
	})

	app.Use(router.CorsMiddleware())
	app.Use(router.RequestID())
	app.Use(requestLogger(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	// Dev token endpoint
	if strings.EqualFold(os.Getenv("ENV"), "dev") {
		app.Get("/dev/token", func(c *fiber.Ctx) error {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub":    "11111111-1111-1111-1111-111111111111",
				"org_id": c.Query("org_id", "00000000-0000-0000-0000-000000000001"),
				"exp":    time.Now().Add(24 * time.Hour).Unix(),
			})
			signed, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
			return c.JSON(fiber.Map{"token": signed})
		})
	}

	accountsRepo := glaccounts.NewRepo(pool)
	store := ledger.NewStore(pool)
	engine := allocation.NewEngine(accountsRepo)

	provider := buildium.NewFromEnv()
	syncStore := reconcile.NewStore(pool)
	reconciler := reconcile.NewReconciler(store, accountsRepo, syncStore, provider, log)

	escrowRepo := escrow.NewRepo(pool)
	escrowSvc := escrow.NewService(accountsRepo, store, escrowRepo, log)

	r := &router.Router{
		TransactionsHandler: transactions.NewHandler(engine, store, reconciler, pool, log),
		GLAccountsHandler:   glaccounts.NewHandler(accountsRepo),
		EscrowHandler:       escrow.NewHandler(escrowSvc),
		ReportsHandler:      reports.NewHandler(escrowSvc, log),
		AuthMW:              router.AuthFromEnv(),
	}
	r.RegisterRoutes(app)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info("listening", zap.String("port", port))
	log.Fatal("server stopped", zap.Error(app.Listen(":"+port)))
}

// newPool builds the pgx pool and registers the shopspring decimal codec so
// numeric columns scan straight into decimal.Decimal.
func newPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func buildLogger() (*zap.Logger, error) {
	if strings.EqualFold(os.Getenv("ENV"), "dev") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("took", time.Since(start)),
		)
		return err
	}
}
