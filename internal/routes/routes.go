package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/moneyflow/internal/config"
	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/funding"
	"github.com/congo-pay/moneyflow/internal/middleware"
	"github.com/congo-pay/moneyflow/internal/rail"
	"github.com/congo-pay/moneyflow/internal/transfer"
	"github.com/congo-pay/moneyflow/internal/wallet"
	"github.com/congo-pay/moneyflow/internal/walletclient"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Publisher events.Publisher
	Acquirer  funding.Acquirer
	Rails     transfer.Rails
	Logger    *slog.Logger
}

// Worker is a background loop that runs until ctx is cancelled.
type Worker func(ctx context.Context)

// Setup configures middlewares and all application routes, and returns the
// background workers the wired services need.
func Setup(app *fiber.App, d Deps) ([]Worker, error) {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Stores
	var (
		outbox       events.Outbox
		walletRepo   wallet.Repository
		transferRepo transfer.Repository
	)
	if d.DB != nil {
		outbox = events.NewPostgresOutbox(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		transferRepo = transfer.NewPostgresRepository(d.DB)
	} else {
		memOutbox := events.NewMemoryOutbox()
		outbox = memOutbox
		walletRepo = wallet.NewMemoryRepository(memOutbox)
		transferRepo = transfer.NewMemoryRepository(memOutbox)
	}

	publisher := d.Publisher
	if publisher == nil {
		publisher = events.NewLogPublisher(d.Logger)
	}
	relay := events.NewRelay(outbox, publisher, d.Logger, d.Cfg.OutboxInterval)

	// Services
	engine := wallet.NewEngine(walletRepo, d.Logger,
		wallet.WithSignal(relay),
		wallet.WithMaxRetries(d.Cfg.WalletMaxRetries),
	)
	wallets := walletclient.NewLocal(engine)

	rails := d.Rails
	if rails == nil {
		rails = rail.DefaultRails(d.Cfg.RailLatency)
	}
	transferSvc := transfer.NewService(transferRepo, wallets, rails, d.Logger,
		transfer.WithRailTimeout(d.Cfg.RailTimeout),
		transfer.WithSignal(relay),
	)
	sweeper := transfer.NewSweeper(transferRepo, wallets, d.Logger, d.Cfg.StaleTransferAfter)

	acquirer := d.Acquirer
	if acquirer == nil {
		acquirer = funding.StaticAcquirer{}
	}
	fundingSvc, err := funding.NewService(engine, acquirer, d.Logger)
	if err != nil {
		return nil, err
	}

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDHeader).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("", middleware.JWTAuth(d.Cfg.JWTSecret))
	idem := idempotency(d)
	RegisterWalletRoutes(protected, wallet.NewHandler(engine), idem)
	RegisterTransferRoutes(protected, transfer.NewHandler(transferSvc), idem)
	RegisterFundingRoutes(protected, funding.NewHandler(fundingSvc), idem)

	workers := []Worker{
		relay.Run,
		func(ctx context.Context) { sweeper.Run(ctx, d.Cfg.SweepInterval) },
	}
	return workers, nil
}

// idempotency is a pass-through when Redis is not configured (dev only).
func idempotency(d Deps) fiber.Handler {
	if d.Cache == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
}
