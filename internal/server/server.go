package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/moneyflow/internal/config"
	"github.com/congo-pay/moneyflow/internal/routes"
)

// Server wraps the Fiber application and the background workers wired with it.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	logger  *slog.Logger
	workers []routes.Worker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, deps routes.Deps) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler,
	})

	deps.Cfg = cfg
	workers, err := routes.Setup(app, deps)
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, logger: deps.Logger, workers: workers}, nil
}

// Start launches the background workers. Call it once, before Listen.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for _, run := range s.workers {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			run(ctx)
		}()
	}
}

// Listen starts the HTTP server and blocks until the listener stops.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, drains in-flight ones, then stops the workers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("workers did not stop before shutdown deadline")
	}
	return err
}

// errorHandler renders every error as {"error": message}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
