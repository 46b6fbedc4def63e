package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/basicrecords/moodjournal/internal/journal"
)

// Config wraps the knobs that impact runtime behavior.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  string
	// Precision is the default number of decimals for presented averages.
	Precision int
}

// Server exposes the Fiber application.
type Server struct {
	app    *fiber.App
	svc    *journal.Service
	cfg    Config
	logger *zap.Logger
}

// NewServer wires handlers and middleware.
func NewServer(cfg Config, svc *journal.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          errorHandler(logger),
	})
	app.Use(requestLogger(logger))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))

	srv := &Server{app: app, svc: svc, cfg: cfg, logger: logger}
	srv.registerRoutes()
	return srv
}

// App returns the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts listening for HTTP traffic until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			s.logger.Warn("shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("journal service listening", zap.String("addr", s.cfg.Addr))
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api/v1")

	api.Post("/users", s.handleCreateUser)
	api.Get("/users", s.handleFindUsers)
	api.Get("/users/:id", s.handleGetUser)
	api.Delete("/users/:id", s.handleDeleteUser)

	api.Post("/entries", s.handleCreateEntry)
	api.Get("/entries", s.handleListEntries)
	api.Get("/entries/:id", s.handleGetEntry)
	api.Patch("/entries/:id", s.handleUpdateEntry)
	api.Delete("/entries/:id", s.handleDeleteEntry)

	api.Get("/insights/weekly", s.handleWeeklyInsights)
	api.Get("/moods/classify", s.handleClassify)
}
