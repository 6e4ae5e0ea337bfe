// Package api exposes the screening pipeline over HTTP.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/soteria-labs/soteria/pkg/shield"
)

// Server is the HTTP surface over a Shield.
type Server struct {
	app    *fiber.App
	shield *shield.Shield
	core   shield.CoreLogic
	obs    *Observability
}

type detectRequest struct {
	Text string `json:"text"`
}

type guardRequest struct {
	Text string `json:"text"`
}

// NewServer wires the routes. core is the protected application capability
// invoked by the guard route; obs may be nil.
func NewServer(sh *shield.Shield, core shield.CoreLogic, obs *Observability) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName: "soteria",
		}),
		shield: sh,
		core:   core,
		obs:    obs,
	}

	s.app.Get("/healthz", s.handleHealthz)
	s.app.Post("/v1/detect", s.handleDetect)
	s.app.Post("/v1/guard", s.handleGuard)
	s.app.Get("/v1/metrics", s.handleMetrics)

	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen(addr string) error {
	slog.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealthz(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleDetect(c fiber.Ctx) error {
	var req detectRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text is required"})
	}

	start := time.Now()
	verdict, tier, err := s.shield.Detect(c.Context(), req.Text)
	if err != nil {
		slog.Error("detect failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "detection unavailable"})
	}
	s.obs.MarkVerdict(c.Context(), verdict.IsThreat, string(tier), time.Since(start).Milliseconds())

	return c.JSON(fiber.Map{
		"verdict":    verdict,
		"cache_tier": tier,
	})
}

func (s *Server) handleGuard(c fiber.Ctx) error {
	var req guardRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text is required"})
	}
	if s.core == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "no core logic configured"})
	}

	start := time.Now()
	resp, err := s.shield.Guard(c.Context(), req.Text, s.core)
	if err != nil {
		slog.Error("guard failed", "err", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "core logic unavailable"})
	}
	s.obs.MarkVerdict(c.Context(), !resp.Allowed(), string(resp.CacheTier), time.Since(start).Milliseconds())

	return c.JSON(resp)
}

func (s *Server) handleMetrics(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"shield": s.shield.Metrics().Snapshot(),
		"cache":  s.shield.CacheStats(),
	})
}
