package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"settlegate/internal/config"
	"settlegate/internal/domain"
	"settlegate/internal/infra/submit"
	"settlegate/internal/usecase"
)

// LedgerSource supplies the network state an authorization runs against.
type LedgerSource interface {
	Snapshot(ctx context.Context, currency string) (domain.LedgerState, error)
	SourceBalance(ctx context.Context, account, currency string) (decimal.Decimal, error)
}

// HintApplier provisions key material for rotation plan entries that have
// come due. Optional: without one, plans stay advisory.
type HintApplier interface {
	Apply(ctx context.Context, hints []domain.EpochHint) ([]domain.EpochHint, error)
}

type Server struct {
	cfg config.Config
	r   *gin.Engine

	gate    *usecase.ExecutionGate
	planner *usecase.RotationPlanner
	records usecase.RecordStore
	audit   *usecase.AuditEmitter
	ledger  LedgerSource
	halt    *submit.HaltSwitch
	hints   HintApplier

	adminAPIKey string

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

type ServerDeps struct {
	Gate        *usecase.ExecutionGate
	Planner     *usecase.RotationPlanner
	Records     usecase.RecordStore
	Audit       *usecase.AuditEmitter
	Ledger      LedgerSource
	Halt        *submit.HaltSwitch
	Hints       HintApplier
	RateLimiter domain.RateLimiter
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:               cfg,
		r:                 r,
		gate:              deps.Gate,
		planner:           deps.Planner,
		records:           deps.Records,
		audit:             deps.Audit,
		ledger:            deps.Ledger,
		halt:              deps.Halt,
		hints:             deps.Hints,
		adminAPIKey:       cfg.AdminAPIKey,
		rateLimiter:       deps.RateLimiter,
		rateLimitRequests: cfg.RateLimitRequests,
		rateLimitWindow:   cfg.RateLimitWindow,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		halted := false
		if s.halt != nil {
			halted = s.halt.Halted()
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "halted": halted})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/submissions", s.handleSubmit)
		v1.POST("/plans", s.handleBuildPlan)

		v1.POST("/admin/halt", s.handleHalt)
		v1.POST("/admin/resume", s.handleResume)
		v1.GET("/admin/status", s.handleStatus)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Run(addr string) error {
	return s.r.Run(addr)
}

func (s *Server) Handler() http.Handler {
	return s.r
}
