package main

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"settlegate/internal/config"
	"settlegate/internal/domain"
	"settlegate/internal/infra/attest"
	"settlegate/internal/infra/backends"
	"settlegate/internal/infra/db"
	httpinfra "settlegate/internal/infra/http"
	"settlegate/internal/infra/keys/custody"
	"settlegate/internal/infra/keys/soft"
	"settlegate/internal/infra/ledgerpg"
	"settlegate/internal/infra/policyopa"
	"settlegate/internal/infra/ratelimit"
	"settlegate/internal/infra/routes"
	"settlegate/internal/infra/rules"
	"settlegate/internal/infra/submit"
	"settlegate/internal/usecase"
)

func main() {
	cfg := config.FromEnv()

	store, err := db.NewStore(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	if store.DB != nil {
		if err := store.Migrate(); err != nil {
			log.Fatalf("migrate record store: %v", err)
		}
	}

	var ledger httpinfra.LedgerSource
	if cfg.LedgerDSN != "" {
		provider, err := ledgerpg.NewProvider(cfg.LedgerDSN)
		if err != nil {
			log.Fatalf("failed to init ledger mirror: %v", err)
		}
		defer provider.Close()
		ledger = provider
	} else {
		log.Printf("LEDGER_DSN not set; submissions disabled until configured.")
	}

	keys, hints := buildKeyManager(cfg)
	compliance := buildComplianceEngine(cfg)
	backend := buildBackend(cfg)
	limiter := buildRateLimiter(cfg)

	halt := submit.NewHaltSwitch()
	records := db.NewRecordRepository(store.DB)
	audit := usecase.NewAuditEmitter(db.NewAuditEventRepository(store.DB), nil)

	gate := &usecase.ExecutionGate{
		Routes: routes.NewComputer(),
		Rules: rules.NewValidator(rules.Config{
			Ceiling:    parseDecimal(cfg.AmountCeiling, "AMOUNT_CEILING"),
			Reserve:    parseDecimal(cfg.BalanceReserve, "BALANCE_RESERVE"),
			Compliance: compliance,
		}),
		Suites:  attest.NewRegistry(cfg.SignerID, keys, nil),
		Router:  submit.NewRouter(backend, halt, cfg.MaxAttestationAge, nil),
		Records: records,
		Audit:   audit,
	}

	srv := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Gate:        gate,
		Planner:     usecase.NewRotationPlanner(usecase.GreedySolver{}, nil),
		Records:     records,
		Audit:       audit,
		Ledger:      ledger,
		Halt:        halt,
		Hints:       hints,
		RateLimiter: limiter,
	})

	log.Printf("gated listening on %s (backend=%s)", cfg.HTTPAddr, cfg.BackendKind)
	if err := srv.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func buildKeyManager(cfg config.Config) (domain.KeyManager, httpinfra.HintApplier) {
	if cfg.CustodyAddr != "" {
		return custody.New(cfg.CustodyAddr, cfg.CustodyToken), nil
	}
	manager := soft.NewManager()
	if err := manager.ProvisionEpoch(cfg.SignerID, 1); err != nil {
		log.Fatalf("provision signing keys: %v", err)
	}
	log.Printf("CUSTODY_ADDR not set; using in-process soft keys for signer %q.", cfg.SignerID)
	return manager, soft.NewRotationManager(manager, nil)
}

func buildComplianceEngine(cfg config.Config) *policyopa.Engine {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(ctx, cfg.PolicyBundlePath, "compliance")
		if err != nil {
			log.Fatalf("load policy bundle: %v", err)
		}
		return engine
	}
	engine, err := policyopa.NewEngine(ctx)
	if err != nil {
		log.Fatalf("init compliance engine: %v", err)
	}
	return engine
}

func buildBackend(cfg config.Config) submit.Backend {
	switch cfg.BackendKind {
	case "native":
		if cfg.NativeEndpoint == "" {
			log.Fatalf("BACKEND_KIND=native requires NATIVE_ENDPOINT")
		}
		return backends.NewNative(cfg.NativeEndpoint)
	case "interledger":
		if cfg.InterledgerEndpoint == "" || cfg.CorridorID == "" {
			log.Fatalf("BACKEND_KIND=interledger requires INTERLEDGER_ENDPOINT and CORRIDOR_ID")
		}
		return backends.NewInterledger(cfg.InterledgerEndpoint, cfg.CorridorID)
	case "memory":
		log.Printf("using in-memory settlement backend; submissions do not leave the process.")
		return backends.NewMemory()
	default:
		log.Fatalf("unknown BACKEND_KIND %q", cfg.BackendKind)
		return nil
	}
}

func buildRateLimiter(cfg config.Config) domain.RateLimiter {
	if cfg.RedisAddr != "" {
		limiter, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
		if err != nil {
			log.Fatalf("init redis rate limiter: %v", err)
		}
		return limiter
	}
	return ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: cfg.RateLimitMaxKeys})
}

func parseDecimal(value, name string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	out, err := decimal.NewFromString(value)
	if err != nil {
		log.Fatalf("%s must be a decimal string, got %q", name, value)
	}
	return out
}
