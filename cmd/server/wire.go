package main

import (
	"context"
	"time"

	"github.com/insight-edu/pageflow/internal/backend"
	"github.com/insight-edu/pageflow/internal/config"
	"github.com/insight-edu/pageflow/internal/gateway"
	"github.com/insight-edu/pageflow/internal/httpapi"
	"github.com/insight-edu/pageflow/internal/planner"
	"github.com/insight-edu/pageflow/internal/resolver"
	"github.com/insight-edu/pageflow/internal/router"
	"github.com/insight-edu/pageflow/internal/session"
	"github.com/insight-edu/pageflow/internal/telemetry"
	"github.com/insight-edu/pageflow/internal/tools"
)

// sessionSweepInterval bounds how often the session store reclaims expired
// entries; a twelfth of the default one-hour TTL keeps eviction timely
// without constant lock churn.
const sessionSweepInterval = 5 * time.Minute

// service bundles every long-lived component cmd/server constructs, plus the
// teardown function for background goroutines (the session sweeper).
type service struct {
	api  *httpapi.API
	stop func()
}

// build wires every SPEC_FULL.md component from cfg: the Backend Data
// Client, Tool Registry, session store, Entity Resolver, Router, Planner,
// model client, and Gateway, then the httpapi.API that fronts them all.
func build(ctx context.Context, cfg *config.Config, tel telemetry.Bundle) (*service, error) {
	modelClient, err := buildModelClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backendClient := backend.New(backend.Options{
		BaseURL:     cfg.JavaBackendBaseURL,
		APIPrefix:   cfg.JavaBackendAPIPrefix,
		AccessToken: cfg.JavaBackendAccessToken,
		Timeout:     cfg.JavaBackendTimeout(),
		Retry: backend.RetryConfig{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay(),
		},
		Breaker: backend.BreakerConfig{
			FailureThreshold: cfg.CircuitOpenThreshold,
			ResetTimeout:     cfg.CircuitResetTimeout(),
		},
		RateLimit: backend.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitPerSecond,
			Burst:             cfg.RateLimitBurst,
		},
		Telemetry: tel,
	})

	mockSwitch := tools.NewMockSwitch(cfg.UseMockData())
	reg := tools.NewRegistry()
	tools.RegisterDataTools(reg, backendClient, mockSwitch, tel)
	tools.RegisterComputeTools(reg)

	sessions := session.NewStore(cfg.SessionTTL())
	stopSweeper := sessions.StartSweeper(sessionSweepInterval)

	catalog := resolver.NewBackendCatalog(backendSource{client: backendClient})
	res := resolver.New(catalog, tel)

	rtr := router.New(modelClient, tel)
	rtr.ConfidenceHigh = cfg.RouterConfidenceHigh
	rtr.ConfidenceLow = cfg.RouterConfidenceLow

	toolDescs := make([]planner.ToolDescription, 0, len(reg.Describe()))
	for _, def := range reg.Describe() {
		toolDescs = append(toolDescs, planner.ToolDescription{Name: def.Name, Description: def.Description})
	}
	pl := planner.New(modelClient, toolDescs, tel)

	gw := gateway.New(sessions, rtr, res, catalog, pl, modelClient, tel)

	api := &httpapi.API{
		Gateway: gw,
		Planner: pl,
		Tools:   reg,
		Model:   modelClient,
		Tel:     tel,
	}

	return &service{api: api, stop: stopSweeper}, nil
}
