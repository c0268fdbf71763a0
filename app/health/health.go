// Package health reports whether a wheel node can take spins.
//
// The checker inspects the committed store, the published cluster, the
// queue circuit breaker and the computation backlog, and serves:
// - /health - Basic liveness check
// - /health/ready - Readiness check for load balancers
// - /health/detailed - Status of every component
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gorilla/mux"

	"github.com/TOBY0001/encrypted-wheel/app"
	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
	wheeltypes "github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// HealthCheck represents the overall health check response
type HealthCheck struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	ChainID    string                     `json:"chain_id"`
	Height     int64                      `json:"height"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Config holds configuration for the health checker
type Config struct {
	// MaxPending is the backlog above which the queue is reported degraded
	MaxPending int

	// CacheDuration is how long to cache health check results
	CacheDuration time.Duration
}

// DefaultConfig returns the default health check configuration
func DefaultConfig() Config {
	return Config{
		MaxPending:    1000,
		CacheDuration: 5 * time.Second,
	}
}

// Checker performs health checks against an App.
type Checker struct {
	logger log.Logger
	app    *app.App
	cfg    Config

	mu           sync.RWMutex
	lastCheck    time.Time
	cachedHealth *HealthCheck
}

// NewChecker creates a new health checker
func NewChecker(logger log.Logger, cfg Config, a *app.App) *Checker {
	return &Checker{
		logger: logger.With("module", "health"),
		app:    a,
		cfg:    cfg,
	}
}

// Check performs a health check of every component.
func (c *Checker) Check(_ context.Context) (*HealthCheck, error) {
	if cached := c.cached(); cached != nil {
		return cached, nil
	}

	components := map[string]ComponentHealth{
		"store": c.checkStore(),
	}
	err := c.app.Query(func(ctx sdk.Context) error {
		components["cluster"] = c.checkCluster(ctx)
		components["queue"] = c.checkQueue(ctx)
		components["definitions"] = c.checkDefinitions(ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	health := &HealthCheck{
		Status:     calculateOverallStatus(components),
		Timestamp:  time.Now(),
		ChainID:    c.app.ChainID(),
		Height:     c.app.LastBlockHeight(),
		Components: components,
	}

	c.mu.Lock()
	c.cachedHealth = health
	c.lastCheck = time.Now()
	c.mu.Unlock()

	return health, nil
}

func (c *Checker) checkStore() ComponentHealth {
	id := c.app.LastCommitID()
	if id.Version == 0 {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   "no block committed",
			Timestamp: time.Now(),
		}
	}
	return ComponentHealth{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Metrics: map[string]interface{}{
			"height": id.Version,
			"hash":   id.String(),
		},
	}
}

func (c *Checker) checkCluster(ctx sdk.Context) ComponentHealth {
	cfg, err := c.app.MXEKeeper.GetClusterConfig(ctx)
	if errors.Is(err, mxetypes.ErrClusterNotSet) {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   "no cluster configured",
			Timestamp: time.Now(),
		}
	}
	if err != nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: err.Error(), Timestamp: time.Now()}
	}
	return ComponentHealth{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Metrics: map[string]interface{}{
			"epoch":     cfg.Epoch,
			"signers":   len(cfg.Signers),
			"threshold": cfg.Threshold,
		},
	}
}

func (c *Checker) checkQueue(ctx sdk.Context) ComponentHealth {
	breaker := c.app.MXEKeeper.GetCircuitBreakerState(ctx)
	pending, err := c.app.MXEKeeper.PendingRequests(ctx)
	if err != nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: err.Error(), Timestamp: time.Now()}
	}

	health := ComponentHealth{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Metrics: map[string]interface{}{
			"pending": len(pending),
			"paused":  breaker.Open,
		},
	}
	switch {
	case breaker.Open:
		health.Status = StatusDegraded
		health.Message = "queue paused: " + breaker.Reason
	case len(pending) > c.cfg.MaxPending:
		health.Status = StatusDegraded
		health.Message = "computation backlog above threshold"
	}
	return health
}

func (c *Checker) checkDefinitions(ctx sdk.Context) ComponentHealth {
	count := 0
	err := c.app.MXEKeeper.IterateDefinitions(ctx, func(mxetypes.ComputationDefinition) (bool, error) {
		count++
		return false, nil
	})
	if err != nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: err.Error(), Timestamp: time.Now()}
	}

	health := ComponentHealth{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Metrics:   map[string]interface{}{"registered": count},
	}
	if _, err := c.app.MXEKeeper.GetDefinitionByName(ctx, wheeltypes.SpinCircuitName); err != nil {
		health.Status = StatusDegraded
		health.Message = "spin circuit not registered"
	}
	return health
}

// calculateOverallStatus determines the overall health status based on component statuses
func calculateOverallStatus(components map[string]ComponentHealth) Status {
	hasDegraded := false
	for _, component := range components {
		switch component.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			hasDegraded = true
		}
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

func (c *Checker) cached() *HealthCheck {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachedHealth == nil || time.Since(c.lastCheck) >= c.cfg.CacheDuration {
		return nil
	}
	return c.cachedHealth
}

// RegisterRoutes registers health check endpoints on router
func (c *Checker) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", c.handleHealth).Methods("GET")
	router.HandleFunc("/health/ready", c.handleHealthReady).Methods("GET")
	router.HandleFunc("/health/detailed", c.handleHealthDetailed).Methods("GET")
}

func (c *Checker) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleHealthReady reports 503 only when a component is unhealthy; a
// paused queue still serves queries.
func (c *Checker) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	health, err := c.Check(r.Context())
	if err != nil {
		c.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	statusCode := http.StatusOK
	if health.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status": health.Status,
		"height": health.Height,
	})
}

func (c *Checker) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	health, err := c.Check(r.Context())
	if err != nil {
		c.logger.Error("detailed health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	statusCode := http.StatusOK
	if health.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
