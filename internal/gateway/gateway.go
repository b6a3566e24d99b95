// Package gateway performs the planning operations against the remote
// planning collaborator, or against an in-process simulation when no
// collaborator is reachable. Both backends honor the same contract: the
// same schema validation at both boundaries and the same error taxonomy.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/M-24rjgc/cognical/models"
	"github.com/M-24rjgc/cognical/types"
)

// Planner is the contract every gateway backend implements.
type Planner interface {
	// Generate requests a new multi-task schedule.
	Generate(ctx context.Context, input models.GeneratePlanInput) (*models.PlanningSessionView, error)

	// Apply commits one option's blocks, patched by the given overrides.
	Apply(ctx context.Context, input models.ApplyPlanInput) (*models.AppliedPlan, error)

	// ResolveConflicts re-checks one option after the given adjustments.
	ResolveConflicts(ctx context.Context, input models.ResolveConflictsInput) (*models.PlanningSessionView, error)

	// GetPreferences reads one preference profile.
	GetPreferences(ctx context.Context, preferenceID string) (*models.PreferenceSnapshot, error)

	// UpdatePreferences writes one preference profile through to the
	// collaborator.
	UpdatePreferences(ctx context.Context, preferenceID string, snapshot models.PreferenceSnapshot) error
}

// New is a factory returning a Planner based on the gateway configuration.
func New(cfg *types.GatewayConfig) (Planner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gateway configuration cannot be nil")
	}

	timeout := 30 * time.Second
	if cfg.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "remote":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("remote gateway selected but endpoint is missing")
		}
		return NewRemote(cfg.Endpoint, timeout), nil
	case "simulation":
		return NewSimulation(cfg.SimulationDB)
	case "", "auto":
		if cfg.Endpoint != "" {
			return NewRemote(cfg.Endpoint, timeout), nil
		}
		return NewSimulation(cfg.SimulationDB)
	default:
		return nil, fmt.Errorf("unsupported gateway mode: %s", cfg.Mode)
	}
}
