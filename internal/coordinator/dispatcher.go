package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-biocat/internal/biocat"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/logging"
)

// absencePayload is the set-absence-mode request body.
type absencePayload struct {
	Active bool `json:"active"`
}

// leakProtectionPayload is the set-leak-protection request body.
type leakProtectionPayload struct {
	Enabled bool `json:"enabled"`
}

// Dispatcher issues write operations against the appliance.
//
// Commands never mutate local state optimistically: a successful write
// triggers a forced refresh and the new snapshot carries the real
// post-command state. A command whose refresh fails still succeeds; the
// next scheduled cycle picks the state up.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Dispatcher struct {
	exec   Executor
	coord  *Coordinator
	logger *logging.Logger
}

// NewDispatcher creates a Dispatcher bound to a coordinator.
func NewDispatcher(exec Executor, coord *Coordinator, logger *logging.Logger) (*Dispatcher, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if coord == nil {
		return nil, fmt.Errorf("coordinator is required")
	}

	return &Dispatcher{
		exec:   exec,
		coord:  coord,
		logger: logger.With("component", "dispatcher"),
	}, nil
}

// SetAbsenceMode enables or disables absence mode.
func (d *Dispatcher) SetAbsenceMode(ctx context.Context, active bool) error {
	return d.execute(ctx, biocat.OpSetAbsenceMode, absencePayload{Active: active})
}

// SetLeakProtection enables or disables leakage protection.
func (d *Dispatcher) SetLeakProtection(ctx context.Context, enabled bool) error {
	return d.execute(ctx, biocat.OpSetLeakProtection, leakProtectionPayload{Enabled: enabled})
}

// OpenValve opens the water supply valve.
func (d *Dispatcher) OpenValve(ctx context.Context) error {
	return d.execute(ctx, biocat.OpOpenValve, nil)
}

// CloseValve closes the water supply valve.
func (d *Dispatcher) CloseValve(ctx context.Context) error {
	return d.execute(ctx, biocat.OpCloseValve, nil)
}

// RunSelfTest starts an appliance self test.
func (d *Dispatcher) RunSelfTest(ctx context.Context) error {
	return d.execute(ctx, biocat.OpRunSelfTest, nil)
}

// AcknowledgeWarning acknowledges the active warning or event.
func (d *Dispatcher) AcknowledgeWarning(ctx context.Context) error {
	return d.execute(ctx, biocat.OpAcknowledgeWarning, nil)
}

// execute runs one write operation and forces a refresh on success.
func (d *Dispatcher) execute(ctx context.Context, op biocat.Operation, payload any) error {
	if _, err := d.exec.Execute(ctx, op, payload); err != nil {
		if errors.Is(err, biocat.ErrUnauthorized) {
			d.logger.Error("command rejected by upstream API", "operation", op)
			return fmt.Errorf("%w: %s", ErrCommandUnauthorized, op)
		}
		d.logger.Warn("command failed", "operation", op, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrCommandFailed, op, err)
	}

	d.logger.Info("command accepted", "operation", op)

	// Refresh failure is not command failure; the write already landed.
	if _, err := d.coord.RequestRefresh(ctx); err != nil {
		d.logger.Warn("post-command refresh failed", "operation", op, "error", err)
	}

	return nil
}
