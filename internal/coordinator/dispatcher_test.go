package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-biocat/internal/biocat"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/logging"
)

func newTestDispatcher(t *testing.T, exec Executor) *Dispatcher {
	t.Helper()

	coord := newTestCoordinator(t, exec, Options{})
	d, err := NewDispatcher(exec, coord, logging.Default())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func TestCommandTriggersRefresh(t *testing.T) {
	exec := newStubExecutor(func(op biocat.Operation, payload any) (json.RawMessage, error) {
		if op == biocat.OpSetAbsenceMode {
			return nil, nil
		}
		return healthyHandler(100)(op, payload)
	})
	d := newTestDispatcher(t, exec)

	if err := d.SetAbsenceMode(context.Background(), true); err != nil {
		t.Fatalf("SetAbsenceMode: %v", err)
	}
	if n := exec.callCount(biocat.OpSetAbsenceMode); n != 1 {
		t.Errorf("set-absence-mode executed %d times, want 1", n)
	}
	if n := exec.callCount(biocat.OpReadState); n != 1 {
		t.Errorf("read-state executed %d times, want 1 post-command refresh", n)
	}
}

func TestCommandPayloads(t *testing.T) {
	var gotOp biocat.Operation
	var gotPayload any
	exec := newStubExecutor(func(op biocat.Operation, payload any) (json.RawMessage, error) {
		switch op {
		case biocat.OpSetAbsenceMode, biocat.OpSetLeakProtection:
			gotOp = op
			gotPayload = payload
			return nil, nil
		default:
			return healthyHandler(100)(op, payload)
		}
	})
	d := newTestDispatcher(t, exec)

	if err := d.SetAbsenceMode(context.Background(), true); err != nil {
		t.Fatalf("SetAbsenceMode: %v", err)
	}
	if gotOp != biocat.OpSetAbsenceMode {
		t.Errorf("operation = %s, want set-absence-mode", gotOp)
	}
	if p, ok := gotPayload.(absencePayload); !ok || !p.Active {
		t.Errorf("payload = %#v, want absencePayload{Active: true}", gotPayload)
	}

	if err := d.SetLeakProtection(context.Background(), false); err != nil {
		t.Fatalf("SetLeakProtection: %v", err)
	}
	if p, ok := gotPayload.(leakProtectionPayload); !ok || p.Enabled {
		t.Errorf("payload = %#v, want leakProtectionPayload{Enabled: false}", gotPayload)
	}
}

func TestButtonCommandsCarryNoPayload(t *testing.T) {
	payloads := make(map[biocat.Operation]any)
	exec := newStubExecutor(func(op biocat.Operation, payload any) (json.RawMessage, error) {
		switch op {
		case biocat.OpOpenValve, biocat.OpCloseValve, biocat.OpRunSelfTest, biocat.OpAcknowledgeWarning:
			payloads[op] = payload
			return nil, nil
		default:
			return healthyHandler(100)(op, payload)
		}
	})
	d := newTestDispatcher(t, exec)

	ctx := context.Background()
	for name, fn := range map[biocat.Operation]func(context.Context) error{
		biocat.OpOpenValve:          d.OpenValve,
		biocat.OpCloseValve:         d.CloseValve,
		biocat.OpRunSelfTest:        d.RunSelfTest,
		biocat.OpAcknowledgeWarning: d.AcknowledgeWarning,
	} {
		if err := fn(ctx); err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if payloads[name] != nil {
			t.Errorf("%s carried payload %#v, want nil", name, payloads[name])
		}
	}
}

func TestCommandUnauthorized(t *testing.T) {
	exec := newStubExecutor(func(op biocat.Operation, payload any) (json.RawMessage, error) {
		if op == biocat.OpOpenValve {
			return nil, biocat.ErrUnauthorized
		}
		return healthyHandler(100)(op, payload)
	})
	d := newTestDispatcher(t, exec)

	err := d.OpenValve(context.Background())
	if !errors.Is(err, ErrCommandUnauthorized) {
		t.Errorf("OpenValve error = %v, want ErrCommandUnauthorized", err)
	}
	if n := exec.callCount(biocat.OpReadState); n != 0 {
		t.Errorf("failed command must not trigger refresh, got %d reads", n)
	}
}

func TestCommandFailure(t *testing.T) {
	exec := newStubExecutor(func(op biocat.Operation, payload any) (json.RawMessage, error) {
		if op == biocat.OpRunSelfTest {
			return nil, biocat.ErrUnreachable
		}
		return healthyHandler(100)(op, payload)
	})
	d := newTestDispatcher(t, exec)

	err := d.RunSelfTest(context.Background())
	if !errors.Is(err, ErrCommandFailed) {
		t.Errorf("RunSelfTest error = %v, want ErrCommandFailed", err)
	}
	if !errors.Is(err, biocat.ErrUnreachable) {
		t.Errorf("cause not wrapped: %v", err)
	}
}

func TestCommandSucceedsWhenRefreshFails(t *testing.T) {
	exec := newStubExecutor(func(op biocat.Operation, payload any) (json.RawMessage, error) {
		if op == biocat.OpCloseValve {
			return nil, nil
		}
		return nil, biocat.ErrTimeout
	})
	d := newTestDispatcher(t, exec)

	if err := d.CloseValve(context.Background()); err != nil {
		t.Errorf("CloseValve error = %v, want nil when only refresh fails", err)
	}
}
