package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-biocat/internal/biocat"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/logging"
)

// offlineThreshold is the number of consecutive failed cycles before the
// coordinator escalates from a transient hiccup to the appliance being
// offline. Availability clears on the first failure either way; the
// threshold only governs the offline state in Stats and health reports.
const offlineThreshold = 3

// refreshKey coalesces all concurrent refresh requests onto one cycle.
const refreshKey = "refresh"

// Executor runs one API operation. Satisfied by *biocat.Transport;
// tests substitute a stub.
type Executor interface {
	Execute(ctx context.Context, op biocat.Operation, payload any) (json.RawMessage, error)
}

// Subscriber receives each committed snapshot. Callbacks run
// sequentially on the publishing goroutine and must not block.
type Subscriber func(biocat.Snapshot)

// Stats describes the coordinator's health for reporting.
type Stats struct {
	CycleSeq            uint64     `json:"cycle_seq"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Offline             bool       `json:"offline"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// Coordinator owns the polling cadence against the BIOCAT API.
//
// It runs one fetch cycle per interval, coalesces forced refreshes onto
// any in-flight cycle, and publishes immutable snapshots to subscribers.
// A failed cycle retains the last good snapshot's values but clears its
// availability; after offlineThreshold consecutive failures the
// coordinator additionally reports the appliance offline, without
// changing the cadence.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Coordinator struct {
	exec     Executor
	logger   *logging.Logger
	interval time.Duration

	// onAuthFailure, when set, is invoked once per transition into the
	// unauthorized state. Used to surface a re-auth prompt upstream.
	onAuthFailure func(error)

	group singleflight.Group

	mu          sync.RWMutex
	snapshot    *biocat.Snapshot
	cycleSeq    uint64
	committed   uint64
	failures    int
	offline     bool
	authFailed  bool
	maxTotal    float64
	hasMaxTotal bool
	lastSuccess *time.Time
	lastError   string
	subscribers map[int]Subscriber
	nextSubID   int

	runCtx   context.Context
	runStop  context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Options configures a Coordinator.
type Options struct {
	// Interval is the polling cadence. Required.
	Interval time.Duration

	// OnAuthFailure is called when a cycle fails with an unauthorized
	// error, once per transition into the failed state. Optional.
	OnAuthFailure func(error)
}

// New creates a Coordinator. Call Start to begin polling.
func New(exec Executor, logger *logging.Logger, opts Options) (*Coordinator, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}

	runCtx, runStop := context.WithCancel(context.Background())

	return &Coordinator{
		exec:          exec,
		logger:        logger.With("component", "coordinator"),
		interval:      opts.Interval,
		onAuthFailure: opts.OnAuthFailure,
		subscribers:   make(map[int]Subscriber),
		runCtx:        runCtx,
		runStop:       runStop,
	}, nil
}

// Start runs an immediate first cycle, then polls on the configured
// interval until Stop is called. The first cycle's error is returned so
// startup can distinguish a bad credential from a transient failure;
// polling continues either way.
func (c *Coordinator) Start(ctx context.Context) error {
	_, err := c.RequestRefresh(ctx)
	if err != nil && !errors.Is(err, biocat.ErrUnauthorized) {
		c.logger.Warn("initial fetch cycle failed, polling continues", "error", err)
	}

	c.wg.Add(1)
	go c.pollLoop()

	c.logger.Info("polling started", "interval", c.interval.String())

	if errors.Is(err, biocat.ErrUnauthorized) {
		return err
	}
	return nil
}

// pollLoop runs scheduled cycles until the coordinator is stopped.
// Cadence never changes: failures, offline escalation and rate limiting
// all wait for the next tick.
func (c *Coordinator) pollLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Cycles run detached from runCtx: Stop cancels scheduling only, an
	// in-flight cycle completes and its result is still published.
	cycleCtx := context.WithoutCancel(c.runCtx)

	for {
		select {
		case <-ticker.C:
			if _, err := c.RequestRefresh(cycleCtx); err != nil && !errors.Is(err, ErrStopped) {
				c.logger.Warn("scheduled fetch cycle failed", "error", err)
			}
		case <-c.runCtx.Done():
			return
		}
	}
}

// RequestRefresh forces a fetch cycle now and returns its snapshot.
//
// Concurrent callers coalesce onto a single in-flight cycle and all
// receive that cycle's result; no queue of pending cycles builds up.
//
// Returns:
//   - biocat.Snapshot: The committed snapshot on success
//   - error: ErrCycleFailed (wrapping the transport error) on failure,
//     ErrStopped after Stop()
func (c *Coordinator) RequestRefresh(ctx context.Context) (biocat.Snapshot, error) {
	if c.runCtx.Err() != nil {
		return biocat.Snapshot{}, ErrStopped
	}

	v, err, _ := c.group.Do(refreshKey, func() (any, error) {
		return c.runCycle(ctx)
	})
	if err != nil {
		return biocat.Snapshot{}, err
	}
	return v.(biocat.Snapshot), nil
}

// runCycle performs one complete fetch cycle: all read operations
// concurrently, then normalization, then a guarded commit.
func (c *Coordinator) runCycle(ctx context.Context) (biocat.Snapshot, error) {
	c.mu.Lock()
	c.cycleSeq++
	seq := c.cycleSeq
	c.mu.Unlock()

	started := time.Now()

	var bodyMu sync.Mutex
	bodies := make(map[biocat.Operation]json.RawMessage)

	g, gctx := errgroup.WithContext(ctx)
	for _, op := range biocat.CycleOperations() {
		op := op
		g.Go(func() error {
			raw, err := c.exec.Execute(gctx, op, nil)
			if err != nil {
				return err
			}
			bodyMu.Lock()
			bodies[op] = raw
			bodyMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.recordFailure(seq, err)
		return biocat.Snapshot{}, fmt.Errorf("%w: %w", ErrCycleFailed, err)
	}

	snap := biocat.Merge(bodies)
	committed := c.commit(seq, &snap)

	c.logger.Debug("fetch cycle complete",
		"cycle", seq,
		"duration", time.Since(started).String(),
		"online", snap.Online,
	)

	if committed {
		c.publish(snap)
	}
	return snap, nil
}

// commit installs a cycle's snapshot and reports whether it was
// accepted. Snapshots from stale cycles never overwrite a newer commit
// and are not published. The lifetime total is clamped to the running
// maximum so a transient upstream glitch cannot make it decrease.
func (c *Coordinator) commit(seq uint64, snap *biocat.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq < c.committed {
		c.logger.Warn("discarding stale cycle result", "cycle", seq, "committed", c.committed)
		return false
	}

	if snap.TotalConsumption != nil {
		if c.hasMaxTotal && *snap.TotalConsumption < c.maxTotal {
			c.logger.Warn("total consumption decreased, clamping to previous maximum",
				"reported", *snap.TotalConsumption,
				"maximum", c.maxTotal,
			)
			clamped := c.maxTotal
			snap.TotalConsumption = &clamped
		} else {
			c.maxTotal = *snap.TotalConsumption
			c.hasMaxTotal = true
		}
	}

	now := time.Now()
	c.committed = seq
	c.snapshot = snap
	c.failures = 0
	c.offline = false
	c.authFailed = false
	c.lastSuccess = &now
	c.lastError = ""
	return true
}

// recordFailure counts a failed cycle. Any failure clears availability
// on the cached snapshot (values retained) and publishes that transition
// once; the offline escalation at the threshold only changes Stats and
// the log level.
func (c *Coordinator) recordFailure(seq uint64, err error) {
	c.mu.Lock()
	c.failures++
	c.lastError = err.Error()
	failures := c.failures
	escalate := failures == offlineThreshold && !c.offline
	if escalate {
		c.offline = true
	}

	authTransition := false
	if errors.Is(err, biocat.ErrUnauthorized) {
		authTransition = !c.authFailed
		c.authFailed = true
	}

	var degraded *biocat.Snapshot
	if c.snapshot != nil && c.snapshot.Online {
		d := *c.snapshot
		d.Online = false
		c.snapshot = &d
		degraded = &d
	}
	c.mu.Unlock()

	c.logger.Warn("fetch cycle failed",
		"cycle", seq,
		"consecutive_failures", failures,
		"error", err,
	)

	if authTransition {
		c.logger.Error("credential rejected by upstream API")
		if c.onAuthFailure != nil {
			c.onAuthFailure(err)
		}
	}

	if escalate {
		c.logger.Error("appliance marked offline", "consecutive_failures", failures)
	}

	if degraded != nil {
		c.publish(*degraded)
	}
}

// Snapshot returns the last committed snapshot.
func (c *Coordinator) Snapshot() (biocat.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil {
		return biocat.Snapshot{}, ErrNoSnapshot
	}
	return *c.snapshot, nil
}

// Stats returns the coordinator's health counters.
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		CycleSeq:            c.committed,
		ConsecutiveFailures: c.failures,
		Offline:             c.offline,
		LastSuccess:         c.lastSuccess,
		LastError:           c.lastError,
	}
}

// Subscribe registers a callback for committed snapshots and returns an
// id for Unsubscribe. The current snapshot, if any, is not replayed;
// callers needing it should read Snapshot() first.
func (c *Coordinator) Subscribe(fn Subscriber) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	id := c.nextSubID
	c.subscribers[id] = fn
	return id
}

// Unsubscribe removes a previously registered callback.
func (c *Coordinator) Unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribers, id)
}

// publish delivers a snapshot to all subscribers. The subscriber list is
// copied under the lock; callbacks run without it.
func (c *Coordinator) publish(snap biocat.Snapshot) {
	c.mu.RLock()
	subs := make([]Subscriber, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Stop cancels future scheduling and waits for any in-flight cycle to
// complete; it never aborts the cycle's requests. Safe to call multiple
// times.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.runStop()
		c.wg.Wait()
		c.logger.Info("polling stopped")
	})
}
