// Package engine implements the monitoring engine: a single-goroutine
// cooperative loop that owns a working set of nodes, schedules probes per
// node, applies the soft/hard state machine, persists confirmed transitions,
// and publishes updated-node events to the front-end.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nodewatch/nodewatch/internal/model"
	"github.com/nodewatch/nodewatch/internal/probe"
	"github.com/nodewatch/nodewatch/internal/scanloop"
)

// Op discriminates configuration commands.
type Op int

const (
	OpAdd Op = iota
	OpUpdate
	OpDelete
)

// ConfigUpdate is a command from the front-end: add, update, or delete a
// node in the engine's working set. Node is set for Add/Update, NodeID for
// Delete.
type ConfigUpdate struct {
	Op     Op
	Node   *model.Node
	NodeID int64
}

// Store is the subset of the persistence layer the engine writes through.
type Store interface {
	UpdateNode(n *model.Node) error
	AddProbeSample(p *model.ProbeSample) (int64, error)
	AddStatusChange(c *model.StatusChange) (int64, error)
	LatestProbeSample(nodeID int64) (*model.ProbeSample, error)
}

// Config configures the Engine.
type Config struct {
	Store Store

	// Probe executes one check attempt. Injectable for testing.
	Probe probe.Func

	// Tick is the idle sleep between loop iterations (default 1s).
	Tick time.Duration

	// CommandBuffer / UpdateBuffer size the two channels.
	CommandBuffer int
	UpdateBuffer  int

	// Now is the wall clock. Injectable for testing.
	Now func() time.Time
}

// Engine owns the working set and the scheduling state. All maps are touched
// only by the loop goroutine; the outside world talks through the three
// channels.
type Engine struct {
	store     Store
	probeFunc probe.Func
	tick      time.Duration
	now       func() time.Time

	working        map[int64]*model.Node
	lastAttempt    map[int64]time.Time // monotonic, due-check
	prevStatus     map[int64]model.Status
	lastTransition map[int64]time.Time // wall clock, duration_ms
	sampled        map[int64]bool      // node has at least one persisted sample

	commands chan ConfigUpdate
	updates  chan model.Node
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates an Engine. Call Start to begin monitoring.
func New(cfg Config) *Engine {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = 16
	}
	if cfg.UpdateBuffer <= 0 {
		cfg.UpdateBuffer = 64
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		store:          cfg.Store,
		probeFunc:      cfg.Probe,
		tick:           cfg.Tick,
		now:            cfg.Now,
		working:        make(map[int64]*model.Node),
		lastAttempt:    make(map[int64]time.Time),
		prevStatus:     make(map[int64]model.Status),
		lastTransition: make(map[int64]time.Time),
		sampled:        make(map[int64]bool),
		commands:       make(chan ConfigUpdate, cfg.CommandBuffer),
		updates:        make(chan model.Node, cfg.UpdateBuffer),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Commands is the inbound configuration channel.
func (e *Engine) Commands() chan<- ConfigUpdate { return e.commands }

// Updates is the outbound node-update event channel. One event is published
// after every successful probe cycle for a node.
func (e *Engine) Updates() <-chan model.Node { return e.updates }

// Start seeds the working set and launches the loop goroutine. The initial
// nodes are the caller's read of the store.
func (e *Engine) Start(initial []model.Node) {
	e.seed(initial)
	go e.run()
}

func (e *Engine) seed(initial []model.Node) {
	for i := range initial {
		n := initial[i].Clone()
		e.working[n.ID] = &n
		e.seedPreviousStatus(&n)
	}
}

// Stop signals the loop to exit and waits for it to drain. An in-flight
// probe runs to its own deadline first; probes are never force-cancelled.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	<-e.done
}

func (e *Engine) run() {
	defer close(e.done)
	scanloop.Run(e.stopCh, e.tick, 0, func() {
		e.drainCommands()
		e.scan()
	})
}

// seedPreviousStatus initializes the previous-status map from the node's
// latest persisted sample, falling back to its in-memory status. This
// prevents replaying a spurious transition across process restarts.
func (e *Engine) seedPreviousStatus(n *model.Node) {
	sample, err := e.store.LatestProbeSample(n.ID)
	if err != nil {
		log.Printf("[engine] warning: latest sample lookup failed for node %d: %v", n.ID, err)
		e.prevStatus[n.ID] = n.Status
		// Unknown history: assume sampled so a duplicate first sample is
		// not written next to an existing one.
		e.sampled[n.ID] = true
		return
	}
	if sample != nil {
		e.prevStatus[n.ID] = sample.Status
		e.sampled[n.ID] = true
		return
	}
	e.prevStatus[n.ID] = n.Status
	e.sampled[n.ID] = false
}

// drainCommands applies all pending configuration commands without blocking.
func (e *Engine) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			e.applyCommand(cmd)
		default:
			return
		}
	}
}

func (e *Engine) applyCommand(cmd ConfigUpdate) {
	switch cmd.Op {
	case OpAdd:
		if cmd.Node == nil {
			return
		}
		if _, exists := e.working[cmd.Node.ID]; exists {
			return
		}
		n := cmd.Node.Clone()
		e.working[n.ID] = &n
		e.seedPreviousStatus(&n)

	case OpUpdate:
		if cmd.Node == nil {
			return
		}
		current, exists := e.working[cmd.Node.ID]
		if !exists {
			log.Printf("[engine] update for unknown node %d ignored", cmd.Node.ID)
			return
		}
		// Config fields overwrite; runtime fields survive from the
		// current entry.
		current.MergeConfig(cmd.Node)
		// Forget the last attempt so the new interval takes effect
		// immediately.
		delete(e.lastAttempt, cmd.Node.ID)

	case OpDelete:
		delete(e.working, cmd.NodeID)
		delete(e.lastAttempt, cmd.NodeID)
		delete(e.prevStatus, cmd.NodeID)
		delete(e.lastTransition, cmd.NodeID)
		delete(e.sampled, cmd.NodeID)
	}
}

// scan visits every node in the working set and probes the ones that are
// due. Returns early when a publish is aborted by shutdown.
func (e *Engine) scan() {
	for _, n := range e.working {
		if !e.due(n) {
			continue
		}
		if !e.probeNode(n) {
			return
		}
		select {
		case <-e.stopCh:
			return
		default:
		}
	}
}

// due reports whether the node's effective interval has elapsed since its
// last probe attempt. The retry interval applies while Degraded.
func (e *Engine) due(n *model.Node) bool {
	last, ok := e.lastAttempt[n.ID]
	if !ok {
		return true
	}
	return e.now().Sub(last) >= n.EffectiveInterval()
}

// probeNode runs one full cycle for a node: probe, state machine, persist,
// publish. Returns false when the loop should terminate (publish aborted by
// shutdown). Store write failures are logged and tolerated: the in-memory
// state advances regardless and the next successful write reconciles.
func (e *Engine) probeNode(n *model.Node) bool {
	e.lastAttempt[n.ID] = e.now()

	out := e.probeFunc(context.Background(), n.Detail)

	prev, hasPrev := e.prevStatus[n.ID]
	newStatus := applyOutcome(n, out.OK)
	nowWall := e.now().UTC()
	transitioned := hasPrev && prev != newStatus

	if transitioned {
		change := model.StatusChange{
			NodeID:    n.ID,
			From:      prev,
			To:        newStatus,
			ChangedAt: nowWall,
		}
		if lt, ok := e.lastTransition[n.ID]; ok {
			d := nowWall.Sub(lt).Milliseconds()
			change.DurationMs = &d
		}
		if _, err := e.store.AddStatusChange(&change); err != nil {
			log.Printf("[engine] warning: persist status change for node %d: %v", n.ID, err)
		}
		e.lastTransition[n.ID] = nowWall
	}

	ms := out.LatencyMs()
	n.Status = newStatus
	n.LastCheckAt = &nowWall
	n.LastResponseTimeMs = &ms
	if err := e.store.UpdateNode(n); err != nil {
		log.Printf("[engine] warning: persist node %d: %v", n.ID, err)
	}

	// Samples are recorded only for the first-ever check and for checks
	// that crossed a transition; everything else is discarded.
	if !e.sampled[n.ID] || transitioned {
		sample := model.ProbeSample{
			NodeID:         n.ID,
			At:             nowWall,
			Status:         newStatus,
			ResponseTimeMs: &ms,
			Detail:         out.Detail,
		}
		if _, err := e.store.AddProbeSample(&sample); err != nil {
			log.Printf("[engine] warning: persist sample for node %d: %v", n.ID, err)
		} else {
			e.sampled[n.ID] = true
		}
	}

	e.prevStatus[n.ID] = newStatus

	return e.publish(n)
}

// publish emits a node-update event. Blocks until the receiver takes it or
// shutdown is signalled; a shutdown abort terminates the loop.
func (e *Engine) publish(n *model.Node) bool {
	select {
	case e.updates <- n.Clone():
		return true
	case <-e.stopCh:
		return false
	}
}

// applyOutcome runs the state machine for one probe outcome, mutating the
// node's consecutive-failure counter and returning the new status:
//
//	any state  + success -> Online, counter reset
//	Online/Degraded + failure -> Degraded until max_check_attempts, then Offline
//	Offline    + failure -> Offline
func applyOutcome(n *model.Node, succeeded bool) model.Status {
	if succeeded {
		n.ConsecutiveFailures = 0
		return model.StatusOnline
	}

	n.ConsecutiveFailures++
	if n.Status == model.StatusOffline {
		return model.StatusOffline
	}
	if n.ConsecutiveFailures < n.MaxCheckAttempts {
		return model.StatusDegraded
	}
	return model.StatusOffline
}
