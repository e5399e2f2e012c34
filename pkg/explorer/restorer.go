package explorer

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NuranDp/vscode-solution-explorer/pkg/debug"
	"github.com/NuranDp/vscode-solution-explorer/pkg/metrics"
	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// Phase identifies the stage a restore session is in.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoadingQueue
	PhaseExpandingBatch
	PhaseValidating
	PhaseRestoringFocus
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoadingQueue:
		return "loading-queue"
	case PhaseExpandingBatch:
		return "expanding-batch"
	case PhaseValidating:
		return "validating"
	case PhaseRestoringFocus:
		return "restoring-focus"
	default:
		return "unknown"
	}
}

// Session tuning defaults. Each has an SLNX_* env override, read once
// at construction.
const (
	defaultBatchWidth   = 20
	defaultBatchPause   = 15 * time.Millisecond
	defaultMaxDepth     = 10
	defaultRevealDelay  = 100 * time.Millisecond
	defaultMinIndicator = 500 * time.Millisecond
)

// Restorer replays persisted expansion state onto a freshly built tree.
//
// One session runs at a time. A session walks the saved expanded set
// level by level in bounded concurrent batches, validates the resulting
// ids, then restores the last focused node (exact id first, longest
// prefix as fallback). Every step is best-effort: failures are logged
// and the session presses on, because a partially restored tree beats
// no tree.
//
// Sessions are stale-tolerant by snapshotting the collection's roots up
// front. A Reset mid-session leaves the session working old instances;
// it completes without error and its results are simply invisible. The
// caller that triggered the rebuild requests a fresh session afterwards
// via the pending flag.
type Restorer struct {
	collection *tree.Collection
	state      *tree.ExpansionState
	host       Host

	batchWidth   int
	batchPause   time.Duration
	maxDepth     int
	revealDelay  time.Duration
	minIndicator time.Duration

	mu         sync.Mutex
	phase      Phase
	active     bool
	pending    bool
	pendingCtx context.Context
	done       chan struct{}

	revealing atomic.Bool
}

// closedSession is handed to callers when there is nothing to restore.
var closedSession = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// NewRestorer creates a restorer over the given collection and state.
// A nil host disables reveals and the working indicator.
func NewRestorer(collection *tree.Collection, state *tree.ExpansionState, host Host) *Restorer {
	if host == nil {
		host = NopHost{}
	}
	return &Restorer{
		collection:   collection,
		state:        state,
		host:         host,
		batchWidth:   envPositiveIntOr("SLNX_RESTORE_BATCH_WIDTH", defaultBatchWidth),
		batchPause:   envDurationMilliseconds("SLNX_RESTORE_BATCH_PAUSE_MS", defaultBatchPause),
		maxDepth:     envPositiveIntOr("SLNX_RESTORE_MAX_DEPTH", defaultMaxDepth),
		revealDelay:  envDurationMilliseconds("SLNX_RESTORE_REVEAL_DELAY_MS", defaultRevealDelay),
		minIndicator: envDurationMilliseconds("SLNX_INDICATOR_MIN_MS", defaultMinIndicator),
	}
}

// Restore starts a session, or joins the one already running.
//
// The returned channel closes when that session finishes. When a call
// arrives mid-session it does not race a second session into existence:
// it flags the active one and gets the active session's channel, and
// once that session ends a fresh one starts against the then-current
// collection. With nothing saved to restore there is no session at all
// and the returned channel is already closed.
func (r *Restorer) Restore(ctx context.Context) <-chan struct{} {
	r.mu.Lock()
	if r.active {
		r.pending = true
		r.pendingCtx = ctx
		done := r.done
		r.mu.Unlock()
		debug.Log("restore requested mid-session, joining active session")
		return done
	}
	if !r.state.HasExpanded() {
		r.mu.Unlock()
		return closedSession
	}
	done := make(chan struct{})
	r.active = true
	r.done = done
	r.mu.Unlock()

	go r.run(ctx, done)
	return done
}

// Phase returns the current session phase, PhaseIdle between sessions.
func (r *Restorer) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Revealing reports whether a restore-driven reveal is in flight. The
// selection hook consults this so a reveal never re-saves the focused
// id it is in the middle of restoring.
func (r *Restorer) Revealing() bool {
	return r.revealing.Load()
}

func (r *Restorer) setPhase(p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
	debug.Log("restore phase: %s", p)
}

// run executes one session. The deferred epilogue is unconditional:
// whatever happens inside, the phase returns to idle, the indicator is
// hidden, waiters are released, and a pending request is relaunched.
func (r *Restorer) run(ctx context.Context, done chan struct{}) {
	defer metrics.Timer(metrics.RestoreSession)()

	hide := r.showWorking("Restoring solution tree")
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("warning: restore session panic: %v", rec)
		}
		r.setPhase(PhaseIdle)
		hide()
		close(done)
		r.finish()
	}()

	r.setPhase(PhaseLoadingQueue)
	queue := r.collection.Roots()
	if len(queue) == 0 {
		return
	}
	saved := make(map[string]struct{})
	for _, id := range r.state.ExpandedIDs() {
		saved[id] = struct{}{}
	}

	r.setPhase(PhaseExpandingBatch)
	r.expandLevels(ctx, queue, saved)

	r.setPhase(PhaseValidating)
	r.validateIDs(queue)

	r.setPhase(PhaseRestoringFocus)
	r.restoreFocus(ctx)
}

// finish releases the session slot and relaunches if a request came in
// while the session ran.
func (r *Restorer) finish() {
	r.mu.Lock()
	r.active = false
	r.done = nil
	pending := r.pending
	pctx := r.pendingCtx
	r.pending = false
	r.pendingCtx = nil
	r.mu.Unlock()

	if pending {
		if pctx == nil {
			pctx = context.Background()
		}
		debug.Log("launching pending restore session")
		r.Restore(pctx)
	}
}

// expandLevels processes the queue in fixed-width batches. Within a
// batch, nodes run concurrently; a node in the saved set is marked
// expanded and its children join the next level, everything else is
// dropped, which keeps the work proportional to the saved set rather
// than the tree. Batch N settles before batch N+1 starts, with a timed
// yield in between so the host stays responsive. Depth is capped
// against pathological trees.
func (r *Restorer) expandLevels(ctx context.Context, queue []*tree.Node, saved map[string]struct{}) {
	for depth := 0; len(queue) > 0; depth++ {
		if depth >= r.maxDepth {
			log.Printf("warning: expansion stopped at depth %d with %d nodes unvisited", r.maxDepth, len(queue))
			return
		}
		if ctx.Err() != nil {
			return
		}

		var next []*tree.Node
		var nextMu sync.Mutex

		for start := 0; start < len(queue); start += r.batchWidth {
			end := min(start+r.batchWidth, len(queue))

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(r.batchWidth)
			for _, n := range queue[start:end] {
				g.Go(func() error {
					if _, ok := saved[n.ID()]; !ok {
						return nil
					}
					n.SetState(tree.Expanded)
					children, err := n.GetChildren(gctx)
					if err != nil {
						// Branch abandoned, session continues.
						log.Printf("warning: restoring children of %s: %v", n.ID(), err)
						return nil
					}
					if len(children) > 0 {
						nextMu.Lock()
						next = append(next, children...)
						nextMu.Unlock()
					}
					return nil
				})
			}
			_ = g.Wait()

			if end < len(queue) || len(next) > 0 {
				sleepCtx(ctx, r.batchPause)
			}
		}

		queue = next
	}
}

// validateIDs walks the materialized portion of the session's tree and
// logs duplicate ids. Diagnostic only: duplicates corrupt saved-state
// fidelity but the tree still renders.
func (r *Restorer) validateIDs(roots []*tree.Node) {
	seen := make(map[string]struct{})
	for _, root := range roots {
		stack := []*tree.Node{root}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if _, dup := seen[cur.ID()]; dup {
				log.Printf("warning: duplicate node id %q", cur.ID())
			} else {
				seen[cur.ID()] = struct{}{}
			}
			children := cur.LoadedChildren()
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
}

// restoreFocus re-reveals the last focused node: exact id first, then
// the closest ancestor by id prefix for targets deleted or renamed
// since the id was saved. The reveal itself never selects, and a short
// settle delay lets the host realize freshly materialized rows before
// being asked to scroll to one.
func (r *Restorer) restoreFocus(ctx context.Context) {
	target := r.state.LastFocused()
	if target == "" {
		return
	}

	node, visited := r.collection.FindAndExpandByID(ctx, target)
	if node == nil {
		debug.Log("focus id %s missing after %d visits, trying prefix fallback", target, len(visited))
		node = r.collection.FindClosestAncestorByIDPrefix(ctx, target)
	}
	if node == nil {
		debug.Log("focus id %s has no surviving ancestor", target)
		return
	}

	sleepCtx(ctx, r.revealDelay)

	r.revealing.Store(true)
	defer r.revealing.Store(false)
	// Focus puts the cursor back without recording a new selection.
	if err := r.host.Reveal(ctx, node, RevealOptions{Focus: true}); err != nil {
		log.Printf("warning: revealing %s: %v", node.ID(), err)
	}
}

// showWorking starts the host's busy indicator and returns a hide
// function that enforces a minimum visible duration, so sub-second
// sessions do not flicker the indicator.
func (r *Restorer) showWorking(label string) func() {
	hide := r.host.ShowWorking(label)
	if hide == nil {
		hide = func() {}
	}
	start := time.Now()
	return func() {
		if remaining := r.minIndicator - time.Since(start); remaining > 0 {
			time.AfterFunc(remaining, hide)
			return
		}
		hide()
	}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func envPositiveIntOr(name string, fallback int) int {
	n, ok := envPositiveInt(name)
	if !ok {
		return fallback
	}
	return n
}

func envPositiveInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envDurationMilliseconds(name string, fallback time.Duration) time.Duration {
	n, ok := envPositiveInt(name)
	if !ok {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}
