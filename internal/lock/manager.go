// Package lock implements C10, the Index Lock Manager: a two-layer lock
// that coalesces concurrent indexing requests for the same root, both
// within one process (via a one-shot broadcast) and across processes (via
// an OS advisory file lock).
package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
)

// MaxOpDuration is the staleness threshold: an in-process op still marked
// active past this long is assumed to belong to a crashed goroutine.
const MaxOpDuration = 30 * time.Minute

// FilesystemLockTimeout bounds how long AcquireFilesystemLock waits for a
// different process's lock to be released.
const FilesystemLockTimeout = 30 * time.Minute

// Outcome is the result kind of TryAcquire.
type Outcome int

const (
	// Acquired means the caller now owns both lock layers and must do the
	// work, then call Guard.BroadcastResult and Guard.Release.
	Acquired Outcome = iota
	// WaitForResult means a same-process operation is in flight; wait on
	// Op's channel for its result.
	WaitForResult
	// WaitForFilesystemLock means a different process holds the file lock;
	// the caller should retry via AcquireFilesystemLock.
	WaitForFilesystemLock
)

// InProgressOp tracks one in-flight (or just-finished) indexing operation
// for a canonical path, with a one-shot broadcast of its eventual result.
type InProgressOp[T any] struct {
	done      chan struct{}
	result    T
	active    atomic.Bool
	startedAt time.Time
}

func newInProgressOp[T any]() *InProgressOp[T] {
	op := &InProgressOp[T]{done: make(chan struct{}), startedAt: time.Now()}
	op.active.Store(true)
	return op
}

// Done returns a channel closed once the op's result is available.
func (op *InProgressOp[T]) Done() <-chan struct{} {
	return op.done
}

// Result returns the broadcast result. Only valid after Done() is closed.
func (op *InProgressOp[T]) Result() T {
	return op.result
}

// Wait blocks until the op completes or ctx is cancelled.
func (op *InProgressOp[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-op.done:
		return op.result, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// isStale reports whether op may be safely evicted and replaced: either it
// finished and is awaiting cleanup (active=false), or it has been running
// long enough to be presumed crashed.
func (op *InProgressOp[T]) isStale() bool {
	if !op.active.Load() {
		return true
	}
	return time.Since(op.startedAt) > MaxOpDuration
}

// AcquireResponse is the result of TryAcquire.
type AcquireResponse[T any] struct {
	Outcome  Outcome
	Guard    *Guard[T]        // set iff Outcome == Acquired
	Op       *InProgressOp[T] // set iff Outcome == WaitForResult
	LockPath string           // set iff Outcome == WaitForFilesystemLock
}

// Manager owns both lock layers for a type of result T (typically the
// indexing pipeline's response type).
type Manager[T any] struct {
	mu      sync.RWMutex
	ops     map[string]*InProgressOp[T]
	lockDir string
}

// NewManager returns a lock manager whose filesystem sentinel files live
// under lockDir.
func NewManager[T any](lockDir string) *Manager[T] {
	return &Manager[T]{ops: make(map[string]*InProgressOp[T]), lockDir: lockDir}
}

// TryAcquire implements the fast path: same-process coalescing first,
// then a non-blocking attempt at the filesystem lock.
func (m *Manager[T]) TryAcquire(path string) (AcquireResponse[T], error) {
	canon := canonicalize(path)

	m.mu.Lock()
	if op, ok := m.ops[canon]; ok {
		if !op.isStale() {
			m.mu.Unlock()
			return AcquireResponse[T]{Outcome: WaitForResult, Op: op}, nil
		}
		delete(m.ops, canon)
	}
	m.mu.Unlock()

	if err := os.MkdirAll(m.lockDir, 0o755); err != nil {
		return AcquireResponse[T]{}, fmt.Errorf("create lock directory: %w", err)
	}

	fsLock := flock.New(m.lockFilePath(canon))
	acquired, err := fsLock.TryLock()
	if err != nil {
		return AcquireResponse[T]{}, fmt.Errorf("try acquire filesystem lock: %w", err)
	}
	if !acquired {
		return AcquireResponse[T]{Outcome: WaitForFilesystemLock, LockPath: fsLock.Path()}, nil
	}

	op := newInProgressOp[T]()
	m.mu.Lock()
	m.ops[canon] = op
	m.mu.Unlock()

	guard := &Guard[T]{path: canon, manager: m, op: op, fsLock: fsLock}
	runtime.SetFinalizer(guard, (*Guard[T]).finalize)
	return AcquireResponse[T]{Outcome: Acquired, Guard: guard}, nil
}

// AcquireFilesystemLock blocks (with retries) until the filesystem lock for
// path is obtained or timeout elapses, for the WaitForFilesystemLock path.
func (m *Manager[T]) AcquireFilesystemLock(path string, timeout time.Duration) (*flock.Flock, bool, error) {
	canon := canonicalize(path)
	if err := os.MkdirAll(m.lockDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create lock directory: %w", err)
	}

	fsLock := flock.New(m.lockFilePath(canon))
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	acquired, err := fsLock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return nil, false, fmt.Errorf("acquire filesystem lock: %w", err)
	}
	return fsLock, acquired, nil
}

func (m *Manager[T]) lockFilePath(canon string) string {
	sum := sha256.Sum256([]byte(canon))
	return filepath.Join(m.lockDir, "idx_"+hex.EncodeToString(sum[:])[:16]+".lock")
}

func canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// Guard is held by the caller that won Acquired; it owns both lock layers
// for the duration of an indexing operation.
type Guard[T any] struct {
	path     string
	manager  *Manager[T]
	op       *InProgressOp[T]
	fsLock   *flock.Flock
	released bool
	mu       sync.Mutex
}

// BroadcastResult publishes result to every same-process waiter and marks
// the operation inactive. Safe to call at most once.
func (g *Guard[T]) BroadcastResult(result T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.op.done:
		return
	default:
	}
	g.op.result = result
	g.op.active.Store(false)
	close(g.op.done)
}

// Release removes the op from the in-process map and releases the
// filesystem lock. Must be called after BroadcastResult. Safe to call more
// than once.
func (g *Guard[T]) Release() error {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return nil
	}
	g.released = true
	g.mu.Unlock()

	g.manager.mu.Lock()
	if g.manager.ops[g.path] == g.op {
		delete(g.manager.ops, g.path)
	}
	g.manager.mu.Unlock()

	runtime.SetFinalizer(g, nil)
	return g.fsLock.Unlock()
}

// finalize is the backstop for a Guard abandoned without an explicit
// Release - e.g. a panic unwinding past the defer that would have called
// it. It mirrors the source implementation's Drop impl: mark the op
// inactive and broadcast the zero value of T so waiters never hang,
// since Go has no deterministic destructors to rely on instead.
func (g *Guard[T]) finalize() {
	g.mu.Lock()
	released := g.released
	g.mu.Unlock()
	if released {
		return
	}

	select {
	case <-g.op.done:
	default:
		var zero T
		g.BroadcastResult(zero)
	}

	go func() {
		g.manager.mu.Lock()
		if g.manager.ops[g.path] == g.op {
			delete(g.manager.ops, g.path)
		}
		g.manager.mu.Unlock()
		_ = g.fsLock.Unlock()
	}()
}
