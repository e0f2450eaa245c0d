package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_TryAcquireGrantsFreshLock(t *testing.T) {
	m := NewManager[string](t.TempDir())
	resp, err := m.TryAcquire("/repo/root")
	require.NoError(t, err)
	require.Equal(t, Acquired, resp.Outcome)
	require.NotNil(t, resp.Guard)

	resp.Guard.BroadcastResult("done")
	require.NoError(t, resp.Guard.Release())
}

func TestManager_TryAcquireSameProcessWaitsForResult(t *testing.T) {
	m := NewManager[string](t.TempDir())

	first, err := m.TryAcquire("/repo/root")
	require.NoError(t, err)
	require.Equal(t, Acquired, first.Outcome)

	second, err := m.TryAcquire("/repo/root")
	require.NoError(t, err)
	require.Equal(t, WaitForResult, second.Outcome)
	require.NotNil(t, second.Op)

	go func() {
		first.Guard.BroadcastResult("finished")
		_ = first.Guard.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := second.Op.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "finished", result)
}

func TestManager_ReleaseRemovesOpAllowingReacquire(t *testing.T) {
	m := NewManager[string](t.TempDir())

	first, err := m.TryAcquire("/repo/root")
	require.NoError(t, err)
	first.Guard.BroadcastResult("done")
	require.NoError(t, first.Guard.Release())

	second, err := m.TryAcquire("/repo/root")
	require.NoError(t, err)
	assert.Equal(t, Acquired, second.Outcome)
	second.Guard.BroadcastResult("done")
	require.NoError(t, second.Guard.Release())
}

func TestManager_StaleOpIsEvictedOnNextAcquire(t *testing.T) {
	m := NewManager[string](t.TempDir())

	first, err := m.TryAcquire("/repo/root")
	require.NoError(t, err)

	m.mu.Lock()
	op := m.ops[canonicalize("/repo/root")]
	op.startedAt = time.Now().Add(-31 * time.Minute)
	m.mu.Unlock()
	_ = first

	second, err := m.TryAcquire("/repo/root")
	require.NoError(t, err)
	// The stale in-process op is evicted, but the first guard's OS-level
	// file lock is still held, so the fast path falls through to the
	// filesystem-contention outcome.
	assert.Equal(t, WaitForFilesystemLock, second.Outcome)
}

func TestInProgressOp_IsStale(t *testing.T) {
	op := newInProgressOp[string]()
	assert.False(t, op.isStale())

	op.active.Store(false)
	assert.True(t, op.isStale())

	op2 := newInProgressOp[string]()
	op2.startedAt = time.Now().Add(-31 * time.Minute)
	assert.True(t, op2.isStale())
}

func TestManager_DifferentProcessFileLockContention(t *testing.T) {
	dir := t.TempDir()
	m1 := NewManager[string](dir)
	m2 := NewManager[string](dir)

	resp1, err := m1.TryAcquire("/repo/root")
	require.NoError(t, err)
	require.Equal(t, Acquired, resp1.Outcome)

	resp2, err := m2.TryAcquire("/repo/root")
	require.NoError(t, err)
	assert.Equal(t, WaitForFilesystemLock, resp2.Outcome)
	assert.NotEmpty(t, resp2.LockPath)

	resp1.Guard.BroadcastResult("done")
	require.NoError(t, resp1.Guard.Release())
}

func TestManager_AcquireFilesystemLockTimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	m1 := NewManager[string](dir)
	m2 := NewManager[string](dir)

	resp1, err := m1.TryAcquire("/repo/root")
	require.NoError(t, err)
	require.Equal(t, Acquired, resp1.Outcome)
	defer func() {
		resp1.Guard.BroadcastResult("done")
		_ = resp1.Guard.Release()
	}()

	_, acquired, err := m2.AcquireFilesystemLock("/repo/root", 100*time.Millisecond)
	require.Error(t, err)
	assert.False(t, acquired)
}

func TestManager_LockFilePathIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	m := NewManager[string](dir)
	a := m.lockFilePath(canonicalize("/repo/root"))
	b := m.lockFilePath(canonicalize("/repo/root"))
	assert.Equal(t, a, b)
	assert.Equal(t, dir, filepath.Dir(a))
}
