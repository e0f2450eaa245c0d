package index

import (
	"context"
	"fmt"
	"time"

	ragerrors "github.com/ragctl/ragcore/internal/errors"
	"github.com/ragctl/ragcore/internal/lock"
)

// differentProcessWaitTimeout bounds how long smart_index waits for a
// different process's filesystem lock; a wait that runs out fails with a
// lock-timeout error.
const differentProcessWaitTimeout = 30 * time.Minute

// SmartRunner wraps a Runner with C10's lock coordination: concurrent
// requests for the same root coalesce onto a single run, self-heal from a
// prior run that crashed mid-write, and choose incremental vs. full
// automatically.
type SmartRunner struct {
	*Runner
	locks *lock.Manager[smartResult]
}

// NewSmartRunner wires a Runner with a lock manager whose sentinel files
// live under lockDir.
func NewSmartRunner(runner *Runner, lockDir string) *SmartRunner {
	return &SmartRunner{Runner: runner, locks: lock.NewManager[smartResult](lockDir)}
}

// SmartIndex implements smart_index: acquire the root's lock, self-heal a
// dirty cache entry by clearing it and running full, otherwise dispatch to
// incremental or full based on whether the root has ever been indexed, and
// leave the dirty flag set on failure or cancellation so the next run
// knows to self-heal.
func (s *SmartRunner) SmartIndex(ctx context.Context, req Request) (Response, error) {
	root := canonicalRoot(req.RootDir)

	resp, err := s.tryAcquireAndRun(ctx, req, root)
	if err != lockRetry {
		return resp, err
	}

	fsLock, acquired, err := s.locks.AcquireFilesystemLock(root, differentProcessWaitTimeout)
	if err != nil {
		return Response{}, ragerrors.LockTimeout(fmt.Sprintf("acquire filesystem lock for %s", root))
	}
	if !acquired {
		return Response{}, nil
	}
	defer func() { _ = fsLock.Unlock() }()

	return s.runDispatched(ctx, req, root)
}

// lockRetry is a sentinel returned by tryAcquireAndRun to signal "the
// caller must fall through to the blocking filesystem-lock path", since a
// nil Response/nil error pair would be ambiguous with a genuine zero-work
// result.
var lockRetry = fmt.Errorf("index: retry via filesystem lock")

func (s *SmartRunner) tryAcquireAndRun(ctx context.Context, req Request, root string) (Response, error) {
	acq, err := s.locks.TryAcquire(root)
	if err != nil {
		return Response{}, ragerrors.IO("acquire index lock", err)
	}

	switch acq.Outcome {
	case lock.WaitForResult:
		result, err := acq.Op.Wait(ctx)
		if err != nil {
			return Response{}, ragerrors.Cancelled("cancelled while waiting for in-flight index run")
		}
		return result.Response, result.Err

	case lock.WaitForFilesystemLock:
		return Response{}, lockRetry

	default: // lock.Acquired
		resp, runErr := s.runDispatched(ctx, req, root)
		acq.Guard.BroadcastResult(smartResult{Response: resp, Err: runErr})
		if releaseErr := acq.Guard.Release(); releaseErr != nil && runErr == nil {
			runErr = ragerrors.IO("release index lock", releaseErr)
		}
		return resp, runErr
	}
}

// runDispatched implements the dirty-recovery and incremental-vs-full
// choice once the lock (of either kind) is held.
func (s *SmartRunner) runDispatched(ctx context.Context, req Request, root string) (Response, error) {
	wasDirty := s.cache.IsDirty(root)
	existing, hasExisting := s.cache.GetRoot(root)

	if wasDirty {
		for relPath := range existing {
			if err := s.index.DeleteByFile(relPath); err != nil {
				return Response{}, ragerrors.IO(fmt.Sprintf("clear stale rows for %s", relPath), err)
			}
		}
		s.cache.RemoveRoot(root)
		if err := s.cache.Save(s.cachePath); err != nil {
			return Response{}, ragerrors.IO("save hash cache", err)
		}
		hasExisting = false
	}

	s.cache.MarkDirty(root)
	if err := s.cache.Save(s.cachePath); err != nil {
		return Response{}, ragerrors.IO("save hash cache", err)
	}

	var (
		resp Response
		err  error
	)
	if hasExisting && !wasDirty {
		resp, err = s.IncrementalUpdate(ctx, req)
	} else {
		resp, err = s.FullIndex(ctx, req)
	}

	if err != nil {
		// Leave the dirty flag set: the next smart_index call will self-heal.
		return resp, err
	}

	s.cache.ClearDirty(root)
	if saveErr := s.cache.Save(s.cachePath); saveErr != nil {
		return resp, ragerrors.IO("save hash cache", saveErr)
	}
	return resp, nil
}
