package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/adalundhe/scriptorium/core/errors"
)

// BusyPolicy decides what a turn does when its session is already
// processing another turn.
type BusyPolicy int

const (
	// BusyWait queues the turn behind the active one. Default.
	BusyWait BusyPolicy = iota

	// BusyReject fails the turn immediately with a session_busy error.
	BusyReject
)

// sessionLocks serializes turns per session id. Different sessions
// never contend; turns on the same session run one at a time in
// arrival order.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire takes the lock for a session id under the given policy. The
// returned release func must be called exactly once.
func (l *sessionLocks) acquire(ctx context.Context, id string, policy BusyPolicy) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	if policy == BusyReject {
		select {
		case lock.ch <- struct{}{}:
		default:
			l.release(id, lock, false)
			return nil, errors.New(errors.ClassSessionBusy,
				fmt.Sprintf("session %s is processing another message", id), nil)
		}
	} else {
		select {
		case lock.ch <- struct{}{}:
		case <-ctx.Done():
			l.release(id, lock, false)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.release(id, lock, true)
		})
	}, nil
}

func (l *sessionLocks) release(id string, lock *sessionLock, held bool) {
	if held {
		<-lock.ch
	}

	l.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()
}
