package native

import "sync"

// LockOp is AVLockOp.
type LockOp int

const (
	LockCreate LockOp = iota
	LockObtain
	LockRelease
	LockDestroy
)

// LockManager is the av_lockmgr_register callback: it receives a slot that
// holds an opaque mutex handle and returns non-zero on failure.
type LockManager func(mutex *any, op LockOp) int

// lockMgrMu is held for reading across every obtain/release cycle, so a
// manager is never replaced while its mutex is held.
var (
	lockMgrMu    sync.RWMutex
	lockMgr      LockManager
	codecMutex   any
	fallbackLock sync.Mutex
)

// RegisterLockManager is av_lockmgr_register. Passing nil uninstalls the
// current manager after destroying its mutex.
func RegisterLockManager(cb LockManager) Status {
	lockMgrMu.Lock()
	defer lockMgrMu.Unlock()

	if lockMgr != nil {
		lockMgr(&codecMutex, LockDestroy)
		lockMgr = nil
		codecMutex = nil
	}
	if cb == nil {
		return OK
	}
	if cb(&codecMutex, LockCreate) != 0 {
		codecMutex = nil
		return EINVAL
	}
	lockMgr = cb
	return OK
}

// lockCodecs guards codec open/close and registry changes. It returns the
// matching unlock function.
func lockCodecs() (unlock func(), st Status) {
	lockMgrMu.RLock()
	cb := lockMgr
	if cb == nil {
		fallbackLock.Lock()
		return func() {
			fallbackLock.Unlock()
			lockMgrMu.RUnlock()
		}, OK
	}
	if cb(&codecMutex, LockObtain) != 0 {
		lockMgrMu.RUnlock()
		return func() {}, EINVAL
	}
	return func() {
		cb(&codecMutex, LockRelease)
		lockMgrMu.RUnlock()
	}, OK
}
