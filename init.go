package av

import (
	"sync"

	"github.com/thesyncim/av/internal/native"
)

var initOnce sync.Once

// Init performs process-wide setup: it installs the codec lock manager,
// routes native log output into the package logger and, on POSIX systems,
// ignores SIGPIPE so a closed pipe surfaces as a write error. Calls after
// the first are no-ops.
func Init() {
	initOnce.Do(func() {
		if st := native.RegisterLockManager(lockManager); st.Failed() {
			componentLogger("init").WithError(st).Error("lock manager registration failed")
		}
		native.SetLogCallback(forwardNativeLog)
		ignoreSIGPIPE()
		componentLogger("init").WithField("resampler_backend", CurrentResamplerBackend().String()).Debug("initialized")
	})
}

// InitWithConfig applies cfg and then calls Init.
func InitWithConfig(cfg *Config) error {
	if err := Configure(cfg); err != nil {
		return err
	}
	Init()
	return nil
}

// lockManager backs the native lock slot with a sync.Mutex.
func lockManager(slot *any, op native.LockOp) int {
	if slot == nil {
		return 1
	}
	switch op {
	case native.LockCreate:
		*slot = new(sync.Mutex)
	case native.LockObtain:
		m, ok := (*slot).(*sync.Mutex)
		if !ok {
			return 1
		}
		m.Lock()
	case native.LockRelease:
		m, ok := (*slot).(*sync.Mutex)
		if !ok {
			return 1
		}
		m.Unlock()
	case native.LockDestroy:
		*slot = nil
	}
	return 0
}
