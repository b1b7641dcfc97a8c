package native

import (
	"sort"
	"sync"
)

// Resampler is the SwrContext surface the wrapper drives: allocate, set
// options, init, query delay, convert, free.
type Resampler interface {
	// SetInt is av_opt_set_int.
	SetInt(name string, v int64) Status
	// Set is av_opt_set.
	Set(name, value string) Status
	// Init is swr_init.
	Init() Status
	// IsInitialized is swr_is_initialized.
	IsInitialized() bool
	// Delay is swr_get_delay: buffered input expressed in 1/base units.
	Delay(base int64) int64
	// ConvertFrame is swr_convert_frame. A nil in flushes, a zero-sample
	// in converts what is buffered, a nil out only buffers. out.NbSamples is the capacity on entry and the number of
	// produced samples on return.
	ConvertFrame(out, in *Frame) Status
	// Free is swr_free.
	Free()
}

// ResamplerFactory allocates a fresh, unconfigured kernel.
type ResamplerFactory func() (Resampler, Status)

// Resampler backend names.
const (
	BackendAuto   = "auto"
	BackendSoft   = "soft"
	BackendFFmpeg = "ffmpeg"
)

var (
	backendMu      sync.RWMutex
	backends       = map[string]ResamplerFactory{BackendSoft: newSoftResampler}
	defaultBackend = BackendAuto
)

// RegisterResamplerBackend adds or replaces a named kernel implementation.
func RegisterResamplerBackend(name string, f ResamplerFactory) {
	unlock, _ := lockCodecs()
	defer unlock()
	backendMu.Lock()
	defer backendMu.Unlock()
	backends[name] = f
}

// ResamplerBackends lists the registered kernels.
func ResamplerBackends() []string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SetDefaultResamplerBackend selects the kernel ResamplerAlloc uses.
func SetDefaultResamplerBackend(name string) Status {
	backendMu.Lock()
	defer backendMu.Unlock()
	if name != BackendAuto {
		if _, ok := backends[name]; !ok {
			return OptionNotFound
		}
	}
	defaultBackend = name
	return OK
}

// DefaultResamplerBackend returns the configured kernel name.
func DefaultResamplerBackend() string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return defaultBackend
}

// ResamplerAlloc is swr_alloc on the configured backend. "auto" prefers
// libswresample when it can be loaded.
func ResamplerAlloc() (Resampler, Status) {
	backendMu.RLock()
	name := defaultBackend
	ffmpeg, hasFFmpeg := backends[BackendFFmpeg]
	soft := backends[BackendSoft]
	f := backends[name]
	backendMu.RUnlock()

	if name == BackendAuto {
		if hasFFmpeg {
			if r, st := ffmpeg(); !st.Failed() {
				return r, st
			}
		}
		return soft()
	}
	if f == nil {
		return nil, OptionNotFound
	}
	return f()
}
