package av

import (
	"github.com/thesyncim/av/internal/native"
)

// ResamplerBackend identifies a resampler kernel implementation.
type ResamplerBackend uint8

const (
	ResamplerAuto   ResamplerBackend = iota // libswresample when loadable, else soft
	ResamplerSoft                           // pure Go, linear interpolation
	ResamplerFFmpeg                         // libswresample loaded with purego
	backendCount
)

// License represents the software license of a backend.
type License uint8

const (
	LicenseBSD  License = iota // Permissive - no copyleft obligations
	LicenseLGPL                // Weak copyleft - dynamic linking is fine
)

// Permissive returns true if the license has no copyleft obligations.
func (l License) Permissive() bool { return l == LicenseBSD }

func (l License) String() string {
	switch l {
	case LicenseBSD:
		return "BSD"
	case LicenseLGPL:
		return "LGPL"
	default:
		return "unknown"
	}
}

// Features is a bitmask of backend capabilities.
type Features uint32

const (
	FeatureRateConversion   Features = 1 << iota // Sample rate conversion
	FeatureRemix                                 // Channel layout conversion
	FeatureFormatConversion                      // Sample format conversion
	FeatureSincFilter                            // Band-limited interpolation
	FeatureDither                                // Dithering on requantization
)

// Has returns true if all specified features are supported.
func (f Features) Has(feature Features) bool { return f&feature == feature }

type backendMeta struct {
	Name     string
	License  License
	Native   bool
	Features Features
}

const commonFeatures = FeatureRateConversion | FeatureRemix | FeatureFormatConversion

var backendInfo = [backendCount]backendMeta{
	ResamplerAuto:   {native.BackendAuto, LicenseBSD, false, commonFeatures},
	ResamplerSoft:   {native.BackendSoft, LicenseBSD, false, commonFeatures},
	ResamplerFFmpeg: {native.BackendFFmpeg, LicenseLGPL, true, commonFeatures | FeatureSincFilter | FeatureDither},
}

// String returns the backend name used in configuration.
func (b ResamplerBackend) String() string {
	if b >= backendCount {
		return "unknown"
	}
	return backendInfo[b].Name
}

func (b ResamplerBackend) License() License {
	if b >= backendCount {
		return LicenseLGPL
	}
	return backendInfo[b].License
}

func (b ResamplerBackend) Features() Features {
	if b >= backendCount {
		return 0
	}
	return backendInfo[b].Features
}

// Native reports whether the backend needs shared libraries at runtime.
func (b ResamplerBackend) Native() bool {
	return b < backendCount && backendInfo[b].Native
}

// Available returns true if the backend is usable at runtime. Checking
// the ffmpeg backend loads the libraries.
func (b ResamplerBackend) Available() bool {
	switch b {
	case ResamplerAuto, ResamplerSoft:
		return true
	case ResamplerFFmpeg:
		return native.FFmpegAvailable()
	default:
		return false
	}
}

// ParseResamplerBackend looks a backend up by name.
func ParseResamplerBackend(name string) (ResamplerBackend, error) {
	for b := ResamplerBackend(0); b < backendCount; b++ {
		if backendInfo[b].Name == name {
			return b, nil
		}
	}
	return 0, newError(KindInvalidParameters, "parse resampler backend", "unknown backend %q", name)
}

// SetResamplerBackend selects the kernel used by resamplers initialized
// afterwards.
func SetResamplerBackend(name string) error {
	const op = "set resampler backend"
	b, err := ParseResamplerBackend(name)
	if err != nil {
		return err
	}
	if b == ResamplerFFmpeg && !b.Available() {
		e := newError(KindInvalidParameters, op, "ffmpeg backend is not available")
		e.Err = native.LoadFFmpeg()
		return e
	}
	if st := native.SetDefaultResamplerBackend(name); st.Failed() {
		return wrapStatus(KindInvalidParameters, op, st)
	}
	return nil
}

// CurrentResamplerBackend returns the selected kernel.
func CurrentResamplerBackend() ResamplerBackend {
	b, err := ParseResamplerBackend(native.DefaultResamplerBackend())
	if err != nil {
		return ResamplerAuto
	}
	return b
}

// AvailableResamplerBackends lists the backends usable at runtime.
func AvailableResamplerBackends() []ResamplerBackend {
	var out []ResamplerBackend
	for b := ResamplerBackend(0); b < backendCount; b++ {
		if b.Available() {
			out = append(out, b)
		}
	}
	return out
}

// FFmpegVersion is the libavutil version string, or "" when the libraries
// are not loaded.
func FFmpegVersion() string {
	return native.FFmpegVersion()
}
