//go:build darwin || linux

// libswresample/libavutil bindings loaded at runtime with purego. Only
// primitive-argument entry points are bound so no struct layouts are needed.

package native

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	ffmpegOnce    sync.Once
	ffmpegInitErr error
	ffmpegLibPath string

	avutilHandle uintptr
	swrHandle    uintptr
)

var (
	swrAlloc      func() uintptr
	swrInit       func(s uintptr) int32
	swrIsInit     func(s uintptr) int32
	swrGetDelay   func(s uintptr, base int64) int64
	swrConvert    func(s uintptr, out uintptr, outCount int32, in uintptr, inCount int32) int32
	swrFree       func(ps uintptr)
	avOptSetInt   func(obj uintptr, name string, val int64, flags int32) int32
	avOptSet      func(obj uintptr, name string, val string, flags int32) int32
	avStrerror    func(errnum int32, buf *byte, size uintptr) int32
	avLogSetLevel func(level int32)
	avVersionInfo func() uintptr
)

// SetFFmpegLibPath sets a directory searched first for the FFmpeg
// libraries. It has no effect once loading was attempted.
func SetFFmpegLibPath(dir string) {
	ffmpegLibPath = dir
}

// LoadFFmpeg loads libavutil and libswresample once. Later calls return the
// first result.
func LoadFFmpeg() error {
	ffmpegOnce.Do(func() {
		ffmpegInitErr = loadFFmpegLibs()
		if ffmpegInitErr != nil {
			return
		}
		ffmpegStrerror = ffmpegStrerrorImpl
		logMu.Lock()
		ffmpegSetLogLevel = func(level int) { avLogSetLevel(int32(level)) }
		logMu.Unlock()
		avLogSetLevel(int32(GetLogLevel()))
	})
	return ffmpegInitErr
}

// FFmpegAvailable reports whether the FFmpeg libraries could be loaded.
func FFmpegAvailable() bool { return LoadFFmpeg() == nil }

// FFmpegVersion returns av_version_info, or "" when not loaded.
func FFmpegVersion() string {
	if !FFmpegAvailable() {
		return ""
	}
	return goStringFromPtr(avVersionInfo())
}

func loadFFmpegLibs() error {
	var err error
	if avutilHandle, err = dlopenFirst(libPaths("avutil", []string{"60", "59", "58", "57", "56"})); err != nil {
		return fmt.Errorf("failed to load libavutil: %w", err)
	}
	if swrHandle, err = dlopenFirst(libPaths("swresample", []string{"6", "5", "4", "3"})); err != nil {
		return fmt.Errorf("failed to load libswresample: %w", err)
	}

	purego.RegisterLibFunc(&avOptSetInt, avutilHandle, "av_opt_set_int")
	purego.RegisterLibFunc(&avOptSet, avutilHandle, "av_opt_set")
	purego.RegisterLibFunc(&avStrerror, avutilHandle, "av_strerror")
	purego.RegisterLibFunc(&avLogSetLevel, avutilHandle, "av_log_set_level")
	purego.RegisterLibFunc(&avVersionInfo, avutilHandle, "av_version_info")

	purego.RegisterLibFunc(&swrAlloc, swrHandle, "swr_alloc")
	purego.RegisterLibFunc(&swrInit, swrHandle, "swr_init")
	purego.RegisterLibFunc(&swrIsInit, swrHandle, "swr_is_initialized")
	purego.RegisterLibFunc(&swrGetDelay, swrHandle, "swr_get_delay")
	purego.RegisterLibFunc(&swrConvert, swrHandle, "swr_convert")
	purego.RegisterLibFunc(&swrFree, swrHandle, "swr_free")
	return nil
}

func dlopenFirst(paths []string) (uintptr, error) {
	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return handle, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate paths")
	}
	return 0, lastErr
}

func libPaths(name string, majors []string) []string {
	var names []string
	if runtime.GOOS == "darwin" {
		for _, m := range majors {
			names = append(names, "lib"+name+"."+m+".dylib")
		}
		names = append(names, "lib"+name+".dylib")
	} else {
		for _, m := range majors {
			names = append(names, "lib"+name+".so."+m)
		}
		names = append(names, "lib"+name+".so")
	}

	var dirs []string
	if ffmpegLibPath != "" {
		dirs = append(dirs, ffmpegLibPath)
	}
	if env := os.Getenv("AV_FFMPEG_LIB_PATH"); env != "" {
		dirs = append(dirs, env)
	}
	if root := findModuleRoot(); root != "" {
		dirs = append(dirs, filepath.Join(root, "build"))
	}
	switch runtime.GOOS {
	case "darwin":
		dirs = append(dirs, "/opt/homebrew/lib", "/usr/local/lib")
	case "linux":
		dirs = append(dirs, "/usr/lib/x86_64-linux-gnu", "/usr/lib/aarch64-linux-gnu", "/usr/local/lib", "/usr/lib")
	}

	var paths []string
	for _, d := range dirs {
		for _, n := range names {
			paths = append(paths, filepath.Join(d, n))
		}
	}
	// Let the dynamic loader search its own path last.
	return append(paths, names...)
}

func ffmpegStrerrorImpl(s Status) string {
	buf := make([]byte, 128)
	if avStrerror(int32(s), &buf[0], uintptr(len(buf))) < 0 {
		return ""
	}
	return goStringFromPtr(uintptr(unsafe.Pointer(&buf[0])))
}

// goStringFromPtr converts a NUL-terminated C string to a Go string.
func goStringFromPtr(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := unsafe.Pointer(ptr)
	var length int
	for *(*byte)(unsafe.Add(p, length)) != 0 {
		length++
		if length > 1024 {
			break
		}
	}
	return string(unsafe.Slice((*byte)(p), length))
}

// findModuleRoot walks up from the working directory to the nearest go.mod.
func findModuleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func init() {
	backends[BackendFFmpeg] = newFFmpegResampler
}

// ffmpegResampler drives a SwrContext.
type ffmpegResampler struct {
	h         uintptr
	outFmt    SampleFormat
	outRate   int64
	outLayout uint64
	inFmt     SampleFormat
	inRate    int64
	inLayout  uint64
}

func newFFmpegResampler() (Resampler, Status) {
	if err := LoadFFmpeg(); err != nil {
		return nil, ENOSYS
	}
	h := swrAlloc()
	if h == 0 {
		return nil, ENOMEM
	}
	r := &ffmpegResampler{h: h, inFmt: SampleFmtNone, outFmt: SampleFmtNone}
	runtime.SetFinalizer(r, (*ffmpegResampler).Free)
	return r, OK
}

func (r *ffmpegResampler) SetInt(name string, v int64) Status {
	if r.h == 0 {
		return EINVAL
	}
	st := Status(avOptSetInt(r.h, name, v, 0))
	if st == OptionNotFound && (name == "in_channel_layout" || name == "out_channel_layout") {
		// FFmpeg 7 only knows the AVChannelLayout options.
		alt := "in_chlayout"
		if name == "out_channel_layout" {
			alt = "out_chlayout"
		}
		st = Status(avOptSet(r.h, alt, fmt.Sprintf("0x%x", uint64(v)), 0))
	}
	if !st.Failed() {
		r.track(name, v)
	}
	return st
}

func (r *ffmpegResampler) track(name string, v int64) {
	switch name {
	case "in_channel_layout", "icl":
		r.inLayout = uint64(v)
	case "out_channel_layout", "ocl":
		r.outLayout = uint64(v)
	case "in_sample_rate", "isr":
		r.inRate = v
	case "out_sample_rate", "osr":
		r.outRate = v
	case "in_sample_fmt", "isf":
		r.inFmt = SampleFormat(v)
	case "out_sample_fmt", "osf":
		r.outFmt = SampleFormat(v)
	}
}

func (r *ffmpegResampler) Set(name, value string) Status {
	if r.h == 0 {
		return EINVAL
	}
	return Status(avOptSet(r.h, name, value, 0))
}

func (r *ffmpegResampler) Init() Status {
	if r.h == 0 {
		return EINVAL
	}
	return Status(swrInit(r.h))
}

func (r *ffmpegResampler) IsInitialized() bool {
	return r.h != 0 && swrIsInit(r.h) != 0
}

func (r *ffmpegResampler) Delay(base int64) int64 {
	if r.h == 0 {
		return 0
	}
	return swrGetDelay(r.h, base)
}

func (r *ffmpegResampler) ConvertFrame(out, in *Frame) Status {
	if r.h == 0 {
		return EINVAL
	}
	var pinner runtime.Pinner
	defer pinner.Unpin()

	var inPtrs, outPtrs uintptr
	inCount, outCount := 0, 0
	if in != nil {
		if in.Format != int(r.inFmt) || int64(in.SampleRate) != r.inRate || in.ChannelLayout != r.inLayout {
			return InputChanged
		}
		inPtrs = planePointers(&pinner, in)
		inCount = in.NbSamples
	}
	if out != nil {
		if out.Format != int(r.outFmt) || out.ChannelLayout != r.outLayout ||
			(out.SampleRate != 0 && int64(out.SampleRate) != r.outRate) {
			return OutputChanged
		}
		if out.Buf[0] == nil && out.Data[0] == nil {
			if out.NbSamples == 0 {
				out.NbSamples = int(r.Delay(r.outRate))
			}
			if out.NbSamples == 0 {
				return OK
			}
			out.Channels = LayoutChannels(r.outLayout)
			out.SampleRate = int(r.outRate)
			if st := out.GetBuffer(0); st.Failed() {
				return st
			}
		}
		outPtrs = planePointers(&pinner, out)
		outCount = out.NbSamples
	}
	ret := swrConvert(r.h, outPtrs, int32(outCount), inPtrs, int32(inCount))
	if ret < 0 {
		return Status(ret)
	}
	if out != nil {
		out.NbSamples = int(ret)
	}
	return OK
}

func planePointers(p *runtime.Pinner, f *Frame) uintptr {
	ptrs := make([]unsafe.Pointer, NumDataPointers)
	for i := 0; i < NumDataPointers && len(f.Data[i]) > 0; i++ {
		p.Pin(&f.Data[i][0])
		ptrs[i] = unsafe.Pointer(&f.Data[i][0])
	}
	p.Pin(&ptrs[0])
	return uintptr(unsafe.Pointer(&ptrs[0]))
}

func (r *ffmpegResampler) Free() {
	if r.h == 0 {
		return
	}
	h := r.h
	swrFree(uintptr(unsafe.Pointer(&h)))
	r.h = 0
	runtime.SetFinalizer(r, nil)
}
