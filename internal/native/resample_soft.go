package native

import (
	"encoding/binary"
	"math"
	"strconv"
)

// softResampler is a pure Go swr replacement: sample format conversion,
// channel rematrixing and linear-interpolation rate conversion over a FIFO.
type softResampler struct {
	opts map[string]int64
	str  map[string]string

	inited bool

	inLayout, outLayout uint64
	inCh, outCh         int
	inRate, outRate     int64
	inFmt, outFmt       SampleFormat
	matrix              [][]float64

	// fifo holds remixed input, one slice per output channel.
	fifo      [][]float64
	fifoStart int64 // input index of fifo[c][0]
	inTotal   int64 // input samples received since init
	outPos    int64 // output samples produced since init
}

var softIntOptions = map[string]string{
	"in_channel_layout":   "icl",
	"out_channel_layout":  "ocl",
	"in_sample_rate":      "isr",
	"out_sample_rate":     "osr",
	"in_sample_fmt":       "isf",
	"out_sample_fmt":      "osf",
	"in_channel_count":    "ich",
	"out_channel_count":   "och",
	"filter_size":         "",
	"phase_shift":         "",
	"linear_interp":       "",
	"exact_rational":      "",
	"used_channel_count":  "uch",
	"output_sample_bits":  "osb",
	"internal_sample_fmt": "tsf",
	"flags":               "swr_flags",
}

var softFloatOptions = map[string]bool{
	"cutoff":             true,
	"center_mix_level":   true,
	"surround_mix_level": true,
	"lfe_mix_level":      true,
	"rematrix_volume":    true,
	"dither_scale":       true,
}

var softStringOptions = map[string][]string{
	"resampler":       {"swr"},
	"dither_method":   {"0", "none", "rectangular", "triangular", "triangular_hp"},
	"matrix_encoding": {"none", "dolby", "dplii"},
	"in_chlayout":     nil,
	"out_chlayout":    nil,
}

func newSoftResampler() (Resampler, Status) {
	return &softResampler{
		opts: map[string]int64{
			"isf": int64(SampleFmtNone),
			"osf": int64(SampleFmtNone),
		},
		str: map[string]string{},
	}, OK
}

func canonicalIntOption(name string) (string, bool) {
	if alias, ok := softIntOptions[name]; ok {
		if alias == "" {
			return name, true
		}
		return alias, true
	}
	for _, alias := range softIntOptions {
		if alias != "" && alias == name {
			return alias, true
		}
	}
	return "", false
}

func (s *softResampler) SetInt(name string, v int64) Status {
	key, ok := canonicalIntOption(name)
	if !ok {
		if softFloatOptions[name] {
			s.str[name] = strconv.FormatInt(v, 10)
			return OK
		}
		return OptionNotFound
	}
	if key == "isf" || key == "osf" {
		if !SampleFormat(v).valid() {
			return ERANGE
		}
	}
	s.opts[key] = v
	return OK
}

func (s *softResampler) Set(name, value string) Status {
	switch name {
	case "in_chlayout", "out_chlayout":
		layout := LayoutByName(value)
		if layout == 0 {
			return EINVAL
		}
		key := "icl"
		if name == "out_chlayout" {
			key = "ocl"
		}
		s.opts[key] = int64(layout)
		return OK
	}
	if key, ok := canonicalIntOption(name); ok {
		switch key {
		case "isf", "osf", "tsf":
			if f := SampleFormatByName(value); f != SampleFmtNone {
				s.opts[key] = int64(f)
				return OK
			}
		case "icl", "ocl":
			if l := LayoutByName(value); l != 0 {
				s.opts[key] = int64(l)
				return OK
			}
		}
		v, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return EINVAL
		}
		return s.SetInt(name, v)
	}
	if softFloatOptions[name] {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return EINVAL
		}
		s.str[name] = value
		return OK
	}
	allowed, ok := softStringOptions[name]
	if !ok {
		return OptionNotFound
	}
	for _, a := range allowed {
		if a == value {
			s.str[name] = value
			return OK
		}
	}
	return EINVAL
}

func (s *softResampler) Init() Status {
	s.inited = false
	inLayout := uint64(s.opts["icl"])
	outLayout := uint64(s.opts["ocl"])
	inCh, outCh := int(s.opts["ich"]), int(s.opts["och"])
	if inLayout == 0 {
		inLayout = DefaultLayout(inCh)
	}
	if outLayout == 0 {
		outLayout = DefaultLayout(outCh)
	}
	if inLayout == 0 || outLayout == 0 {
		return EINVAL
	}
	if inCh != 0 && inCh != LayoutChannels(inLayout) || outCh != 0 && outCh != LayoutChannels(outLayout) {
		return EINVAL
	}
	if s.opts["isr"] <= 0 || s.opts["osr"] <= 0 {
		return EINVAL
	}
	inFmt, outFmt := SampleFormat(s.opts["isf"]), SampleFormat(s.opts["osf"])
	if !inFmt.valid() || !outFmt.valid() {
		return EINVAL
	}

	s.inLayout, s.outLayout = inLayout, outLayout
	s.inCh, s.outCh = LayoutChannels(inLayout), LayoutChannels(outLayout)
	s.inRate, s.outRate = s.opts["isr"], s.opts["osr"]
	s.inFmt, s.outFmt = inFmt, outFmt
	s.matrix = s.buildMatrix()
	s.fifo = make([][]float64, s.outCh)
	s.fifoStart, s.inTotal, s.outPos = 0, 0, 0
	s.inited = true
	return OK
}

func (s *softResampler) IsInitialized() bool { return s.inited }

func (s *softResampler) mixLevel(name string) float64 {
	if v, ok := s.str[name]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return math.Sqrt2 / 2
}

// buildMatrix maps every input channel onto the output layout: identical
// positions pass through, mono is duplicated or averaged, and positions the
// output lacks fold into front left/right.
func (s *softResampler) buildMatrix() [][]float64 {
	m := make([][]float64, s.outCh)
	for o := range m {
		m[o] = make([]float64, s.inCh)
	}
	switch {
	case s.inCh == 1:
		for o := range m {
			m[o][0] = 1
		}
		return m
	case s.outCh == 1:
		for i := 0; i < s.inCh; i++ {
			m[0][i] = 1 / float64(s.inCh)
		}
		return m
	}
	center := s.mixLevel("center_mix_level")
	surround := s.mixLevel("surround_mix_level")
	fl := LayoutChannelIndex(s.outLayout, ChFrontLeft)
	fr := LayoutChannelIndex(s.outLayout, ChFrontRight)
	for bit := uint64(1); bit != 0; bit <<= 1 {
		i := LayoutChannelIndex(s.inLayout, bit)
		if i < 0 {
			continue
		}
		if o := LayoutChannelIndex(s.outLayout, bit); o >= 0 {
			m[o][i] = 1
			continue
		}
		switch bit {
		case ChFrontCenter, ChBackCenter:
			if fl >= 0 && fr >= 0 {
				m[fl][i] += center
				m[fr][i] += center
			}
		case ChBackLeft, ChSideLeft, ChFrontLeftOfCenter:
			if fl >= 0 {
				m[fl][i] += surround
			}
		case ChBackRight, ChSideRight, ChFrontRightOfCenter:
			if fr >= 0 {
				m[fr][i] += surround
			}
		}
	}
	return m
}

// Delay counts the output samples a non-flushing convert can produce. An
// output sample that interpolates towards input not yet pushed is left out.
func (s *softResampler) Delay(base int64) int64 {
	if !s.inited || base <= 0 {
		return 0
	}
	n := s.ready(false)
	if n <= 0 {
		return 0
	}
	return RescaleRnd(n, base, s.outRate, RoundUp)
}

// ready returns how many output samples the buffered input yields. Without
// flush the last input sample only ends an output when it lands on it
// exactly; with flush it is held for the samples past it.
func (s *softResampler) ready(flush bool) int64 {
	if s.inTotal == 0 {
		return 0
	}
	var end int64
	if flush {
		end = (s.inTotal*s.outRate + s.inRate - 1) / s.inRate
	} else {
		end = (s.inTotal-1)*s.outRate/s.inRate + 1
	}
	return end - s.outPos
}

func (s *softResampler) ConvertFrame(out, in *Frame) Status {
	if !s.inited {
		return EINVAL
	}
	if in != nil {
		if st := s.push(in); st.Failed() {
			return st
		}
	}
	if out == nil {
		return OK
	}
	flush := in == nil
	if out.Format != int(s.outFmt) || out.ChannelLayout != s.outLayout ||
		(out.SampleRate != 0 && int64(out.SampleRate) != s.outRate) {
		return OutputChanged
	}
	if out.Buf[0] == nil && out.Data[0] == nil {
		if out.NbSamples == 0 {
			out.NbSamples = int(max(s.ready(flush), 0))
		}
		if out.NbSamples == 0 {
			return OK
		}
		out.Channels = s.outCh
		out.SampleRate = int(s.outRate)
		if st := out.GetBuffer(0); st.Failed() {
			return st
		}
	}
	out.NbSamples = s.drain(out, out.NbSamples, flush)
	return OK
}

func (s *softResampler) push(in *Frame) Status {
	if in.Format != int(s.inFmt) || int64(in.SampleRate) != s.inRate || in.ChannelLayout != s.inLayout {
		return InputChanged
	}
	n := in.NbSamples
	if n <= 0 {
		return OK
	}
	bps := s.inFmt.BytesPerSample()
	planar := s.inFmt.IsPlanar()
	fmtPacked := s.inFmt.Packed()
	frame := make([]float64, s.inCh)
	for k := 0; k < n; k++ {
		for c := 0; c < s.inCh; c++ {
			var b []byte
			if planar {
				b = in.Data[c][k*bps:]
			} else {
				b = in.Data[0][(k*s.inCh+c)*bps:]
			}
			frame[c] = readSample(fmtPacked, b)
		}
		for o := 0; o < s.outCh; o++ {
			var v float64
			for c, w := range s.matrix[o] {
				if w != 0 {
					v += w * frame[c]
				}
			}
			s.fifo[o] = append(s.fifo[o], v)
		}
	}
	s.inTotal += int64(n)
	return OK
}

// drain writes up to limit output samples. Only a flush lets out samples
// that hold the last input sample in place of the next one.
func (s *softResampler) drain(out *Frame, limit int, flush bool) int {
	bps := s.outFmt.BytesPerSample()
	planar := s.outFmt.IsPlanar()
	fmtPacked := s.outFmt.Packed()
	if n := s.ready(flush); n < int64(limit) {
		limit = int(max(n, 0))
	}
	produced := 0
	for produced < limit {
		num := s.outPos * s.inRate
		idx := num / s.outRate
		frac := float64(num%s.outRate) / float64(s.outRate)
		i0 := int(idx - s.fifoStart)
		i1 := i0
		if idx+1 < s.inTotal {
			i1 = i0 + 1
		}
		for o := 0; o < s.outCh; o++ {
			v := s.fifo[o][i0]
			if frac != 0 {
				v += (s.fifo[o][i1] - v) * frac
			}
			var b []byte
			if planar {
				b = out.Data[o][produced*bps:]
			} else {
				b = out.Data[0][(produced*s.outCh+o)*bps:]
			}
			writeSample(fmtPacked, b, v)
		}
		produced++
		s.outPos++
	}
	next := s.outPos * s.inRate / s.outRate
	if drop := int(next - s.fifoStart); drop > 0 {
		for o := range s.fifo {
			if drop > len(s.fifo[o]) {
				drop = len(s.fifo[o])
			}
			s.fifo[o] = append(s.fifo[o][:0], s.fifo[o][drop:]...)
		}
		s.fifoStart += int64(drop)
	}
	return produced
}

func (s *softResampler) Free() {
	s.inited = false
	s.fifo = nil
	s.matrix = nil
}

func readSample(f SampleFormat, b []byte) float64 {
	switch f {
	case SampleFmtU8:
		return (float64(b[0]) - 128) / 128
	case SampleFmtS16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / (1 << 15)
	case SampleFmtS32:
		return float64(int32(binary.LittleEndian.Uint32(b))) / (1 << 31)
	case SampleFmtS64:
		return float64(int64(binary.LittleEndian.Uint64(b))) / (1 << 63)
	case SampleFmtFLT:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case SampleFmtDBL:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

func writeSample(f SampleFormat, b []byte, v float64) {
	switch f {
	case SampleFmtU8:
		b[0] = uint8(clampRound(v*128+128, 0, 255))
	case SampleFmtS16:
		binary.LittleEndian.PutUint16(b, uint16(int16(clampRound(v*(1<<15), math.MinInt16, math.MaxInt16))))
	case SampleFmtS32:
		binary.LittleEndian.PutUint32(b, uint32(int32(clampRound(v*(1<<31), math.MinInt32, math.MaxInt32))))
	case SampleFmtS64:
		var x int64
		switch {
		case v >= 1:
			x = math.MaxInt64
		case v <= -1:
			x = math.MinInt64
		default:
			x = int64(math.Round(v * (1 << 63)))
		}
		binary.LittleEndian.PutUint64(b, uint64(x))
	case SampleFmtFLT:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case SampleFmtDBL:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	}
}

func clampRound(v, lo, hi float64) float64 {
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
