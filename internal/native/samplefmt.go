package native

// SampleFormat mirrors AVSampleFormat, including its numbering.
type SampleFormat int

const (
	SampleFmtNone SampleFormat = iota - 1
	SampleFmtU8
	SampleFmtS16
	SampleFmtS32
	SampleFmtFLT
	SampleFmtDBL
	SampleFmtU8P
	SampleFmtS16P
	SampleFmtS32P
	SampleFmtFLTP
	SampleFmtDBLP
	SampleFmtS64
	SampleFmtS64P
	sampleFmtNB
)

type sampleFmtInfo struct {
	name   string
	bits   int
	planar bool
	alt    SampleFormat
}

var sampleFmtTable = [sampleFmtNB]sampleFmtInfo{
	SampleFmtU8:   {"u8", 8, false, SampleFmtU8P},
	SampleFmtS16:  {"s16", 16, false, SampleFmtS16P},
	SampleFmtS32:  {"s32", 32, false, SampleFmtS32P},
	SampleFmtFLT:  {"flt", 32, false, SampleFmtFLTP},
	SampleFmtDBL:  {"dbl", 64, false, SampleFmtDBLP},
	SampleFmtU8P:  {"u8p", 8, true, SampleFmtU8},
	SampleFmtS16P: {"s16p", 16, true, SampleFmtS16},
	SampleFmtS32P: {"s32p", 32, true, SampleFmtS32},
	SampleFmtFLTP: {"fltp", 32, true, SampleFmtFLT},
	SampleFmtDBLP: {"dblp", 64, true, SampleFmtDBL},
	SampleFmtS64:  {"s64", 64, false, SampleFmtS64P},
	SampleFmtS64P: {"s64p", 64, true, SampleFmtS64},
}

func (f SampleFormat) valid() bool { return f >= 0 && f < sampleFmtNB }

// Name returns the FFmpeg short name, or "" for unknown formats.
func (f SampleFormat) Name() string {
	if !f.valid() {
		return ""
	}
	return sampleFmtTable[f].name
}

// SampleFormatByName is av_get_sample_fmt.
func SampleFormatByName(name string) SampleFormat {
	for i, info := range sampleFmtTable {
		if info.name == name {
			return SampleFormat(i)
		}
	}
	return SampleFmtNone
}

// BytesPerSample is av_get_bytes_per_sample.
func (f SampleFormat) BytesPerSample() int {
	if !f.valid() {
		return 0
	}
	return sampleFmtTable[f].bits >> 3
}

// IsPlanar is av_sample_fmt_is_planar.
func (f SampleFormat) IsPlanar() bool {
	return f.valid() && sampleFmtTable[f].planar
}

// Packed returns the interleaved variant of f.
func (f SampleFormat) Packed() SampleFormat {
	if !f.valid() {
		return SampleFmtNone
	}
	if sampleFmtTable[f].planar {
		return sampleFmtTable[f].alt
	}
	return f
}

// Planar returns the planar variant of f.
func (f SampleFormat) Planar() SampleFormat {
	if !f.valid() {
		return SampleFmtNone
	}
	if sampleFmtTable[f].planar {
		return f
	}
	return sampleFmtTable[f].alt
}

// SamplesBufferSize is av_samples_get_buffer_size. It returns the total size
// and the per-plane line size.
func SamplesBufferSize(channels, samples int, f SampleFormat, align int) (size, linesize int, st Status) {
	bps := f.BytesPerSample()
	if bps == 0 || channels <= 0 || samples < 0 {
		return 0, 0, EINVAL
	}
	if align <= 0 {
		align = 1
	}
	planes := 1
	perLine := channels * samples * bps
	if f.IsPlanar() {
		planes = channels
		perLine = samples * bps
	}
	linesize = alignUp(perLine, align)
	return linesize * planes, linesize, OK
}

func alignUp(v, a int) int {
	if a <= 1 {
		return v
	}
	return (v + a - 1) / a * a
}
