package native

import (
	"math/bits"
	"strconv"
	"strings"
)

// Channel bits, identical to AV_CH_*.
const (
	ChFrontLeft          uint64 = 0x00000001
	ChFrontRight         uint64 = 0x00000002
	ChFrontCenter        uint64 = 0x00000004
	ChLowFrequency       uint64 = 0x00000008
	ChBackLeft           uint64 = 0x00000010
	ChBackRight          uint64 = 0x00000020
	ChFrontLeftOfCenter  uint64 = 0x00000040
	ChFrontRightOfCenter uint64 = 0x00000080
	ChBackCenter         uint64 = 0x00000100
	ChSideLeft           uint64 = 0x00000200
	ChSideRight          uint64 = 0x00000400
)

// Common layouts, identical to AV_CH_LAYOUT_*.
const (
	LayoutMono        = ChFrontCenter
	LayoutStereo      = ChFrontLeft | ChFrontRight
	Layout2Point1     = LayoutStereo | ChLowFrequency
	LayoutSurround    = LayoutStereo | ChFrontCenter
	LayoutQuad        = LayoutStereo | ChBackLeft | ChBackRight
	Layout5Point0     = LayoutSurround | ChSideLeft | ChSideRight
	Layout5Point1     = Layout5Point0 | ChLowFrequency
	Layout5Point1Back = LayoutSurround | ChBackLeft | ChBackRight | ChLowFrequency
	Layout7Point1     = Layout5Point1 | ChBackLeft | ChBackRight
)

var layoutNames = []struct {
	name   string
	layout uint64
}{
	{"mono", LayoutMono},
	{"stereo", LayoutStereo},
	{"2.1", Layout2Point1},
	{"3.0", LayoutSurround},
	{"quad", LayoutQuad},
	{"5.0", Layout5Point0},
	{"5.1", Layout5Point1},
	{"5.1(back)", Layout5Point1Back},
	{"7.1", Layout7Point1},
}

// LayoutChannels is av_get_channel_layout_nb_channels.
func LayoutChannels(layout uint64) int {
	return bits.OnesCount64(layout)
}

// DefaultLayout is av_get_default_channel_layout.
func DefaultLayout(channels int) uint64 {
	switch channels {
	case 1:
		return LayoutMono
	case 2:
		return LayoutStereo
	case 3:
		return LayoutSurround
	case 4:
		return LayoutQuad
	case 5:
		return Layout5Point0
	case 6:
		return Layout5Point1
	case 8:
		return Layout7Point1
	}
	return 0
}

// LayoutName describes a layout the way av_get_channel_layout_string does.
func LayoutName(layout uint64) string {
	for _, n := range layoutNames {
		if n.layout == layout {
			return n.name
		}
	}
	if layout == 0 {
		return ""
	}
	return strconv.Itoa(LayoutChannels(layout)) + " channels (0x" + strconv.FormatUint(layout, 16) + ")"
}

// LayoutByName parses a layout name, an "Nc" channel count or a hex mask.
func LayoutByName(name string) uint64 {
	for _, n := range layoutNames {
		if n.name == name {
			return n.layout
		}
	}
	if strings.HasSuffix(name, "c") {
		if n, err := strconv.Atoi(strings.TrimSuffix(name, "c")); err == nil {
			return DefaultLayout(n)
		}
	}
	if v, err := strconv.ParseUint(name, 0, 64); err == nil {
		return v
	}
	return 0
}

// LayoutChannelIndex returns the index of channel bit ch within layout, or -1.
func LayoutChannelIndex(layout, ch uint64) int {
	if layout&ch == 0 || bits.OnesCount64(ch) != 1 {
		return -1
	}
	return bits.OnesCount64(layout & (ch - 1))
}
