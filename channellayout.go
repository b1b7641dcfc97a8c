package av

import "github.com/thesyncim/av/internal/native"

// ChannelLayout is a speaker-position bitmask.
type ChannelLayout uint64

const (
	ChannelLayoutMono        = ChannelLayout(native.LayoutMono)
	ChannelLayoutStereo      = ChannelLayout(native.LayoutStereo)
	ChannelLayout2Point1     = ChannelLayout(native.Layout2Point1)
	ChannelLayoutSurround    = ChannelLayout(native.LayoutSurround)
	ChannelLayoutQuad        = ChannelLayout(native.LayoutQuad)
	ChannelLayout5Point0     = ChannelLayout(native.Layout5Point0)
	ChannelLayout5Point1     = ChannelLayout(native.Layout5Point1)
	ChannelLayout5Point1Back = ChannelLayout(native.Layout5Point1Back)
	ChannelLayout7Point1     = ChannelLayout(native.Layout7Point1)
)

// DefaultChannelLayout returns the usual layout for a channel count, or 0.
func DefaultChannelLayout(channels int) ChannelLayout {
	return ChannelLayout(native.DefaultLayout(channels))
}

// ChannelLayoutByName parses "stereo", "5.1", "3c" or a hex mask.
func ChannelLayoutByName(name string) ChannelLayout {
	return ChannelLayout(native.LayoutByName(name))
}

// Channels returns the number of channels in the layout.
func (l ChannelLayout) Channels() int {
	return native.LayoutChannels(uint64(l))
}

func (l ChannelLayout) String() string {
	return native.LayoutName(uint64(l))
}
