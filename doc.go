// Package av is an object-oriented layer over an FFmpeg-style media core:
// containers, codecs, ref-counted packets and frames, and audio resampling.
//
// Key pieces include:
//   - Rational and Timestamp for exact time arithmetic
//   - Packet, AudioFrame and VideoFrame handles over shared buffers
//   - FormatContext for demuxing and muxing, with Stream views that detect
//     use after their context is closed
//   - CodecContext for send/receive style encoding and decoding
//   - AudioResampler, a push/pop FIFO that converts layout, rate and
//     sample format while keeping output timestamps continuous
//   - VideoRescaler for picture size and pixel format conversion
//   - PacketTrack, a pion WebRTC TrackLocal that sends encoded audio
//   - Transcoder, a demux/decode/resample/encode/mux pipeline
//
// # Architecture
//
//	Transcode: FormatContext -> CodecContext(decoder) -> AudioResampler -> CodecContext(encoder) -> FormatContext
//	WebRTC:    CodecContext(encoder) -> PacketTrack -> webrtc.PeerConnection
//
// # Native Kernels
//
// Containers and PCM codecs are implemented in Go. Resampling runs on a
// pure Go kernel, or on libswresample loaded at runtime with purego when
// the "ffmpeg" backend is selected. Set resampler.ffmpeg_lib_path (or
// AV_RESAMPLER_FFMPEG_LIB_PATH) to the directory holding the libraries.
//
// # Setup
//
// Call Init once per process, or InitWithConfig with a Config from
// LoadConfig. Init installs the native lock manager, routes native log
// lines into the logrus package logger and ignores SIGPIPE on POSIX.
package av
