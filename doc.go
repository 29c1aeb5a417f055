// Package webcodecs provides a WebCodecs-style streaming video codec engine
// in Go, backed by FFmpeg (libavcodec/libavutil/libswscale) loaded at runtime
// via purego.
//
// Key pieces include:
//   - VideoEncoder/VideoDecoder with the browser codec lifecycle
//     (configure -> feed units -> flush -> close)
//   - A per-instance worker goroutine that exclusively owns the codec session
//     and drains a FIFO job queue
//   - Asynchronous result delivery over per-instance channels (outputs,
//     errors, flush completions), preserving submission order
//   - Hardware encoder selection (NVENC/QSV/VAAPI/VideoToolbox) with
//     automatic software fallback
//   - ImageDecoder for single-shot still-image decoding
//   - Capability probes answering "is this configuration supported?"
//
// # Architecture
//
//	Encode: caller -> job queue -> worker -> swscale convert -> avcodec -> Output() chunks
//	Decode: caller -> job queue -> worker -> avcodec -> Output() frames
//
// Configure runs synchronously on the caller's goroutine and either leaves the
// instance fully open or fully closed. After Configure the codec session and
// all native resources are touched only by the worker goroutine; the channels
// are the sole cross-goroutine communication path.
//
// # Native Libraries
//
// Bindings load libavcodec, libavutil and libswscale with purego
// (CGO_ENABLED=0). Set WEBCODECS_FFMPEG_LIB_PATH to the directory containing
// the shared libraries to override the default search. Availability is
// queried with IsFFmpegAvailable; all entry points degrade to descriptive
// errors when the libraries are missing.
//
// # Supported Codecs
//
// Video: H.264/AVC, H.265/HEVC, VP8, VP9, AV1, limited to whichever implementations the
// loaded FFmpeg build carries. Codec strings follow the WebCodecs registry
// ("avc1.42001f", "vp8", "vp09.00.10.08", "hev1.1.6.L93.B0", "av01.0.04M.08").
package webcodecs
