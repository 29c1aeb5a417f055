// Capability probes.
//
// A probe answers "would Configure succeed" without creating an instance:
// it opens a throwaway session with the given configuration, records what
// implementation it got, and closes it. Probes are stateless and safe to
// call concurrently.

package webcodecs

import "github.com/pion/logging"

// CapabilityResult reports the outcome of a capability probe.
type CapabilityResult struct {
	Supported           bool
	HardwareAccelerated bool
	Implementation      string // FFmpeg implementation name, "" if unsupported
}

var probeLog = logging.NewDefaultLoggerFactory().NewLogger("webcodecs-probe")

// IsVideoEncoderSupported probes whether the configuration can be encoded.
func IsVideoEncoderSupported(cfg VideoEncoderConfig) CapabilityResult {
	if err := ValidateScalabilityMode(cfg.ScalabilityMode); err != nil {
		return CapabilityResult{}
	}
	info, err := ParseCodecString(cfg.Codec)
	if err != nil {
		return CapabilityResult{}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 640, 480
	}
	if cfg.Bitrate <= 0 {
		cfg.Bitrate = 1_000_000
	}
	s, err := newEncodeSession(cfg, info, probeLog)
	if err != nil {
		return CapabilityResult{}
	}
	defer s.Close()
	return CapabilityResult{
		Supported:           true,
		HardwareAccelerated: s.HardwareAccelerated(),
		Implementation:      s.Implementation(),
	}
}

// IsVideoDecoderSupported probes whether the configuration can be decoded.
func IsVideoDecoderSupported(cfg VideoDecoderConfig) CapabilityResult {
	info, err := ParseCodecString(cfg.Codec)
	if err != nil {
		return CapabilityResult{}
	}
	s, err := newDecodeSession(cfg, info, probeLog)
	if err != nil {
		return CapabilityResult{}
	}
	defer s.Close()
	return CapabilityResult{
		Supported:           true,
		HardwareAccelerated: s.HardwareAccelerated(),
		Implementation:      s.Implementation(),
	}
}

// audioEncoderNames maps WebCodecs audio codec strings to FFmpeg encoder
// implementation names, in preference order.
var audioEncoderNames = map[string][]string{
	"opus":      {"libopus", "opus"},
	"mp4a.40.2": {"aac"}, // AAC-LC
	"mp3":       {"libmp3lame"},
	"vorbis":    {"libvorbis", "vorbis"},
	"flac":      {"flac"},
	"alaw":      {"pcm_alaw"},
	"ulaw":      {"pcm_mulaw"},
}

var audioDecoderNames = map[string][]string{
	"opus":      {"libopus", "opus"},
	"mp4a.40.2": {"aac"},
	"mp3":       {"mp3"},
	"vorbis":    {"libvorbis", "vorbis"},
	"flac":      {"flac"},
	"alaw":      {"pcm_alaw"},
	"ulaw":      {"pcm_mulaw"},
}

// IsAudioEncoderSupported reports whether an encoder implementation for the
// audio codec string is built into the loaded FFmpeg. Audio has no session
// machinery here, so this is a presence check, not a full open.
func IsAudioEncoderSupported(codec string) CapabilityResult {
	if loadFFmpeg() != nil {
		return CapabilityResult{}
	}
	for _, name := range audioEncoderNames[codec] {
		if avcodecFindEncoderByName(name) != 0 {
			return CapabilityResult{Supported: true, Implementation: name}
		}
	}
	return CapabilityResult{}
}

// IsAudioDecoderSupported reports whether a decoder implementation for the
// audio codec string is built into the loaded FFmpeg.
func IsAudioDecoderSupported(codec string) CapabilityResult {
	if loadFFmpeg() != nil {
		return CapabilityResult{}
	}
	for _, name := range audioDecoderNames[codec] {
		if avcodecFindDecoderByName(name) != 0 {
			return CapabilityResult{Supported: true, Implementation: name}
		}
	}
	return CapabilityResult{}
}
