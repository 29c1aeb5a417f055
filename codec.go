package webcodecs

import (
	"fmt"
	"strconv"
	"strings"
)

// VideoCodec identifies the video codec family.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecH264
	VideoCodecH265
	VideoCodecVP8
	VideoCodecVP9
	VideoCodecAV1
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecH264:
		return "H264"
	case VideoCodecH265:
		return "H265"
	case VideoCodecVP8:
		return "VP8"
	case VideoCodecVP9:
		return "VP9"
	case VideoCodecAV1:
		return "AV1"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type for this codec family.
func (c VideoCodec) MimeType() string {
	switch c {
	case VideoCodecH264:
		return "video/H264"
	case VideoCodecH265:
		return "video/H265"
	case VideoCodecVP8:
		return "video/VP8"
	case VideoCodecVP9:
		return "video/VP9"
	case VideoCodecAV1:
		return "video/AV1"
	default:
		return ""
	}
}

// CodecInfo is the result of parsing a WebCodecs registry codec string.
type CodecInfo struct {
	Codec   VideoCodec
	Profile int // codec-specific profile value (H.264: profile_idc), -1 if absent
	Level   int // codec-specific level value, -1 if absent
}

// ParseCodecString parses a WebCodecs codec string ("vp8", "vp09.00.10.08",
// "avc1.42001f", "hev1.1.6.L93.B0", "av01.0.04M.08") into a CodecInfo.
// Unrecognized strings yield VideoCodecUnknown with an error.
func ParseCodecString(s string) (CodecInfo, error) {
	info := CodecInfo{Profile: -1, Level: -1}
	base, rest, _ := strings.Cut(s, ".")

	switch strings.ToLower(base) {
	case "vp8":
		info.Codec = VideoCodecVP8
	case "vp09", "vp9":
		info.Codec = VideoCodecVP9
		if fields := strings.Split(rest, "."); len(fields) >= 2 && rest != "" {
			if p, err := strconv.Atoi(fields[0]); err == nil {
				info.Profile = p
			}
			if l, err := strconv.Atoi(fields[1]); err == nil {
				info.Level = l
			}
		}
	case "avc1", "avc3":
		info.Codec = VideoCodecH264
		// avc1.PPCCLL: PP = profile_idc, LL = level_idc, hex.
		if len(rest) == 6 {
			if p, err := strconv.ParseUint(rest[0:2], 16, 8); err == nil {
				info.Profile = int(p)
			}
			if l, err := strconv.ParseUint(rest[4:6], 16, 8); err == nil {
				info.Level = int(l)
			}
		}
	case "hev1", "hvc1":
		info.Codec = VideoCodecH265
	case "av01":
		info.Codec = VideoCodecAV1
		if fields := strings.Split(rest, "."); len(fields) >= 1 && rest != "" {
			if p, err := strconv.Atoi(fields[0]); err == nil {
				info.Profile = p
			}
		}
	default:
		return info, fmt.Errorf("%w: %q", ErrCodecNotSupported, s)
	}
	return info, nil
}

// BitrateMode selects the encoder rate-control mode.
type BitrateMode int

const (
	BitrateModeVariable  BitrateMode = iota // VBR, target bitrate only (default)
	BitrateModeConstant                     // CBR, min/max/target pinned
	BitrateModeQuantizer                    // constant quality, bitrate ignored
)

func (m BitrateMode) String() string {
	switch m {
	case BitrateModeConstant:
		return "constant"
	case BitrateModeQuantizer:
		return "quantizer"
	default:
		return "variable"
	}
}

// ParseBitrateMode parses a WebCodecs bitrateMode string. Empty means variable.
func ParseBitrateMode(s string) (BitrateMode, error) {
	switch s {
	case "", "variable":
		return BitrateModeVariable, nil
	case "constant":
		return BitrateModeConstant, nil
	case "quantizer":
		return BitrateModeQuantizer, nil
	default:
		return BitrateModeVariable, fmt.Errorf("unknown bitrate mode %q", s)
	}
}

// LatencyMode selects the encoder latency/quality trade-off.
type LatencyMode int

const (
	LatencyModeQuality  LatencyMode = iota // balanced presets (default)
	LatencyModeRealtime                    // single-thread, zero delay, zero look-ahead
)

func (m LatencyMode) String() string {
	if m == LatencyModeRealtime {
		return "realtime"
	}
	return "quality"
}

// AlphaMode controls whether an alpha channel in source frames is preserved.
type AlphaMode int

const (
	AlphaDiscard AlphaMode = iota
	AlphaKeep
)

func (m AlphaMode) String() string {
	if m == AlphaKeep {
		return "keep"
	}
	return "discard"
}

// AVCBitstreamFormat selects the H.264/H.265 output bitstream framing.
type AVCBitstreamFormat int

const (
	AVCFormatAnnexB AVCBitstreamFormat = iota // start-code delimited
	AVCFormatAVC                              // length-prefixed, extradata out of band
)

// softwareEncoderNames lists software implementation candidates per family,
// in preference order.
var softwareEncoderNames = map[VideoCodec][]string{
	VideoCodecH264: {"libx264", "libopenh264"},
	VideoCodecH265: {"libx265"},
	VideoCodecVP8:  {"libvpx"},
	VideoCodecVP9:  {"libvpx-vp9"},
	VideoCodecAV1:  {"libsvtav1", "libaom-av1"},
}

// decoderNames lists decoder implementation candidates per family, native
// decoders first.
var decoderNames = map[VideoCodec][]string{
	VideoCodecH264: {"h264"},
	VideoCodecH265: {"hevc"},
	VideoCodecVP8:  {"vp8", "libvpx"},
	VideoCodecVP9:  {"vp9", "libvpx-vp9"},
	VideoCodecAV1:  {"libdav1d", "av1", "libaom-av1"},
}
