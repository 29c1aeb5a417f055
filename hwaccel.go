// Hardware acceleration selection.
//
// Selection only ranks implementation names; nothing is opened here. The
// session opens the ranked candidates in order and falls back to the next
// one when open fails, so an accelerator that probes as present but cannot
// actually initialize never wedges a configure.

package webcodecs

import (
	"fmt"
	"os"
	"runtime"
)

// HardwarePreference mirrors the WebCodecs hardwareAcceleration config value.
type HardwarePreference int

const (
	HardwareNoPreference   HardwarePreference = iota // hardware first, software fallback
	HardwarePreferHardware                           // hardware first, software fallback
	HardwarePreferSoftware                           // software only
)

func (p HardwarePreference) String() string {
	switch p {
	case HardwarePreferHardware:
		return "prefer-hardware"
	case HardwarePreferSoftware:
		return "prefer-software"
	default:
		return "no-preference"
	}
}

// ParseHardwarePreference parses a hardwareAcceleration string. Empty means
// no preference.
func ParseHardwarePreference(s string) (HardwarePreference, error) {
	switch s {
	case "", "no-preference":
		return HardwareNoPreference, nil
	case "prefer-hardware":
		return HardwarePreferHardware, nil
	case "prefer-software":
		return HardwarePreferSoftware, nil
	default:
		return HardwareNoPreference, fmt.Errorf("unknown hardware preference %q", s)
	}
}

// hwBackend identifies one accelerator API.
type hwBackend struct {
	name       string
	deviceType int32
	pixFmt     int // hardware surface format the codec context is told to use
	available  func() bool
}

var hwBackends = []hwBackend{
	{"videotoolbox", hwDeviceVideoToolbox, pixFmtVTB, func() bool { return runtime.GOOS == "darwin" }},
	{"cuda", hwDeviceCUDA, pixFmtCUDA, hasNvidiaGPU},
	{"qsv", hwDeviceQSV, pixFmtQSV, hasDRIRenderNode},
	{"vaapi", hwDeviceVAAPI, pixFmtVAAPI, hasDRIRenderNode},
}

// hasDRIRenderNode reports whether a DRM render node exists. VAAPI and QSV
// both attach through one.
func hasDRIRenderNode() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	for _, node := range []string{"/dev/dri/renderD128", "/dev/dri/renderD129"} {
		if _, err := os.Stat(node); err == nil {
			return true
		}
	}
	return false
}

func hasNvidiaGPU() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	_, err := os.Stat("/dev/nvidiactl")
	return err == nil
}

// hwEncoderNames maps codec family and backend name to the FFmpeg encoder
// implementation name. Absent entries mean the backend cannot encode that
// family.
var hwEncoderNames = map[VideoCodec]map[string]string{
	VideoCodecH264: {
		"videotoolbox": "h264_videotoolbox",
		"cuda":         "h264_nvenc",
		"qsv":          "h264_qsv",
		"vaapi":        "h264_vaapi",
	},
	VideoCodecH265: {
		"videotoolbox": "hevc_videotoolbox",
		"cuda":         "hevc_nvenc",
		"qsv":          "hevc_qsv",
		"vaapi":        "hevc_vaapi",
	},
	VideoCodecVP8: {
		"vaapi": "vp8_vaapi",
	},
	VideoCodecVP9: {
		"qsv":   "vp9_qsv",
		"vaapi": "vp9_vaapi",
	},
	VideoCodecAV1: {
		"cuda":  "av1_nvenc",
		"qsv":   "av1_qsv",
		"vaapi": "av1_vaapi",
	},
}

// hwDecoderNames maps codec family and backend name to the FFmpeg decoder
// implementation name. Only QSV ships dedicated decoder implementations;
// the other backends decode through hwaccel attached to the native decoder,
// which this package does not use.
var hwDecoderNames = map[VideoCodec]map[string]string{
	VideoCodecH264: {"qsv": "h264_qsv"},
	VideoCodecH265: {"qsv": "hevc_qsv"},
	VideoCodecVP9:  {"qsv": "vp9_qsv"},
	VideoCodecAV1:  {"qsv": "av1_qsv"},
}

// encoderCandidate is one implementation the session will try to open.
type encoderCandidate struct {
	name     string
	hardware bool
	backend  hwBackend // zero value for software candidates
}

// rankEncoderCandidates orders implementation names by the hardware
// preference. Available hardware backends come first unless software is
// preferred; software always closes the list as the fallback tier, so a
// platform without working hardware still configures. prefer-hardware is a
// hint about ordering, not a hard requirement.
func rankEncoderCandidates(codec VideoCodec, pref HardwarePreference) []encoderCandidate {
	var out []encoderCandidate
	if pref != HardwarePreferSoftware {
		for _, b := range hwBackends {
			name, ok := hwEncoderNames[codec][b.name]
			if !ok || !b.available() {
				continue
			}
			out = append(out, encoderCandidate{name: name, hardware: true, backend: b})
		}
	}
	for _, name := range softwareEncoderNames[codec] {
		out = append(out, encoderCandidate{name: name})
	}
	return out
}

// rankDecoderCandidates orders decoder implementation names by the hardware
// preference, software last.
func rankDecoderCandidates(codec VideoCodec, pref HardwarePreference) []encoderCandidate {
	var out []encoderCandidate
	if pref != HardwarePreferSoftware {
		for _, b := range hwBackends {
			name, ok := hwDecoderNames[codec][b.name]
			if !ok || !b.available() {
				continue
			}
			out = append(out, encoderCandidate{name: name, hardware: true, backend: b})
		}
	}
	for _, name := range decoderNames[codec] {
		out = append(out, encoderCandidate{name: name})
	}
	return out
}
