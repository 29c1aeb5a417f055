// Per-implementation encoder tuning.
//
// Each implementation gets its private options through av_opt_set with
// AV_OPT_SEARCH_CHILDREN, so unknown options on older builds degrade to a
// logged no-op inside FFmpeg instead of an error here.

package webcodecs

import (
	"strconv"
	"strings"
)

// optPair is one AVOption assignment.
type optPair struct{ name, value string }

// latencyTunings maps implementation name and latency mode to the option
// set applied after rate control. Names not listed get no extra options.
var latencyTunings = map[string]map[LatencyMode][]optPair{
	"libx264": {
		LatencyModeRealtime: {{"preset", "ultrafast"}, {"tune", "zerolatency"}},
		LatencyModeQuality:  {{"preset", "medium"}},
	},
	"libx265": {
		LatencyModeRealtime: {{"preset", "ultrafast"}, {"tune", "zerolatency"}},
		LatencyModeQuality:  {{"preset", "medium"}},
	},
	"libopenh264": {
		LatencyModeRealtime: {{"allow_skip_frames", "1"}},
	},
	"libvpx": {
		LatencyModeRealtime: {{"deadline", "realtime"}, {"cpu-used", "8"}, {"lag-in-frames", "0"}},
		LatencyModeQuality:  {{"deadline", "good"}, {"cpu-used", "2"}},
	},
	"libvpx-vp9": {
		LatencyModeRealtime: {{"deadline", "realtime"}, {"cpu-used", "8"}, {"lag-in-frames", "0"}, {"row-mt", "1"}},
		LatencyModeQuality:  {{"deadline", "good"}, {"cpu-used", "2"}, {"row-mt", "1"}},
	},
	"libaom-av1": {
		LatencyModeRealtime: {{"usage", "realtime"}, {"cpu-used", "8"}, {"lag-in-frames", "0"}},
		LatencyModeQuality:  {{"cpu-used", "4"}},
	},
	"libsvtav1": {
		LatencyModeRealtime: {{"preset", "12"}},
		LatencyModeQuality:  {{"preset", "8"}},
	},
	"h264_nvenc": {
		LatencyModeRealtime: {{"preset", "p1"}, {"tune", "ull"}, {"delay", "0"}, {"zerolatency", "1"}},
		LatencyModeQuality:  {{"preset", "p4"}},
	},
	"hevc_nvenc": {
		LatencyModeRealtime: {{"preset", "p1"}, {"tune", "ull"}, {"delay", "0"}, {"zerolatency", "1"}},
		LatencyModeQuality:  {{"preset", "p4"}},
	},
	"av1_nvenc": {
		LatencyModeRealtime: {{"preset", "p1"}, {"tune", "ull"}, {"delay", "0"}},
		LatencyModeQuality:  {{"preset", "p4"}},
	},
	"h264_qsv": {
		LatencyModeRealtime: {{"async_depth", "1"}, {"preset", "veryfast"}},
		LatencyModeQuality:  {{"preset", "medium"}},
	},
	"hevc_qsv": {
		LatencyModeRealtime: {{"async_depth", "1"}, {"preset", "veryfast"}},
		LatencyModeQuality:  {{"preset", "medium"}},
	},
	"h264_videotoolbox": {
		LatencyModeRealtime: {{"realtime", "1"}, {"prio_speed", "1"}},
	},
	"hevc_videotoolbox": {
		LatencyModeRealtime: {{"realtime", "1"}, {"prio_speed", "1"}},
	},
}

// applyLatencyTuning applies the latency-mode option set for the named
// implementation. In realtime mode B-frames are disabled on every
// implementation so the encoder introduces no reorder delay.
func applyLatencyTuning(ctx uintptr, implName string, mode LatencyMode) {
	if mode == LatencyModeRealtime {
		ctxSetMaxBFrames(ctx, 0)
	}
	for _, opt := range latencyTunings[implName][mode] {
		avOptSet(ctx, opt.name, opt.value, avOptSearchChildren)
	}
}

// applyRateControl configures rate control per the bitrate mode, following
// each implementation's conventions.
//
// Constant pins min/max to the target so the rate stays flat; x264
// additionally needs nal-hrd=cbr to emit a CBR bitstream. Quantizer mode
// zeroes the bitrate and drives quality through crf (and qmin/qmax for
// libvpx, which otherwise clamps crf).
func applyRateControl(ctx uintptr, implName string, mode BitrateMode, bitrate int64, quantizer int) {
	isVPX := strings.HasPrefix(implName, "libvpx")
	switch mode {
	case BitrateModeConstant:
		ctxSetBitRate(ctx, bitrate)
		avOptSetInt(ctx, "minrate", bitrate, avOptSearchChildren)
		avOptSetInt(ctx, "maxrate", bitrate, avOptSearchChildren)
		avOptSetInt(ctx, "bufsize", bitrate, avOptSearchChildren)
		if implName == "libx264" {
			avOptSet(ctx, "nal-hrd", "cbr", avOptSearchChildren)
		}
	case BitrateModeQuantizer:
		ctxSetBitRate(ctx, 0)
		crf := quantizer
		if crf < 0 {
			switch {
			case implName == "libx264" || implName == "libx265":
				crf = 23
			default:
				crf = 30
			}
		}
		avOptSetInt(ctx, "crf", int64(crf), avOptSearchChildren)
		if isVPX {
			avOptSetInt(ctx, "qmin", 0, avOptSearchChildren)
			avOptSetInt(ctx, "qmax", 63, avOptSearchChildren)
		}
	default: // variable
		ctxSetBitRate(ctx, bitrate)
	}
}

// applyTemporalLayers configures libvpx temporal SVC. Only libvpx
// understands the ts-parameters string; other implementations encode
// single-layer and the mode is surfaced as unsupported at validation time.
func applyTemporalLayers(ctx uintptr, implName string, layers int, bitrate int64) bool {
	opts, ok := temporalLayerOptions(implName, layers, bitrate)
	if !ok {
		return false
	}
	for _, opt := range opts {
		avOptSet(ctx, opt.name, opt.value, avOptSearchChildren)
	}
	return true
}

// temporalLayerOptions builds the libvpx option set for a temporal layer
// count. Upper layers must stay droppable, so alt-ref dependencies are
// disabled and error resilience is on before ts-parameters.
func temporalLayerOptions(implName string, layers int, bitrate int64) ([]optPair, bool) {
	if !strings.HasPrefix(implName, "libvpx") {
		return nil, false
	}
	plan, ok := temporalLayerPlans[layers]
	if !ok {
		return nil, false
	}
	bitrates := make([]string, layers)
	for i, frac := range plan.BitrateFractions {
		bitrates[i] = strconv.Itoa(int(float64(bitrate) * frac / 1000)) // kbps
	}
	decimators := make([]string, layers)
	for i, d := range plan.RateDecimators {
		decimators[i] = strconv.Itoa(d)
	}
	layerIDs := make([]string, len(plan.LayerSequence))
	for i, id := range plan.LayerSequence {
		layerIDs[i] = strconv.Itoa(id)
	}
	params := "ts_number_layers=" + strconv.Itoa(layers) +
		":ts_target_bitrate=" + strings.Join(bitrates, ",") +
		":ts_rate_decimator=" + strings.Join(decimators, ",") +
		":ts_periodicity=" + strconv.Itoa(plan.Periodicity) +
		":ts_layer_id=" + strings.Join(layerIDs, ",")
	return []optPair{
		{"error-resilient", "1"},
		{"auto-alt-ref", "0"},
		{"ts-parameters", params},
	}, true
}
