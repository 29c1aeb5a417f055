package webcodecs

import (
	"fmt"
	"regexp"
)

// ScalabilityConfig is the parsed form of a WebCodecs scalabilityMode string.
//
// Format: [L|S]<spatial>T<temporal>[h][_KEY][_SHIFT]
// Examples:
//
//	L1T2  - 1 spatial layer, 2 temporal layers
//	L3T3h - 3 spatial layers, 3 temporal layers, 1.5x spatial ratio
//	S2T1  - simulcast with 2 streams
//
// Parsed once at configure time and never mutated mid-stream.
type ScalabilityConfig struct {
	SpatialLayers  int
	TemporalLayers int
	Simulcast      bool    // 'S' prefix
	SpatialRatio   float32 // 1.5 for 'h' suffix, 2.0 otherwise
	KeyMode        bool    // _KEY suffix
	ShiftMode      bool    // _SHIFT suffix
}

var scalabilityModeRE = regexp.MustCompile(`^([LS])(\d)T(\d)(h)?(_KEY)?(_SHIFT)?$`)

// ParseScalabilityMode parses a scalabilityMode string. The empty string and
// unrecognized strings yield the default single-layer configuration.
func ParseScalabilityMode(mode string) ScalabilityConfig {
	cfg := ScalabilityConfig{SpatialLayers: 1, TemporalLayers: 1, SpatialRatio: 2.0}
	if mode == "" {
		return cfg
	}

	m := scalabilityModeRE.FindStringSubmatch(mode)
	if m == nil {
		return cfg
	}

	cfg.Simulcast = m[1] == "S"
	cfg.SpatialLayers = int(m[2][0] - '0')
	cfg.TemporalLayers = int(m[3][0] - '0')
	if m[4] != "" {
		cfg.SpatialRatio = 1.5
	}
	cfg.KeyMode = m[5] != ""
	cfg.ShiftMode = m[6] != ""
	return cfg
}

// ValidateScalabilityMode checks that a mode is in the supported set.
// Only temporal-only SVC is supported: L1T1, L1T2, L1T3. Spatial layering and
// simulcast are rejected with a descriptive error before any codec is opened.
func ValidateScalabilityMode(mode string) error {
	if mode == "" {
		return nil
	}
	cfg := ParseScalabilityMode(mode)
	if cfg.SpatialLayers > 1 || cfg.Simulcast {
		return fmt.Errorf("%w: %q (spatial layers and simulcast are not supported)",
			ErrUnsupportedScalabilityMode, mode)
	}
	if cfg.TemporalLayers < 1 || cfg.TemporalLayers > 3 {
		return fmt.Errorf("%w: %q (1-3 temporal layers supported)",
			ErrUnsupportedScalabilityMode, mode)
	}
	return nil
}

// temporalLayerPlan describes the fixed bitrate-fraction and frame-decimation
// tables for the two supported multi-layer counts.
type temporalLayerPlan struct {
	BitrateFractions []float64 // per layer, cumulative target as fraction of total
	RateDecimators   []int     // per layer, frame decimation factor
	Periodicity      int
	LayerSequence    []int // ts_layer_id pattern over one period
}

var temporalLayerPlans = map[int]temporalLayerPlan{
	2: {
		BitrateFractions: []float64{0.6, 1.0},
		RateDecimators:   []int{2, 1},
		Periodicity:      2,
		LayerSequence:    []int{0, 1},
	},
	3: {
		BitrateFractions: []float64{0.25, 0.5, 1.0},
		RateDecimators:   []int{4, 2, 1},
		Periodicity:      4,
		LayerSequence:    []int{0, 2, 1, 2},
	},
}
