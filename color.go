package webcodecs

// Color metadata string<->enum mapping. Names follow the WebCodecs
// VideoColorSpace registry; numeric values are the libavutil
// AVColorPrimaries/AVColorTransferCharacteristic/AVColorSpace enums.

// ColorSpace describes the color interpretation of raw frames.
type ColorSpace struct {
	Primaries string // e.g. "bt709", "bt2020"
	Transfer  string // e.g. "bt709", "pq", "hlg"
	Matrix    string // e.g. "bt709", "bt2020-ncl"
	FullRange bool   // true = full (JPEG) range, false = limited (MPEG)
}

// libavutil enum values (stable across FFmpeg releases).
const (
	colPriUnspecified = 2
	colTrcUnspecified = 2
	colSpcUnspecified = 2

	colRangeMPEG = 1
	colRangeJPEG = 2
)

var colorPrimaries = map[string]int{
	"bt709":        1,
	"bt470bg":      5,
	"smpte170m":    6,
	"bt2020":       9,
	"smpte-rp-431": 11, // DCI P3
	"smpte432":     12, // Display P3
}

var colorTransfers = map[string]int{
	"bt709":        1,
	"gamma22":      4,
	"gamma28":      5,
	"smpte170m":    6,
	"linear":       8,
	"iec61966-2-1": 13, // sRGB
	"pq":           16, // SMPTE ST 2084 (BT.2100 PQ)
	"smpte2084":    16,
	"hlg":          18, // ARIB STD-B67 (BT.2100 HLG)
	"arib-std-b67": 18,
}

var colorMatrices = map[string]int{
	"rgb":        0,
	"bt709":      1,
	"bt470bg":    5,
	"smpte170m":  6,
	"smpte240m":  7,
	"ycgco":      8,
	"bt2020-ncl": 9,
	"bt2020-cl":  10,
}

// ParseColorPrimaries maps a primaries name to its libavutil enum value.
// Unknown names map to unspecified.
func ParseColorPrimaries(s string) int {
	if v, ok := colorPrimaries[s]; ok {
		return v
	}
	return colPriUnspecified
}

// ParseColorTransfer maps a transfer-characteristics name to its libavutil
// enum value. Unknown names map to unspecified.
func ParseColorTransfer(s string) int {
	if v, ok := colorTransfers[s]; ok {
		return v
	}
	return colTrcUnspecified
}

// ParseColorMatrix maps a matrix-coefficients name to its libavutil enum
// value. Unknown names map to unspecified.
func ParseColorMatrix(s string) int {
	if v, ok := colorMatrices[s]; ok {
		return v
	}
	return colSpcUnspecified
}

// ColorPrimariesName is the inverse of ParseColorPrimaries; unmapped values
// yield "".
func ColorPrimariesName(v int) string {
	for name, val := range colorPrimaries {
		if val == v {
			return name
		}
	}
	return ""
}

// ColorTransferName is the inverse of ParseColorTransfer. The canonical short
// names ("pq", "hlg") are preferred over the SMPTE/ARIB aliases.
func ColorTransferName(v int) string {
	switch v {
	case 16:
		return "pq"
	case 18:
		return "hlg"
	}
	for name, val := range colorTransfers {
		if val == v {
			return name
		}
	}
	return ""
}

// ColorMatrixName is the inverse of ParseColorMatrix; unmapped values yield "".
func ColorMatrixName(v int) string {
	for name, val := range colorMatrices {
		if val == v {
			return name
		}
	}
	return ""
}
