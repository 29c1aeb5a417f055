// Core frame and chunk types used across the webcodecs package.
package webcodecs

// PixelFormat represents video pixel formats.
type PixelFormat int

const (
	PixelFormatI420  PixelFormat = iota // YUV 4:2:0 planar (Y + U + V)
	PixelFormatI420A                    // YUV 4:2:0 planar with alpha plane
	PixelFormatNV12                     // YUV 4:2:0 semi-planar (Y + interleaved UV)
	PixelFormatRGBA                     // Packed RGBA, 4 bytes per pixel
	PixelFormatBGRA                     // Packed BGRA, 4 bytes per pixel
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatI420A:
		return "I420A"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatRGBA:
		return "RGBA"
	case PixelFormatBGRA:
		return "BGRA"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3
	case PixelFormatI420A:
		return 4
	case PixelFormatNV12:
		return 2
	case PixelFormatRGBA, PixelFormatBGRA:
		return 1
	default:
		return 0
	}
}

// HasAlpha reports whether the format carries an alpha channel.
func (p PixelFormat) HasAlpha() bool {
	return p == PixelFormatI420A || p == PixelFormatRGBA || p == PixelFormatBGRA
}

// VideoFrame represents a raw video frame.
// Ownership transfers to the codec on Encode(); callers must not mutate the
// plane data afterward.
type VideoFrame struct {
	Data      [][]byte    // Plane data (1-4 planes depending on format)
	Stride    []int       // Stride for each plane in bytes
	Width     int         // Frame width in pixels
	Height    int         // Frame height in pixels
	Format    PixelFormat // Pixel format
	Timestamp int64       // Presentation timestamp in microseconds
	Duration  int64       // Frame duration in microseconds (0 if unknown)
}

// Clone creates a deep copy of the video frame.
func (f *VideoFrame) Clone() *VideoFrame {
	clone := &VideoFrame{
		Data:      make([][]byte, len(f.Data)),
		Stride:    make([]int, len(f.Stride)),
		Width:     f.Width,
		Height:    f.Height,
		Format:    f.Format,
		Timestamp: f.Timestamp,
		Duration:  f.Duration,
	}
	copy(clone.Stride, f.Stride)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = make([]byte, len(plane))
			copy(clone.Data[i], plane)
		}
	}
	return clone
}

// valid reports whether the frame has a usable plane layout.
func (f *VideoFrame) valid() bool {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return false
	}
	n := f.Format.PlaneCount()
	if n == 0 || len(f.Data) < n || len(f.Stride) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if len(f.Data[i]) == 0 || f.Stride[i] <= 0 {
			return false
		}
	}
	return true
}

// NewI420Frame allocates a zeroed I420 frame with tightly packed planes.
func NewI420Frame(width, height int) *VideoFrame {
	ySize := width * height
	uvSize := (width / 2) * (height / 2)
	buf := make([]byte, ySize+2*uvSize)
	return &VideoFrame{
		Data:   [][]byte{buf[:ySize], buf[ySize : ySize+uvSize], buf[ySize+uvSize:]},
		Stride: []int{width, width / 2, width / 2},
		Width:  width,
		Height: height,
		Format: PixelFormatI420,
	}
}

// ChunkType indicates whether a chunk is independently decodable.
type ChunkType int

const (
	ChunkTypeKey   ChunkType = iota // can be decoded without prior chunks
	ChunkTypeDelta                  // requires previously decoded chunks
)

func (t ChunkType) String() string {
	if t == ChunkTypeKey {
		return "key"
	}
	return "delta"
}

// EncodedVideoChunk holds one compressed unit together with its side
// metadata. Produced by VideoEncoder, consumed by VideoDecoder.
type EncodedVideoChunk struct {
	Data      []byte
	Type      ChunkType
	Timestamp int64 // presentation timestamp in microseconds
	Duration  int64 // duration in microseconds (0 if unknown)

	// DecoderConfig carries the codec's out-of-band parameter set
	// (e.g. avcC/vpcC initialization bytes). Attached to keyframe chunks
	// when the implementation exposes extradata.
	DecoderConfig []byte

	// AlphaSideData carries the encoded alpha plane for codecs that store
	// transparency as block-additional side data (VP8/VP9 with alpha).
	AlphaSideData []byte

	// TemporalLayerID is the SVC temporal layer this chunk belongs to
	// (0 = base layer). Only meaningful when encoding with temporal layers.
	TemporalLayerID int
}

// IsKeyframe reports whether this chunk starts a decodable group.
func (c *EncodedVideoChunk) IsKeyframe() bool { return c.Type == ChunkTypeKey }

// Clone creates a deep copy of the chunk.
func (c *EncodedVideoChunk) Clone() *EncodedVideoChunk {
	clone := &EncodedVideoChunk{
		Type:            c.Type,
		Timestamp:       c.Timestamp,
		Duration:        c.Duration,
		TemporalLayerID: c.TemporalLayerID,
	}
	if c.Data != nil {
		clone.Data = append([]byte(nil), c.Data...)
	}
	if c.DecoderConfig != nil {
		clone.DecoderConfig = append([]byte(nil), c.DecoderConfig...)
	}
	if c.AlphaSideData != nil {
		clone.AlphaSideData = append([]byte(nil), c.AlphaSideData...)
	}
	return clone
}

// FlushToken identifies one Flush request. Completion is observed on the
// Flushed() channel, which emits tokens in submission order.
type FlushToken uint64
