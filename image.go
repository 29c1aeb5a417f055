// ImageDecoder: single-shot still image decoding.
//
// Unlike VideoDecoder there is no worker or queue; the whole encoded image
// is in hand, so Decode runs synchronously on the caller's goroutine.

package webcodecs

import (
	"fmt"
	"strings"

	"github.com/pion/logging"
)

// imageDecoderNames maps MIME types to FFmpeg decoder implementation names,
// in preference order.
var imageDecoderNames = map[string][]string{
	"image/jpeg": {"mjpeg"},
	"image/png":  {"png"},
	"image/webp": {"webp"},
	"image/gif":  {"gif"},
	"image/avif": {"libdav1d", "av1"},
	"image/bmp":  {"bmp"},
	"image/tiff": {"tiff"},
}

// IsImageTypeSupported reports whether a MIME type has a known decoder
// mapping. It does not check whether the decoder is built into the loaded
// FFmpeg; NewImageDecoder does.
func IsImageTypeSupported(mimeType string) bool {
	_, ok := imageDecoderNames[normalizeMimeType(mimeType)]
	return ok
}

func normalizeMimeType(s string) string {
	s, _, _ = strings.Cut(s, ";")
	return strings.ToLower(strings.TrimSpace(s))
}

// ImageDecoderConfig configures an ImageDecoder.
type ImageDecoderConfig struct {
	MimeType string

	// DesiredWidth/DesiredHeight request output scaling. Zero means native
	// size. Frames are scaled to exactly the desired size; the aspect
	// ratio is not preserved.
	DesiredWidth  int
	DesiredHeight int

	LoggerFactory logging.LoggerFactory
}

// ImageDecoder decodes complete still images (and animated GIF/WebP frame
// sequences) into I420 VideoFrames. Not safe for concurrent use.
type ImageDecoder struct {
	ctx    uintptr
	frame  uintptr
	pkt    uintptr
	conv   uintptr // swscale context for the output format
	convIn converterKey

	cfg    ImageDecoderConfig
	scaler *VideoScaler
	closed bool
	log    logging.LeveledLogger
}

// NewImageDecoder opens a decoder for the MIME type.
func NewImageDecoder(cfg ImageDecoderConfig) (*ImageDecoder, error) {
	if err := loadFFmpeg(); err != nil {
		return nil, err
	}
	names, ok := imageDecoderNames[normalizeMimeType(cfg.MimeType)]
	if !ok {
		return nil, fmt.Errorf("%w: mime type %q", ErrCodecNotSupported, cfg.MimeType)
	}

	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	d := &ImageDecoder{cfg: cfg, log: lf.NewLogger("webcodecs-image")}

	var codec uintptr
	var name string
	for _, n := range names {
		if codec = avcodecFindDecoderByName(n); codec != 0 {
			name = n
			break
		}
	}
	if codec == 0 {
		return nil, fmt.Errorf("%w: no decoder for %q", ErrCodecNotSupported, cfg.MimeType)
	}
	d.ctx = avcodecAllocContext3(codec)
	if d.ctx == 0 {
		return nil, fmt.Errorf("avcodec_alloc_context3 failed")
	}
	if code := avcodecOpen2(d.ctx, codec, 0); code < 0 {
		d.Close()
		return nil, averror(code, "avcodec_open2")
	}
	d.frame = avFrameAlloc()
	d.pkt = avPacketAlloc()
	if d.frame == 0 || d.pkt == 0 {
		d.Close()
		return nil, fmt.Errorf("frame/packet allocation failed")
	}
	if cfg.DesiredWidth > 0 && cfg.DesiredHeight > 0 {
		d.scaler = NewVideoScaler(cfg.DesiredWidth, cfg.DesiredHeight, ScaleModeStretch)
	}
	d.log.Debugf("image decoder open: %s", name)
	return d, nil
}

// Decode decodes one complete encoded image. Animated formats yield one
// frame per animation frame. The decoder can be reused for further images
// of the same type.
func (d *ImageDecoder) Decode(data []byte) ([]*VideoFrame, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if len(data) == 0 {
		return nil, ErrInvalidFrame
	}

	avPacketUnref(d.pkt)
	setPktData(d.pkt, data)
	code := avcodecSendPacket(d.ctx, d.pkt)
	setPktData(d.pkt, nil)
	if code < 0 {
		return nil, averror(code, "avcodec_send_packet")
	}

	var out []*VideoFrame
	for {
		code = avcodecReceiveFrame(d.ctx, d.frame)
		if code == averrEAGAIN || code == averrEOF {
			break
		}
		if code < 0 {
			return out, averror(code, "avcodec_receive_frame")
		}
		frame, err := d.frameToI420()
		avFrameUnref(d.frame)
		if err != nil {
			return out, err
		}
		out = append(out, frame)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no frame decoded", ErrInvalidFrame)
	}
	return out, nil
}

// frameToI420 converts the decoded frame to I420 at the desired size.
// Same-format frames copy straight out; everything else goes through
// swscale first, then through the pure-Go scaler when a desired size is
// set, which keeps swscale contexts keyed only by source shape.
func (d *ImageDecoder) frameToI420() (*VideoFrame, error) {
	width := frameWidth(d.frame)
	height := frameHeight(d.frame)
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidFrame
	}

	var frame *VideoFrame
	if f, ok := pixelFormatFromAV(frameFormat(d.frame)); ok && (f == PixelFormatI420 || f == PixelFormatI420A) {
		var err error
		if frame, err = downloadFrame(d.frame); err != nil {
			return nil, err
		}
	} else {
		key := converterKey{
			srcWidth: width, srcHeight: height, srcFormat: frameFormat(d.frame),
			dstWidth: width, dstHeight: height, dstFormat: pixFmtYUV420P,
		}
		if d.conv == 0 || d.convIn != key {
			if d.conv != 0 {
				swsFreeContext(d.conv)
			}
			d.conv = swsGetContext(
				int32(width), int32(height), int32(key.srcFormat),
				int32(width), int32(height), pixFmtYUV420P,
				swsBilinear, 0, 0, 0)
			if d.conv == 0 {
				return nil, fmt.Errorf("sws_getContext: unsupported source format %d", key.srcFormat)
			}
			d.convIn = key
		}

		frame = NewI420Frame(width, height)
		var srcPtrs []uintptr
		var srcStrides []int
		for i := 0; i < 4; i++ {
			srcPtrs = append(srcPtrs, frameDataPtr(d.frame, i))
			srcStrides = append(srcStrides, frameLinesize(d.frame, i))
		}
		swsScalePlanes(d.conv, srcPtrs, srcStrides, height,
			slicePtrs(frame.Data), frame.Stride)
	}

	frame.Timestamp = framePTS(d.frame)
	if d.scaler != nil {
		frame = d.scaler.Scale(frame).Clone()
	}
	return frame, nil
}

// Reset drops decoder state so an unrelated image can follow a partial or
// failed decode.
func (d *ImageDecoder) Reset() {
	if d.closed {
		return
	}
	avcodecFlushBuffers(d.ctx)
}

// Close releases the decoder. Idempotent.
func (d *ImageDecoder) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if d.conv != 0 {
		swsFreeContext(d.conv)
		d.conv = 0
	}
	if d.frame != 0 {
		freeStaged(d.frame, avFrameFree)
		d.frame = 0
	}
	if d.pkt != 0 {
		freeStaged(d.pkt, avPacketFree)
		d.pkt = 0
	}
	if d.ctx != 0 {
		freeStaged(d.ctx, avcodecFreeContext)
		d.ctx = 0
	}
}
