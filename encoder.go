// VideoEncoder: asynchronous streaming video encoder.
//
// Lifecycle: NewVideoEncoder → Configure → Encode*/Flush/Reset → Close.
// Configure is synchronous and fail-fast; everything after it is a
// non-blocking enqueue handled by the worker goroutine, with results
// delivered in submission order on the Output, Errors and Flushed channels.

package webcodecs

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

// VideoEncoderConfig configures a VideoEncoder. Codec is a WebCodecs codec
// string ("vp8", "vp09.00.10.08", "avc1.42001f", "hev1.1.6.L93.B0",
// "av01.0.04M.08").
type VideoEncoderConfig struct {
	Codec  string
	Width  int
	Height int

	Bitrate     int64       // target bits per second
	BitrateMode BitrateMode // variable (default), constant, quantizer
	Quantizer   int         // quantizer mode quality value, -1 for codec default

	Framerate        float64
	KeyframeInterval int // GOP size in frames, 0 for codec default

	LatencyMode          LatencyMode
	HardwareAcceleration HardwarePreference
	ScalabilityMode      string // "", "L1T1", "L1T2", "L1T3"
	Alpha                AlphaMode
	ColorSpace           *ColorSpace

	// AVC selects H.264/H.265 bitstream framing. AVCFormatAVC keeps
	// parameter sets out of band on keyframe chunks.
	AVC struct {
		Format AVCBitstreamFormat
	}

	LoggerFactory logging.LoggerFactory
}

// DefaultVideoEncoderConfig returns a realtime-leaning configuration for the
// given codec string and dimensions.
func DefaultVideoEncoderConfig(codec string, width, height int) VideoEncoderConfig {
	return VideoEncoderConfig{
		Codec:            codec,
		Width:            width,
		Height:           height,
		Bitrate:          1_000_000,
		Framerate:        30,
		KeyframeInterval: 60,
		Quantizer:        -1,
		LatencyMode:      LatencyModeRealtime,
	}
}

// EncodeOptions carries per-frame encode parameters.
type EncodeOptions struct {
	// KeyFrame forces this frame to be encoded as a keyframe.
	KeyFrame bool
}

// testable seam; swapped in tests for a fake session.
var newEncodeSessionFunc = func(cfg VideoEncoderConfig, info CodecInfo, log logging.LeveledLogger) (encodeSession, error) {
	return newEncodeSession(cfg, info, log)
}

// VideoEncoder encodes raw frames into EncodedVideoChunks asynchronously.
// All methods are safe for concurrent use. The three result channels each
// preserve submission order and are closed by Close.
type VideoEncoder struct {
	id  string
	log logging.LeveledLogger

	out     chan *EncodedVideoChunk
	errs    chan error
	flushed chan FlushToken
	done    chan struct{}

	mu        sync.Mutex
	state     sessionState
	queue     *jobQueue
	session   encodeSession
	wg        sync.WaitGroup
	nextToken FlushToken
}

// NewVideoEncoder creates an inert encoder. It produces nothing until
// Configure succeeds.
func NewVideoEncoder() *VideoEncoder {
	return &VideoEncoder{
		id:      uuid.NewString(),
		log:     logging.NewDefaultLoggerFactory().NewLogger("webcodecs-encoder"),
		out:     make(chan *EncodedVideoChunk, 16),
		errs:    make(chan error, 16),
		flushed: make(chan FlushToken, 4),
		done:    make(chan struct{}),
	}
}

// Output delivers encoded chunks in the order their frames were submitted.
func (e *VideoEncoder) Output() <-chan *EncodedVideoChunk { return e.out }

// Errors delivers per-frame errors. The stream continues after one.
func (e *VideoEncoder) Errors() <-chan error { return e.errs }

// Flushed delivers flush completions in Flush call order.
func (e *VideoEncoder) Flushed() <-chan FlushToken { return e.flushed }

// Configure opens a codec session for cfg and starts the worker. Calling it
// on an already configured encoder first finishes the in-flight job, tears
// the old session down completely, and only then opens the new one, so at
// most one session is ever open. A failed Configure leaves the encoder
// unconfigured.
func (e *VideoEncoder) Configure(cfg VideoEncoderConfig) error {
	if err := ValidateScalabilityMode(cfg.ScalabilityMode); err != nil {
		return err
	}
	info, err := ParseCodecString(cfg.Codec)
	if err != nil {
		return err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrInvalidFrame, cfg.Width, cfg.Height)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateClosed {
		return ErrClosed
	}
	if e.state == stateOpen {
		e.queue.close()
		e.wg.Wait()
		e.session = nil
	}
	e.state = stateConfiguring

	log := e.log
	if cfg.LoggerFactory != nil {
		log = cfg.LoggerFactory.NewLogger("webcodecs-encoder")
		e.log = log
	}
	log.Debugf("[%s] configure %s %dx%d", e.id, cfg.Codec, cfg.Width, cfg.Height)

	session, err := newEncodeSessionFunc(cfg, info, log)
	if err != nil {
		e.state = stateUnconfigured
		return err
	}

	e.queue = newJobQueue()
	e.session = session
	e.state = stateOpen
	e.wg.Add(1)
	go e.run(e.queue, session)
	return nil
}

// Encode enqueues one frame. The frame's planes transfer to the encoder;
// the caller must not mutate them afterward. Returns synchronously; encode
// errors surface on Errors.
func (e *VideoEncoder) Encode(frame *VideoFrame, opts EncodeOptions) error {
	if !frame.valid() {
		return ErrInvalidFrame
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case stateClosed:
		return ErrClosed
	case stateOpen:
	default:
		return ErrNotConfigured
	}
	e.queue.push(job{kind: jobUnit, frame: frame, keyFrame: opts.KeyFrame})
	return nil
}

// Flush enqueues a barrier: every previously submitted frame is fully
// encoded and emitted, then the returned token appears on Flushed.
// Encoding continues normally after the barrier.
func (e *VideoEncoder) Flush() (FlushToken, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case stateClosed:
		return 0, ErrClosed
	case stateOpen:
	default:
		return 0, ErrNotConfigured
	}
	e.nextToken++
	tok := e.nextToken
	e.queue.push(job{kind: jobFlush, token: tok})
	return tok, nil
}

// Reset discards all queued frames and flush barriers and drops the codec's
// buffered state. Tokens of discarded flushes are never delivered. Output
// resumes at the next keyframe.
func (e *VideoEncoder) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case stateClosed:
		return ErrClosed
	case stateOpen:
	default:
		return ErrNotConfigured
	}
	e.queue.reset()
	return nil
}

// Close discards queued jobs, joins the worker, releases the codec session
// and closes the three result channels. Idempotent.
func (e *VideoEncoder) Close() {
	e.mu.Lock()
	if e.state == stateClosed {
		e.mu.Unlock()
		return
	}
	wasOpen := e.state == stateOpen
	e.state = stateClosed
	e.mu.Unlock()

	close(e.done)
	if wasOpen {
		e.queue.close()
		e.wg.Wait()
	}
	close(e.out)
	close(e.errs)
	close(e.flushed)
	e.log.Debugf("[%s] closed", e.id)
}

// Implementation returns the FFmpeg implementation name of the open session,
// or "".
func (e *VideoEncoder) Implementation() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ""
	}
	return e.session.Implementation()
}

// HardwareAccelerated reports whether the open session runs on an
// accelerator.
func (e *VideoEncoder) HardwareAccelerated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil && e.session.HardwareAccelerated()
}

func (e *VideoEncoder) run(q *jobQueue, s encodeSession) {
	defer e.wg.Done()
	defer s.Close()
	for {
		j, ok := q.pop()
		if !ok {
			return
		}
		switch j.kind {
		case jobUnit:
			chunks, err := s.Encode(j.frame, j.keyFrame)
			e.emitChunks(chunks)
			if err != nil {
				e.emitError(err)
			}
		case jobFlush:
			chunks, err := s.Drain()
			e.emitChunks(chunks)
			if err != nil {
				e.emitError(err)
			}
			s.Reset()
			select {
			case e.flushed <- j.token:
			case <-e.done:
			}
		case jobReset:
			s.Reset()
		}
	}
}

func (e *VideoEncoder) emitChunks(chunks []*EncodedVideoChunk) {
	for _, c := range chunks {
		select {
		case e.out <- c:
		case <-e.done:
			return
		}
	}
}

func (e *VideoEncoder) emitError(err error) {
	select {
	case e.errs <- err:
	case <-e.done:
	}
}
