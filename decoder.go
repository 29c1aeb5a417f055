// VideoDecoder: asynchronous streaming video decoder, the mirror of
// VideoEncoder. Chunks go in, raw frames come out in submission order.

package webcodecs

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

// VideoDecoderConfig configures a VideoDecoder.
type VideoDecoderConfig struct {
	Codec       string // WebCodecs codec string
	CodedWidth  int    // hint, 0 to let the bitstream decide
	CodedHeight int

	// Description carries out-of-band initialization bytes (avcC/hvcC).
	// Without it H.264/H.265 input must be Annex B with in-band parameter
	// sets.
	Description []byte

	HardwareAcceleration HardwarePreference

	// OptimizeForLatency disables frame threading so each chunk decodes
	// without pipeline delay.
	OptimizeForLatency bool

	LoggerFactory logging.LoggerFactory
}

var newDecodeSessionFunc = func(cfg VideoDecoderConfig, info CodecInfo, log logging.LeveledLogger) (decodeSession, error) {
	return newDecodeSession(cfg, info, log)
}

// VideoDecoder decodes EncodedVideoChunks into VideoFrames asynchronously.
// All methods are safe for concurrent use; the result channels preserve
// submission order and are closed by Close.
type VideoDecoder struct {
	id  string
	log logging.LeveledLogger

	out     chan *VideoFrame
	errs    chan error
	flushed chan FlushToken
	done    chan struct{}

	mu        sync.Mutex
	state     sessionState
	queue     *jobQueue
	session   decodeSession
	wg        sync.WaitGroup
	nextToken FlushToken
}

// NewVideoDecoder creates an inert decoder.
func NewVideoDecoder() *VideoDecoder {
	return &VideoDecoder{
		id:      uuid.NewString(),
		log:     logging.NewDefaultLoggerFactory().NewLogger("webcodecs-decoder"),
		out:     make(chan *VideoFrame, 16),
		errs:    make(chan error, 16),
		flushed: make(chan FlushToken, 4),
		done:    make(chan struct{}),
	}
}

// Output delivers decoded frames in the order their chunks were submitted.
func (d *VideoDecoder) Output() <-chan *VideoFrame { return d.out }

// Errors delivers per-chunk errors. The stream continues after one.
func (d *VideoDecoder) Errors() <-chan error { return d.errs }

// Flushed delivers flush completions in Flush call order.
func (d *VideoDecoder) Flushed() <-chan FlushToken { return d.flushed }

// Configure opens a decoder session for cfg and starts the worker.
// Reconfiguring tears the old session down completely before opening the
// new one; a failed Configure leaves the decoder unconfigured.
func (d *VideoDecoder) Configure(cfg VideoDecoderConfig) error {
	info, err := ParseCodecString(cfg.Codec)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == stateClosed {
		return ErrClosed
	}
	if d.state == stateOpen {
		d.queue.close()
		d.wg.Wait()
		d.session = nil
	}
	d.state = stateConfiguring

	log := d.log
	if cfg.LoggerFactory != nil {
		log = cfg.LoggerFactory.NewLogger("webcodecs-decoder")
		d.log = log
	}
	log.Debugf("[%s] configure %s", d.id, cfg.Codec)

	session, err := newDecodeSessionFunc(cfg, info, log)
	if err != nil {
		d.state = stateUnconfigured
		return err
	}

	d.queue = newJobQueue()
	d.session = session
	d.state = stateOpen
	d.wg.Add(1)
	go d.run(d.queue, session)
	return nil
}

// Decode enqueues one chunk. The chunk's data transfers to the decoder;
// the caller must not mutate it afterward. Decode errors surface on Errors.
func (d *VideoDecoder) Decode(chunk *EncodedVideoChunk) error {
	if chunk == nil || len(chunk.Data) == 0 {
		return ErrInvalidFrame
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case stateClosed:
		return ErrClosed
	case stateOpen:
	default:
		return ErrNotConfigured
	}
	d.queue.push(job{kind: jobUnit, chunk: chunk})
	return nil
}

// Flush enqueues a barrier: every previously submitted chunk is fully
// decoded and emitted, then the returned token appears on Flushed.
func (d *VideoDecoder) Flush() (FlushToken, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case stateClosed:
		return 0, ErrClosed
	case stateOpen:
	default:
		return 0, ErrNotConfigured
	}
	d.nextToken++
	tok := d.nextToken
	d.queue.push(job{kind: jobFlush, token: tok})
	return tok, nil
}

// Reset discards all queued chunks and flush barriers and drops the
// decoder's buffered state. Decoding must resume at a keyframe.
func (d *VideoDecoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case stateClosed:
		return ErrClosed
	case stateOpen:
	default:
		return ErrNotConfigured
	}
	d.queue.reset()
	return nil
}

// Close discards queued jobs, joins the worker, releases the session and
// closes the result channels. Idempotent.
func (d *VideoDecoder) Close() {
	d.mu.Lock()
	if d.state == stateClosed {
		d.mu.Unlock()
		return
	}
	wasOpen := d.state == stateOpen
	d.state = stateClosed
	d.mu.Unlock()

	close(d.done)
	if wasOpen {
		d.queue.close()
		d.wg.Wait()
	}
	close(d.out)
	close(d.errs)
	close(d.flushed)
	d.log.Debugf("[%s] closed", d.id)
}

// Implementation returns the FFmpeg implementation name of the open
// session, or "".
func (d *VideoDecoder) Implementation() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return ""
	}
	return d.session.Implementation()
}

// HardwareAccelerated reports whether the open session runs on an
// accelerator.
func (d *VideoDecoder) HardwareAccelerated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session != nil && d.session.HardwareAccelerated()
}

func (d *VideoDecoder) run(q *jobQueue, s decodeSession) {
	defer d.wg.Done()
	defer s.Close()
	for {
		j, ok := q.pop()
		if !ok {
			return
		}
		switch j.kind {
		case jobUnit:
			frames, err := s.Decode(j.chunk)
			d.emitFrames(frames)
			if err != nil {
				d.emitError(fmt.Errorf("decode ts=%d: %w", j.chunk.Timestamp, err))
			}
		case jobFlush:
			frames, err := s.Drain()
			d.emitFrames(frames)
			if err != nil {
				d.emitError(err)
			}
			s.Reset()
			select {
			case d.flushed <- j.token:
			case <-d.done:
			}
		case jobReset:
			s.Reset()
		}
	}
}

func (d *VideoDecoder) emitFrames(frames []*VideoFrame) {
	for _, f := range frames {
		select {
		case d.out <- f:
		case <-d.done:
			return
		}
	}
}

func (d *VideoDecoder) emitError(err error) {
	select {
	case d.errs <- err:
	case <-d.done:
	}
}
