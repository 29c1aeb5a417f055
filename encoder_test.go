package webcodecs

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
)

// fakeEncodeSession runs the worker machinery without FFmpeg. When buffered
// is set it holds chunks until Drain, mimicking a codec with lookahead.
type fakeEncodeSession struct {
	mu       sync.Mutex
	buffered bool
	pending  []*EncodedVideoChunk
	encoded  int
	resets   int
	closed   bool
	gate     chan struct{} // when non-nil, Encode blocks until it closes
	started  chan struct{} // when non-nil, signalled on Encode entry
	failTS   int64         // frames with this timestamp fail (0 disables)
}

func (s *fakeEncodeSession) Encode(frame *VideoFrame, keyFrame bool) ([]*EncodedVideoChunk, error) {
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoded++
	if s.failTS != 0 && frame.Timestamp == s.failTS {
		return nil, fmt.Errorf("synthetic encode failure at %d", frame.Timestamp)
	}
	chunk := &EncodedVideoChunk{Timestamp: frame.Timestamp, Data: []byte{1}}
	if keyFrame {
		chunk.Type = ChunkTypeKey
	} else {
		chunk.Type = ChunkTypeDelta
	}
	if s.buffered {
		s.pending = append(s.pending, chunk)
		return nil, nil
	}
	return []*EncodedVideoChunk{chunk}, nil
}

func (s *fakeEncodeSession) Drain() ([]*EncodedVideoChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out, nil
}

func (s *fakeEncodeSession) Reset() {
	s.mu.Lock()
	s.resets++
	s.pending = nil
	s.mu.Unlock()
}

func (s *fakeEncodeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeEncodeSession) Implementation() string    { return "fake" }
func (s *fakeEncodeSession) HardwareAccelerated() bool { return false }

// withFakeEncodeSession routes Configure to the fake for the test's duration.
func withFakeEncodeSession(t *testing.T, s *fakeEncodeSession) {
	t.Helper()
	prev := newEncodeSessionFunc
	newEncodeSessionFunc = func(VideoEncoderConfig, CodecInfo, logging.LeveledLogger) (encodeSession, error) {
		return s, nil
	}
	t.Cleanup(func() { newEncodeSessionFunc = prev })
}

func testFrame(ts int64) *VideoFrame {
	f := NewI420Frame(16, 16)
	f.Timestamp = ts
	return f
}

func TestEncoderMisuse(t *testing.T) {
	enc := NewVideoEncoder()
	if err := enc.Encode(testFrame(0), EncodeOptions{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Encode before Configure: %v, want ErrNotConfigured", err)
	}
	if _, err := enc.Flush(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Flush before Configure: %v, want ErrNotConfigured", err)
	}
	if err := enc.Reset(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Reset before Configure: %v, want ErrNotConfigured", err)
	}

	enc.Close()
	if err := enc.Encode(testFrame(0), EncodeOptions{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Encode after Close: %v, want ErrClosed", err)
	}
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 16, 16)); !errors.Is(err, ErrClosed) {
		t.Errorf("Configure after Close: %v, want ErrClosed", err)
	}
}

func TestEncoderRejectsInvalidInput(t *testing.T) {
	withFakeEncodeSession(t, &fakeEncodeSession{})
	enc := NewVideoEncoder()
	defer enc.Close()
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 16, 16)); err != nil {
		t.Fatal(err)
	}

	if err := enc.Encode(&VideoFrame{}, EncodeOptions{}); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("empty frame: %v, want ErrInvalidFrame", err)
	}
	if err := enc.Configure(DefaultVideoEncoderConfig("theora", 16, 16)); !errors.Is(err, ErrCodecNotSupported) {
		t.Errorf("unknown codec: %v, want ErrCodecNotSupported", err)
	}
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 0, 16)); err == nil {
		t.Error("zero width accepted")
	}
	cfg := DefaultVideoEncoderConfig("vp8", 16, 16)
	cfg.ScalabilityMode = "L2T1"
	if err := enc.Configure(cfg); !errors.Is(err, ErrUnsupportedScalabilityMode) {
		t.Errorf("L2T1: %v, want ErrUnsupportedScalabilityMode", err)
	}
}

func TestEncoderOutputOrder(t *testing.T) {
	withFakeEncodeSession(t, &fakeEncodeSession{})
	enc := NewVideoEncoder()
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 16, 16)); err != nil {
		t.Fatal(err)
	}

	const n = 50
	for i := 0; i < n; i++ {
		if err := enc.Encode(testFrame(int64(i+1)), EncodeOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < n; i++ {
		chunk := <-enc.Output()
		if chunk.Timestamp != int64(i+1) {
			t.Fatalf("chunk %d has timestamp %d", i, chunk.Timestamp)
		}
	}
	enc.Close()
}

func TestEncoderFlushBarrier(t *testing.T) {
	withFakeEncodeSession(t, &fakeEncodeSession{buffered: true})
	enc := NewVideoEncoder()
	defer enc.Close()
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 16, 16)); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		if err := enc.Encode(testFrame(int64(i)), EncodeOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	tok, err := enc.Flush()
	if err != nil {
		t.Fatal(err)
	}

	// All three chunks must arrive before the flush completion.
	for i := 1; i <= 3; i++ {
		select {
		case chunk := <-enc.Output():
			if chunk.Timestamp != int64(i) {
				t.Fatalf("chunk timestamp %d, want %d", chunk.Timestamp, i)
			}
		case got := <-enc.Flushed():
			t.Fatalf("flush token %d delivered before chunk %d", got, i)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for chunk")
		}
	}
	select {
	case got := <-enc.Flushed():
		if got != tok {
			t.Fatalf("flush token %d, want %d", got, tok)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for flush token")
	}
}

func TestEncoderFlushTokensOrdered(t *testing.T) {
	withFakeEncodeSession(t, &fakeEncodeSession{})
	enc := NewVideoEncoder()
	defer enc.Close()
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 16, 16)); err != nil {
		t.Fatal(err)
	}

	var toks []FlushToken
	for i := 0; i < 3; i++ {
		tok, err := enc.Flush()
		if err != nil {
			t.Fatal(err)
		}
		toks = append(toks, tok)
	}
	for i, want := range toks {
		select {
		case got := <-enc.Flushed():
			if got != want {
				t.Fatalf("completion %d: token %d, want %d", i, got, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for flush token")
		}
	}
}

func TestEncoderErrorDoesNotStopStream(t *testing.T) {
	withFakeEncodeSession(t, &fakeEncodeSession{failTS: 2})
	enc := NewVideoEncoder()
	defer enc.Close()
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 16, 16)); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		if err := enc.Encode(testFrame(int64(i)), EncodeOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	if chunk := <-enc.Output(); chunk.Timestamp != 1 {
		t.Fatalf("first chunk timestamp %d", chunk.Timestamp)
	}
	select {
	case err := <-enc.Errors():
		if err == nil {
			t.Fatal("nil error delivered")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error")
	}
	if chunk := <-enc.Output(); chunk.Timestamp != 3 {
		t.Fatalf("stream did not continue after error: timestamp %d", chunk.Timestamp)
	}
}

func TestEncoderResetDiscardsQueued(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakeEncodeSession{gate: gate, started: make(chan struct{}, 1)}
	withFakeEncodeSession(t, fake)
	enc := NewVideoEncoder()
	defer enc.Close()
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 16, 16)); err != nil {
		t.Fatal(err)
	}

	// First frame blocks in the session; the rest pile up in the queue.
	for i := 1; i <= 5; i++ {
		if err := enc.Encode(testFrame(int64(i)), EncodeOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	// Wait until the worker is inside Encode for frame 1, so Reset cannot
	// win the race and discard all five frames.
	select {
	case <-fake.started:
	case <-time.After(time.Second):
		t.Fatal("worker never started encoding")
	}
	if err := enc.Reset(); err != nil {
		t.Fatal(err)
	}
	close(gate)

	// The in-flight frame completes; the queued ones never run.
	if chunk := <-enc.Output(); chunk.Timestamp != 1 {
		t.Fatalf("in-flight chunk timestamp %d", chunk.Timestamp)
	}
	if err := enc.Encode(testFrame(100), EncodeOptions{}); err != nil {
		t.Fatal(err)
	}
	if chunk := <-enc.Output(); chunk.Timestamp != 100 {
		t.Fatalf("post-reset chunk timestamp %d, queued frames leaked", chunk.Timestamp)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.encoded != 2 {
		t.Errorf("session encoded %d frames, want 2", fake.encoded)
	}
	if fake.resets != 1 {
		t.Errorf("session reset %d times, want 1", fake.resets)
	}
}

func TestEncoderCloseIdempotentAndClosesChannels(t *testing.T) {
	fake := &fakeEncodeSession{}
	withFakeEncodeSession(t, fake)
	enc := NewVideoEncoder()
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 16, 16)); err != nil {
		t.Fatal(err)
	}

	enc.Close()
	enc.Close()

	if _, ok := <-enc.Output(); ok {
		t.Error("Output not closed")
	}
	if _, ok := <-enc.Errors(); ok {
		t.Error("Errors not closed")
	}
	if _, ok := <-enc.Flushed(); ok {
		t.Error("Flushed not closed")
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if !fake.closed {
		t.Error("session not closed")
	}
}

// A flush whose token was never delivered must resolve through channel
// close rather than hang.
func TestEncoderCloseResolvesPendingFlush(t *testing.T) {
	gate := make(chan struct{})
	withFakeEncodeSession(t, &fakeEncodeSession{gate: gate})
	enc := NewVideoEncoder()
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 16, 16)); err != nil {
		t.Fatal(err)
	}

	if err := enc.Encode(testFrame(1), EncodeOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	waiter := make(chan struct{})
	go func() {
		for range enc.Flushed() {
		}
		close(waiter)
	}()

	close(gate)
	enc.Close()
	select {
	case <-waiter:
	case <-time.After(time.Second):
		t.Fatal("flush waiter hung after Close")
	}
}

func TestEncoderReconfigure(t *testing.T) {
	first := &fakeEncodeSession{}
	second := &fakeEncodeSession{}
	sessions := []*fakeEncodeSession{first, second}
	var firstClosedAtSecondOpen bool
	prev := newEncodeSessionFunc
	newEncodeSessionFunc = func(VideoEncoderConfig, CodecInfo, logging.LeveledLogger) (encodeSession, error) {
		s := sessions[0]
		sessions = sessions[1:]
		if s == second {
			first.mu.Lock()
			firstClosedAtSecondOpen = first.closed
			first.mu.Unlock()
		}
		return s, nil
	}
	t.Cleanup(func() { newEncodeSessionFunc = prev })

	enc := NewVideoEncoder()
	defer enc.Close()
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 16, 16)); err != nil {
		t.Fatal(err)
	}
	if err := enc.Configure(DefaultVideoEncoderConfig("vp09.00.10.08", 32, 32)); err != nil {
		t.Fatal(err)
	}

	// At most one session is open at a time: the old one must be fully
	// torn down before the new one is created.
	if !firstClosedAtSecondOpen {
		t.Error("previous session still open when the new session was created")
	}
	first.mu.Lock()
	if !first.closed {
		t.Error("previous session not closed on reconfigure")
	}
	first.mu.Unlock()

	if err := enc.Encode(testFrame(5), EncodeOptions{}); err != nil {
		t.Fatal(err)
	}
	if chunk := <-enc.Output(); chunk.Timestamp != 5 {
		t.Fatalf("post-reconfigure chunk timestamp %d", chunk.Timestamp)
	}
	second.mu.Lock()
	if second.encoded != 1 {
		t.Errorf("new session encoded %d frames", second.encoded)
	}
	second.mu.Unlock()
}

func TestEncoderFailedReconfigureLeavesUnconfigured(t *testing.T) {
	first := &fakeEncodeSession{}
	calls := 0
	prev := newEncodeSessionFunc
	newEncodeSessionFunc = func(VideoEncoderConfig, CodecInfo, logging.LeveledLogger) (encodeSession, error) {
		calls++
		if calls > 1 {
			return nil, ErrNoEncoder
		}
		return first, nil
	}
	t.Cleanup(func() { newEncodeSessionFunc = prev })

	enc := NewVideoEncoder()
	defer enc.Close()
	if err := enc.Configure(DefaultVideoEncoderConfig("vp8", 16, 16)); err != nil {
		t.Fatal(err)
	}
	if err := enc.Configure(DefaultVideoEncoderConfig("vp09.00.10.08", 32, 32)); !errors.Is(err, ErrNoEncoder) {
		t.Fatalf("failed reconfigure: %v, want ErrNoEncoder", err)
	}

	// The old session was torn down before the open attempt, so the
	// encoder is back to unconfigured, not half-open.
	first.mu.Lock()
	if !first.closed {
		t.Error("previous session not closed by failed reconfigure")
	}
	first.mu.Unlock()
	if err := enc.Encode(testFrame(1), EncodeOptions{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Encode after failed reconfigure: %v, want ErrNotConfigured", err)
	}
}
