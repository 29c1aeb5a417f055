package webcodecs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
)

// fakeDecodeSession emits one frame per chunk, or buffers until Drain when
// buffered is set.
type fakeDecodeSession struct {
	mu       sync.Mutex
	buffered bool
	pending  []*VideoFrame
	decoded  int
	resets   int
	closed   bool
}

func (s *fakeDecodeSession) Decode(chunk *EncodedVideoChunk) ([]*VideoFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decoded++
	frame := &VideoFrame{Width: 16, Height: 16, Format: PixelFormatI420, Timestamp: chunk.Timestamp}
	if s.buffered {
		s.pending = append(s.pending, frame)
		return nil, nil
	}
	return []*VideoFrame{frame}, nil
}

func (s *fakeDecodeSession) Drain() ([]*VideoFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out, nil
}

func (s *fakeDecodeSession) Reset() {
	s.mu.Lock()
	s.resets++
	s.pending = nil
	s.mu.Unlock()
}

func (s *fakeDecodeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeDecodeSession) Implementation() string    { return "fake" }
func (s *fakeDecodeSession) HardwareAccelerated() bool { return false }

func withFakeDecodeSession(t *testing.T, s *fakeDecodeSession) {
	t.Helper()
	prev := newDecodeSessionFunc
	newDecodeSessionFunc = func(VideoDecoderConfig, CodecInfo, logging.LeveledLogger) (decodeSession, error) {
		return s, nil
	}
	t.Cleanup(func() { newDecodeSessionFunc = prev })
}

func testChunk(ts int64) *EncodedVideoChunk {
	return &EncodedVideoChunk{Data: []byte{0xde, 0xad}, Type: ChunkTypeKey, Timestamp: ts}
}

func TestDecoderMisuse(t *testing.T) {
	dec := NewVideoDecoder()
	if err := dec.Decode(testChunk(0)); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Decode before Configure: %v, want ErrNotConfigured", err)
	}
	if _, err := dec.Flush(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Flush before Configure: %v, want ErrNotConfigured", err)
	}

	dec.Close()
	if err := dec.Decode(testChunk(0)); !errors.Is(err, ErrClosed) {
		t.Errorf("Decode after Close: %v, want ErrClosed", err)
	}
	if err := dec.Configure(VideoDecoderConfig{Codec: "vp8"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Configure after Close: %v, want ErrClosed", err)
	}
}

func TestDecoderRejectsEmptyChunk(t *testing.T) {
	withFakeDecodeSession(t, &fakeDecodeSession{})
	dec := NewVideoDecoder()
	defer dec.Close()
	if err := dec.Configure(VideoDecoderConfig{Codec: "vp8"}); err != nil {
		t.Fatal(err)
	}
	if err := dec.Decode(nil); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("nil chunk: %v, want ErrInvalidFrame", err)
	}
	if err := dec.Decode(&EncodedVideoChunk{}); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("empty chunk: %v, want ErrInvalidFrame", err)
	}
}

func TestDecoderOutputOrder(t *testing.T) {
	withFakeDecodeSession(t, &fakeDecodeSession{})
	dec := NewVideoDecoder()
	if err := dec.Configure(VideoDecoderConfig{Codec: "avc1.42001f"}); err != nil {
		t.Fatal(err)
	}

	const n = 50
	for i := 0; i < n; i++ {
		if err := dec.Decode(testChunk(int64(i + 1))); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < n; i++ {
		frame := <-dec.Output()
		if frame.Timestamp != int64(i+1) {
			t.Fatalf("frame %d has timestamp %d", i, frame.Timestamp)
		}
	}
	dec.Close()
}

func TestDecoderFlushBarrier(t *testing.T) {
	fake := &fakeDecodeSession{buffered: true}
	withFakeDecodeSession(t, fake)
	dec := NewVideoDecoder()
	defer dec.Close()
	if err := dec.Configure(VideoDecoderConfig{Codec: "vp8"}); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		if err := dec.Decode(testChunk(int64(i))); err != nil {
			t.Fatal(err)
		}
	}
	tok, err := dec.Flush()
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		select {
		case frame := <-dec.Output():
			if frame.Timestamp != int64(i) {
				t.Fatalf("frame timestamp %d, want %d", frame.Timestamp, i)
			}
		case got := <-dec.Flushed():
			t.Fatalf("flush token %d delivered before frame %d", got, i)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
	select {
	case got := <-dec.Flushed():
		if got != tok {
			t.Fatalf("flush token %d, want %d", got, tok)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for flush token")
	}

	// The session is reset after each barrier so decoding can continue.
	fake.mu.Lock()
	resets := fake.resets
	fake.mu.Unlock()
	if resets != 1 {
		t.Errorf("session reset %d times after flush, want 1", resets)
	}
}

func TestDecoderCloseClosesChannels(t *testing.T) {
	fake := &fakeDecodeSession{}
	withFakeDecodeSession(t, fake)
	dec := NewVideoDecoder()
	if err := dec.Configure(VideoDecoderConfig{Codec: "vp8"}); err != nil {
		t.Fatal(err)
	}

	dec.Close()
	dec.Close()

	if _, ok := <-dec.Output(); ok {
		t.Error("Output not closed")
	}
	if _, ok := <-dec.Flushed(); ok {
		t.Error("Flushed not closed")
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if !fake.closed {
		t.Error("session not closed")
	}
}

func TestDecoderReconfigure(t *testing.T) {
	first := &fakeDecodeSession{}
	second := &fakeDecodeSession{}
	sessions := []*fakeDecodeSession{first, second}
	var firstClosedAtSecondOpen bool
	prev := newDecodeSessionFunc
	newDecodeSessionFunc = func(VideoDecoderConfig, CodecInfo, logging.LeveledLogger) (decodeSession, error) {
		s := sessions[0]
		sessions = sessions[1:]
		if s == second {
			first.mu.Lock()
			firstClosedAtSecondOpen = first.closed
			first.mu.Unlock()
		}
		return s, nil
	}
	t.Cleanup(func() { newDecodeSessionFunc = prev })

	dec := NewVideoDecoder()
	defer dec.Close()
	if err := dec.Configure(VideoDecoderConfig{Codec: "vp8"}); err != nil {
		t.Fatal(err)
	}
	if err := dec.Configure(VideoDecoderConfig{Codec: "vp09.00.10.08"}); err != nil {
		t.Fatal(err)
	}

	if !firstClosedAtSecondOpen {
		t.Error("previous session still open when the new session was created")
	}

	if err := dec.Decode(testChunk(7)); err != nil {
		t.Fatal(err)
	}
	if frame := <-dec.Output(); frame.Timestamp != 7 {
		t.Fatalf("post-reconfigure frame timestamp %d", frame.Timestamp)
	}
	second.mu.Lock()
	if second.decoded != 1 {
		t.Errorf("new session decoded %d chunks", second.decoded)
	}
	second.mu.Unlock()
}
