package webcodecs

import (
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestRTPCodecCapability(t *testing.T) {
	capability, err := RTPCodecCapability(VideoCodecVP8)
	if err != nil {
		t.Fatal(err)
	}
	if capability.MimeType != webrtc.MimeTypeVP8 || capability.ClockRate != 90000 {
		t.Errorf("VP8 capability %+v", capability)
	}

	capability, err = RTPCodecCapability(VideoCodecH264)
	if err != nil {
		t.Fatal(err)
	}
	if capability.SDPFmtpLine == "" {
		t.Error("H264 capability has no fmtp line")
	}

	if _, err = RTPCodecCapability(VideoCodecUnknown); err == nil {
		t.Error("unknown codec produced a capability")
	}
}

func TestCodecFromMimeType(t *testing.T) {
	tests := []struct {
		in   string
		want VideoCodec
	}{
		{webrtc.MimeTypeVP8, VideoCodecVP8},
		{webrtc.MimeTypeVP9, VideoCodecVP9},
		{webrtc.MimeTypeH264, VideoCodecH264},
		{webrtc.MimeTypeAV1, VideoCodecAV1},
		{"audio/opus", VideoCodecUnknown},
	}
	for _, tt := range tests {
		if got := CodecFromMimeType(tt.in); got != tt.want {
			t.Errorf("CodecFromMimeType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsKeyframeVP8(t *testing.T) {
	if !isKeyframe(VideoCodecVP8, []byte{0x50, 0x00}) {
		t.Error("VP8 frame with P bit clear not detected as keyframe")
	}
	if isKeyframe(VideoCodecVP8, []byte{0x51, 0x00}) {
		t.Error("VP8 frame with P bit set detected as keyframe")
	}
	if isKeyframe(VideoCodecVP8, nil) {
		t.Error("empty payload detected as keyframe")
	}
}

func TestIsKeyframeH264(t *testing.T) {
	idr := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88}
	if !isKeyframe(VideoCodecH264, idr) {
		t.Error("IDR NAL not detected")
	}
	nonIDR := []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0x9a}
	if isKeyframe(VideoCodecH264, nonIDR) {
		t.Error("non-IDR NAL detected as keyframe")
	}
	// Short start code, IDR after a leading SPS.
	mixed := []byte{0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x00, 0x01, 0x65, 0x88}
	if !isKeyframe(VideoCodecH264, mixed) {
		t.Error("IDR after SPS not detected")
	}
}

func TestIsKeyframeH265(t *testing.T) {
	// NAL type 19 (IDR_W_RADL): (19 << 1) = 0x26.
	idr := []byte{0x00, 0x00, 0x00, 0x01, 0x26, 0x01}
	if !isKeyframe(VideoCodecH265, idr) {
		t.Error("IRAP NAL not detected")
	}
	// NAL type 1 (TRAIL_R).
	trail := []byte{0x00, 0x00, 0x00, 0x01, 0x02, 0x01}
	if isKeyframe(VideoCodecH265, trail) {
		t.Error("trailing NAL detected as keyframe")
	}
}

func TestNewSampleTrack(t *testing.T) {
	track, err := NewSampleTrack(VideoCodecVP8, "video", "stream")
	if err != nil {
		t.Fatal(err)
	}
	if track.Codec().MimeType != webrtc.MimeTypeVP8 {
		t.Errorf("track mime type %s", track.Codec().MimeType)
	}
	if _, err := NewSampleTrack(VideoCodecUnknown, "video", "stream"); err == nil {
		t.Error("unknown codec produced a track")
	}
}

func TestAV1DepacketizerPartitionHead(t *testing.T) {
	var d av1Depacketizer
	// Z bit clear: the first OBU element starts in this packet.
	if !d.IsPartitionHead([]byte{0x00, 0x01}) {
		t.Error("Z=0 payload not a partition head")
	}
	// Z bit set: continuation of the previous packet's OBU.
	if d.IsPartitionHead([]byte{0x80, 0x01}) {
		t.Error("Z=1 payload reported as partition head")
	}
	if d.IsPartitionHead(nil) {
		t.Error("empty payload reported as partition head")
	}
}

func TestTrackDepacketizerCoversAllCodecs(t *testing.T) {
	for _, codec := range []VideoCodec{VideoCodecVP8, VideoCodecVP9, VideoCodecH264, VideoCodecH265, VideoCodecAV1} {
		depkt, maxLate, err := trackDepacketizer(codec)
		if err != nil {
			t.Errorf("%v: %v", codec, err)
			continue
		}
		if depkt == nil || maxLate == 0 {
			t.Errorf("%v: depacketizer %v, maxLate %d", codec, depkt, maxLate)
		}
	}
}
