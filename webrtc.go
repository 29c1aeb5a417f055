// WebRTC bridging.
//
// Two adapters connect the codecs to pion tracks: encoder output feeds a
// TrackLocalStaticSample, and a TrackRemote's RTP stream is reassembled
// into chunks for a VideoDecoder. Packetization itself stays inside pion;
// this file only maps between chunks and samples.

package webcodecs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
)

const rtpVideoClockRate = 90000

// RTPCodecCapability returns the pion codec capability for a codec family.
func RTPCodecCapability(codec VideoCodec) (webrtc.RTPCodecCapability, error) {
	switch codec {
	case VideoCodecVP8:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: rtpVideoClockRate}, nil
	case VideoCodecVP9:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP9, ClockRate: rtpVideoClockRate}, nil
	case VideoCodecH264:
		return webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeH264,
			ClockRate:   rtpVideoClockRate,
			SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
		}, nil
	case VideoCodecH265:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH265, ClockRate: rtpVideoClockRate}, nil
	case VideoCodecAV1:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeAV1, ClockRate: rtpVideoClockRate}, nil
	default:
		return webrtc.RTPCodecCapability{}, fmt.Errorf("%w: %s", ErrCodecNotSupported, codec)
	}
}

// NewSampleTrack creates a local track suitable for ServeTrack with the
// given codec family.
func NewSampleTrack(codec VideoCodec, trackID, streamID string) (*webrtc.TrackLocalStaticSample, error) {
	capability, err := RTPCodecCapability(codec)
	if err != nil {
		return nil, err
	}
	return webrtc.NewTrackLocalStaticSample(capability, trackID, streamID)
}

// ServeTrack forwards encoder output into a local track until the encoder's
// Output channel closes. Chunk durations drive the RTP timestamp advance; a
// chunk without one falls back to defaultDuration. Blocks; run it on its
// own goroutine.
func ServeTrack(enc *VideoEncoder, track *webrtc.TrackLocalStaticSample, defaultDuration time.Duration) error {
	for chunk := range enc.Output() {
		d := time.Duration(chunk.Duration) * time.Microsecond
		if d <= 0 {
			d = defaultDuration
		}
		if err := track.WriteSample(media.Sample{Data: chunk.Data, Duration: d}); err != nil {
			return err
		}
	}
	return nil
}

// av1Depacketizer completes codecs.AV1Packet with the partition-head check
// the samplebuilder needs. The Z bit of the AV1 aggregation header marks a
// payload whose first OBU element continues the previous packet.
type av1Depacketizer struct {
	codecs.AV1Packet
}

func (*av1Depacketizer) IsPartitionHead(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	return payload[0]&0x80 == 0
}

// IsPartitionTail reports the end of a temporal unit: for AV1 over RTP the
// marker bit closes the unit, as with pion's other video depacketizers.
func (*av1Depacketizer) IsPartitionTail(marker bool, _ []byte) bool {
	return marker
}

// trackDepacketizer returns the pion depacketizer and sample reorder window
// for a codec family.
func trackDepacketizer(codec VideoCodec) (rtp.Depacketizer, uint16, error) {
	switch codec {
	case VideoCodecVP8:
		return &codecs.VP8Packet{}, 32, nil
	case VideoCodecVP9:
		return &codecs.VP9Packet{}, 32, nil
	case VideoCodecH264:
		return &codecs.H264Packet{}, 64, nil
	case VideoCodecH265:
		return &codecs.H265Packet{}, 64, nil
	case VideoCodecAV1:
		return &av1Depacketizer{}, 64, nil
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrCodecNotSupported, codec)
	}
}

// CodecFromMimeType maps a pion MIME type ("video/VP8", ...) to the codec
// family.
func CodecFromMimeType(mimeType string) VideoCodec {
	switch mimeType {
	case webrtc.MimeTypeVP8:
		return VideoCodecVP8
	case webrtc.MimeTypeVP9:
		return VideoCodecVP9
	case webrtc.MimeTypeH264:
		return VideoCodecH264
	case webrtc.MimeTypeH265:
		return VideoCodecH265
	case webrtc.MimeTypeAV1:
		return VideoCodecAV1
	default:
		return VideoCodecUnknown
	}
}

// FeedFromTrack reads RTP from a remote track, reassembles access units and
// submits them to the decoder until the context ends or the track closes.
// The decoder must already be configured for the track's codec. Blocks; run
// it on its own goroutine.
func FeedFromTrack(ctx context.Context, dec *VideoDecoder, track *webrtc.TrackRemote) error {
	codec := CodecFromMimeType(track.Codec().MimeType)
	depkt, maxLate, err := trackDepacketizer(codec)
	if err != nil {
		return err
	}
	builder := samplebuilder.New(maxLate, depkt, rtpVideoClockRate)

	var elapsed int64 // microseconds since the first sample
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		builder.Push(pkt)

		for {
			sample := builder.Pop()
			if sample == nil {
				break
			}
			chunk := &EncodedVideoChunk{
				Data:      sample.Data,
				Timestamp: elapsed,
				Duration:  sample.Duration.Microseconds(),
			}
			if isKeyframe(codec, sample.Data) {
				chunk.Type = ChunkTypeKey
			} else {
				chunk.Type = ChunkTypeDelta
			}
			elapsed += sample.Duration.Microseconds()
			if err := dec.Decode(chunk); err != nil {
				return err
			}
		}
	}
}

// isKeyframe inspects the start of an access unit for an intra-frame
// marker. AV1 temporal units are reported as delta; the decoder corrects
// the flag internally.
func isKeyframe(codec VideoCodec, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	switch codec {
	case VideoCodecVP8:
		return data[0]&0x01 == 0
	case VideoCodecVP9:
		// Uncompressed header: frame_marker(2) profile(2) show_existing(1)
		// frame_type(1), frame_type 0 = keyframe.
		if data[0]>>6 != 0x02 {
			return false
		}
		profile := (data[0] >> 4) & 0x03
		shift := 3
		if profile == 3 {
			shift = 2
		}
		if data[0]&(1<<shift) != 0 { // show_existing_frame
			return false
		}
		return data[0]&(1<<(shift-1)) == 0
	case VideoCodecH264:
		return containsNALType(data, func(b byte) bool { return b&0x1F == 5 })
	case VideoCodecH265:
		return containsNALType(data, func(b byte) bool {
			t := (b >> 1) & 0x3F
			return t >= 16 && t <= 21 // IRAP
		})
	default:
		return false
	}
}

// containsNALType scans Annex B start codes and tests each NAL's first byte.
func containsNALType(data []byte, match func(byte) bool) bool {
	for i := 0; i+3 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 {
			var next int
			switch {
			case data[i+2] == 1:
				next = i + 3
			case data[i+2] == 0 && data[i+3] == 1:
				next = i + 4
			default:
				continue
			}
			if next < len(data) && match(data[next]) {
				return true
			}
			i = next
		}
	}
	return false
}
