package webcodecs

import (
	"errors"
	"testing"
)

func TestParseCodecString(t *testing.T) {
	tests := []struct {
		in      string
		codec   VideoCodec
		profile int
		level   int
	}{
		{"vp8", VideoCodecVP8, -1, -1},
		{"vp09.00.10.08", VideoCodecVP9, 0, 10},
		{"vp09.02.10.10", VideoCodecVP9, 2, 10},
		{"avc1.42001f", VideoCodecH264, 0x42, 0x1f},
		{"avc1.640028", VideoCodecH264, 0x64, 0x28},
		{"avc3.42001f", VideoCodecH264, 0x42, 0x1f},
		{"hev1.1.6.L93.B0", VideoCodecH265, -1, -1},
		{"hvc1.1.6.L93.B0", VideoCodecH265, -1, -1},
		{"av01.0.04M.08", VideoCodecAV1, 0, -1},
	}

	for _, tt := range tests {
		info, err := ParseCodecString(tt.in)
		if err != nil {
			t.Errorf("ParseCodecString(%q): unexpected error %v", tt.in, err)
			continue
		}
		if info.Codec != tt.codec {
			t.Errorf("ParseCodecString(%q): codec = %v, want %v", tt.in, info.Codec, tt.codec)
		}
		if info.Profile != tt.profile {
			t.Errorf("ParseCodecString(%q): profile = %d, want %d", tt.in, info.Profile, tt.profile)
		}
		if info.Level != tt.level {
			t.Errorf("ParseCodecString(%q): level = %d, want %d", tt.in, info.Level, tt.level)
		}
	}
}

func TestParseCodecStringUnknown(t *testing.T) {
	for _, in := range []string{"", "theora", "mp4a.40.2", "vp10"} {
		if _, err := ParseCodecString(in); !errors.Is(err, ErrCodecNotSupported) {
			t.Errorf("ParseCodecString(%q): error = %v, want ErrCodecNotSupported", in, err)
		}
	}
}

func TestParseBitrateMode(t *testing.T) {
	tests := []struct {
		in      string
		want    BitrateMode
		wantErr bool
	}{
		{"", BitrateModeVariable, false},
		{"variable", BitrateModeVariable, false},
		{"constant", BitrateModeConstant, false},
		{"quantizer", BitrateModeQuantizer, false},
		{"cbr", BitrateModeVariable, true},
	}
	for _, tt := range tests {
		got, err := ParseBitrateMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBitrateMode(%q): err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseBitrateMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVideoCodecMimeType(t *testing.T) {
	tests := []struct {
		codec VideoCodec
		want  string
	}{
		{VideoCodecH264, "video/H264"},
		{VideoCodecVP8, "video/VP8"},
		{VideoCodecAV1, "video/AV1"},
		{VideoCodecUnknown, ""},
	}
	for _, tt := range tests {
		if got := tt.codec.MimeType(); got != tt.want {
			t.Errorf("%v.MimeType() = %q, want %q", tt.codec, got, tt.want)
		}
	}
}
