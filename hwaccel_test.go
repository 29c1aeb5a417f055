package webcodecs

import "testing"

func TestParseHardwarePreference(t *testing.T) {
	tests := []struct {
		in      string
		want    HardwarePreference
		wantErr bool
	}{
		{"", HardwareNoPreference, false},
		{"no-preference", HardwareNoPreference, false},
		{"prefer-hardware", HardwarePreferHardware, false},
		{"prefer-software", HardwarePreferSoftware, false},
		{"gpu", HardwareNoPreference, true},
	}
	for _, tt := range tests {
		got, err := ParseHardwarePreference(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHardwarePreference(%q): err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseHardwarePreference(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRankEncoderCandidatesSoftwareOnly(t *testing.T) {
	for _, codec := range []VideoCodec{VideoCodecH264, VideoCodecVP8, VideoCodecVP9, VideoCodecAV1} {
		for _, cand := range rankEncoderCandidates(codec, HardwarePreferSoftware) {
			if cand.hardware {
				t.Errorf("%v prefer-software produced hardware candidate %s", codec, cand.name)
			}
		}
	}
}

func TestRankEncoderCandidatesPreferHardwareFallsBack(t *testing.T) {
	cands := rankEncoderCandidates(VideoCodecH264, HardwarePreferHardware)
	if len(cands) == 0 {
		t.Fatal("no candidates for H264")
	}
	// The preference reorders the list but software remains at the tail so
	// configuration still succeeds on machines without an encode device.
	if last := cands[len(cands)-1]; last.hardware {
		t.Errorf("no software fallback at end of list: %s", last.name)
	}
	for i := 1; i < len(cands); i++ {
		if cands[i].hardware && !cands[i-1].hardware {
			t.Fatalf("hardware candidate %s after software", cands[i].name)
		}
	}
}

func TestRankEncoderCandidatesOrder(t *testing.T) {
	cands := rankEncoderCandidates(VideoCodecVP8, HardwareNoPreference)
	if len(cands) == 0 {
		t.Fatal("no candidates for VP8")
	}
	// Hardware candidates, if any, precede software; software closes the
	// list as the fallback tier.
	sawSoftware := false
	for _, c := range cands {
		if !c.hardware {
			sawSoftware = true
		} else if sawSoftware {
			t.Fatalf("hardware candidate %s after software", c.name)
		}
	}
	if last := cands[len(cands)-1]; last.hardware {
		t.Errorf("no software fallback at end of list: %s", last.name)
	}
}

func TestRankDecoderCandidates(t *testing.T) {
	cands := rankDecoderCandidates(VideoCodecH264, HardwarePreferSoftware)
	if len(cands) == 0 {
		t.Fatal("no software decoder candidates for H264")
	}
	if cands[0].name != "h264" {
		t.Errorf("first H264 decoder candidate %s, want native h264", cands[0].name)
	}
}
