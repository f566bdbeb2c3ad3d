package audioio

import (
	"math"
	"testing"
	"time"
)

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		in       []int16
		from, to int
		wantLen  int
	}{
		{"same rate", []int16{1, 2, 3}, 16000, 16000, 3},
		{"downsample 24k to 16k", make([]int16, 480), 24000, 16000, 320},
		{"upsample 16k to 24k", make([]int16, 320), 16000, 24000, 480},
		{"empty", nil, 24000, 16000, 0},
		{"invalid rate", []int16{1, 2}, 0, 16000, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resample(tt.in, tt.from, tt.to)
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestResampleInterpolates(t *testing.T) {
	got := Resample([]int16{0, 100, 200, 300}, 16000, 32000)
	want := []int16{0, 50, 100, 150, 200, 250, 300, 300}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234}
	got := BytesToSamples(SamplesToBytes(samples))
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}

	if b := SamplesToBytes([]int16{0x0102}); b[0] != 0x02 || b[1] != 0x01 {
		t.Errorf("not little-endian: %v", b)
	}
}

func TestChannelConversion(t *testing.T) {
	stereo := MonoToStereo([]int16{10, 20})
	if len(stereo) != 4 || stereo[0] != 10 || stereo[1] != 10 || stereo[3] != 20 {
		t.Errorf("MonoToStereo = %v", stereo)
	}

	mono := StereoToMono([]int16{10, 30, -10, 10})
	if len(mono) != 2 || mono[0] != 20 || mono[1] != 0 {
		t.Errorf("StereoToMono = %v", mono)
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", make([]int16, 100), 0},
		{"constant half scale", []int16{16384, -16384, 16384, -16384}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.samples); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSamplesDuration(t *testing.T) {
	if got := SamplesDuration(16000, 16000); got != time.Second {
		t.Errorf("got %v, want 1s", got)
	}
	if got := SamplesDuration(10, 0); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestChunkDuration(t *testing.T) {
	c := AudioChunk{Samples: make([]int16, 480), SampleRate: 24000, Channels: 1}
	if got := c.Duration(); got != 20*time.Millisecond {
		t.Errorf("Duration = %v, want 20ms", got)
	}
	if got := NewChunk(c.Bytes(), 24000, 1); len(got.Samples) != 480 {
		t.Errorf("NewChunk samples = %d, want 480", len(got.Samples))
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		chunk    AudioChunk
		rate     int
		channels int
		wantLen  int
	}{
		{"mono passthrough", AudioChunk{Samples: make([]int16, 160), SampleRate: 16000, Channels: 1}, 16000, 1, 160},
		{"unknown rate", AudioChunk{Samples: make([]int16, 160), Channels: 1}, 24000, 1, 160},
		{"stereo to mono 16k", AudioChunk{Samples: make([]int16, 960), SampleRate: 48000, Channels: 2}, 16000, 1, 160},
		{"mono to stereo 24k", AudioChunk{Samples: make([]int16, 160), SampleRate: 16000, Channels: 1}, 24000, 2, 480},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Convert(tt.chunk, tt.rate, tt.channels)); got != tt.wantLen {
				t.Errorf("len = %d, want %d", got, tt.wantLen)
			}
		})
	}
}
