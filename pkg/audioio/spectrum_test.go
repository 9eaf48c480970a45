package audioio

import (
	"context"
	"math"
	"testing"
	"time"
)

// sineWindow generates one DFT window of a pure tone.
func sineWindow(freqHz float64, amplitude float64, n, rate int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		v := amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(rate))
		samples[i] = int16(v * 32767)
	}
	return samples
}

func TestAnalyze_ToneLandsInExpectedBin(t *testing.T) {
	rate := DefaultSampleRate
	n := DefaultWindowSize
	// Pick a frequency exactly on a bin center to avoid leakage.
	sp := Spectrum{SampleRate: rate, WindowSize: n}
	binIdx := 4 // ~187.5Hz
	freq := sp.BinWidth() * float64(binIdx)

	got := Analyze(sineWindow(freq, 0.5, n, rate), rate, time.Now())

	peak := 0
	for i, b := range got.Bins {
		if b > got.Bins[peak] {
			peak = i
		}
	}
	if peak != binIdx {
		t.Errorf("peak bin = %d (%.1fHz), want %d (%.1fHz)",
			peak, got.BinFrequency(peak), binIdx, freq)
	}
	if got.Bins[peak] == 0 {
		t.Error("peak bin magnitude = 0, want energy")
	}
}

func TestAnalyze_SilenceIsFlat(t *testing.T) {
	got := Analyze(make([]int16, DefaultWindowSize), DefaultSampleRate, time.Now())
	for i, b := range got.Bins {
		if b != 0 {
			t.Fatalf("bin %d = %d for silence, want 0", i, b)
		}
	}
}

func TestBinRange_VoiceBand(t *testing.T) {
	sp := Spectrum{
		Bins:       make([]byte, SpectrumBins),
		SampleRate: DefaultSampleRate,
		WindowSize: DefaultWindowSize,
	}
	lo, hi := sp.BinRange(85, 255)
	if lo >= hi {
		t.Fatalf("BinRange(85, 255) = [%d, %d), want non-empty", lo, hi)
	}
	if f := sp.BinFrequency(lo); f < 85 {
		t.Errorf("first bin center %.1fHz below band start", f)
	}
	if f := sp.BinFrequency(hi - 1); f >= 255 {
		t.Errorf("last bin center %.1fHz at or above band end", f)
	}
}

func TestToneSpectrum(t *testing.T) {
	sp := ToneSpectrum(150, 200, time.Now())
	lo, hi := sp.BinRange(85, 255)

	var inBand int
	for i := lo; i < hi; i++ {
		inBand += int(sp.Bins[i])
	}
	if inBand != 200 {
		t.Errorf("voice-band energy = %d, want all 200 units in band", inBand)
	}
}

func TestSpectralReader_WindowsMockTone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	cfg.BufferDuration = 5 * time.Millisecond

	src := NewMockSource(cfg, nil, WithTones(Tone{Frequency: 150, Amplitude: 0.5}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer src.Close()

	reader := NewSpectralReader(src)
	sp, err := reader.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if len(sp.Bins) != SpectrumBins {
		t.Fatalf("bins = %d, want %d", len(sp.Bins), SpectrumBins)
	}

	lo, hi := sp.BinRange(85, 255)
	var inBand, total int
	for i, b := range sp.Bins {
		total += int(b)
		if i >= lo && i < hi {
			inBand += int(b)
		}
	}
	if total == 0 {
		t.Fatal("spectrum carries no energy for a 150Hz tone")
	}
	if float64(inBand)/float64(total) < 0.5 {
		t.Errorf("voice-band ratio = %.2f, want majority of energy in band", float64(inBand)/float64(total))
	}
}

func TestResample_HalvesAndDoubles(t *testing.T) {
	in := sineWindow(440, 0.5, 480, 48000)

	down := Resample(in, 48000, 24000)
	if len(down) != 240 {
		t.Errorf("downsample length = %d, want 240", len(down))
	}
	up := Resample(in, 24000, 48000)
	if len(up) != 960 {
		t.Errorf("upsample length = %d, want 960", len(up))
	}
	same := Resample(in, 48000, 48000)
	if len(same) != len(in) {
		t.Errorf("same-rate length = %d, want %d", len(same), len(in))
	}
}

func TestStereoToMono(t *testing.T) {
	mono := StereoToMono([]int16{100, 200, -50, 50})
	if len(mono) != 2 || mono[0] != 150 || mono[1] != 0 {
		t.Errorf("StereoToMono = %v, want [150 0]", mono)
	}
}

func TestCalculateRMS(t *testing.T) {
	if rms := CalculateRMS(nil); rms != 0 {
		t.Errorf("RMS(nil) = %v, want 0", rms)
	}
	full := []int16{32767, -32767, 32767, -32767}
	if rms := CalculateRMS(full); math.Abs(rms-1) > 1e-3 {
		t.Errorf("RMS(full scale) = %v, want ~1", rms)
	}
}
