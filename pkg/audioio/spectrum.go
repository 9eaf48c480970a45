package audioio

import (
	"context"
	"math"
	"time"
)

// Spectrum is one frequency-domain analysis frame: byte-valued magnitude
// bins from DC up to the Nyquist frequency.
type Spectrum struct {
	Bins       []byte
	SampleRate int
	WindowSize int
	Timestamp  time.Time
}

// BinWidth returns the frequency span of one bin in Hz.
func (s Spectrum) BinWidth() float64 {
	if s.WindowSize <= 0 {
		return 0
	}
	return float64(s.SampleRate) / float64(s.WindowSize)
}

// BinFrequency returns the center frequency of bin i in Hz.
func (s Spectrum) BinFrequency(i int) float64 {
	return float64(i) * s.BinWidth()
}

// BinRange returns the bin interval [lo, hi) covering the frequency band
// [fromHz, toHz), clamped to the available bins.
func (s Spectrum) BinRange(fromHz, toHz float64) (lo, hi int) {
	w := s.BinWidth()
	if w <= 0 {
		return 0, 0
	}
	lo = int(math.Ceil(fromHz / w))
	hi = int(math.Ceil(toHz / w))
	if lo < 0 {
		lo = 0
	}
	if hi > len(s.Bins) {
		hi = len(s.Bins)
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// Analyze bins a mono PCM window into a byte-valued spectrum via a
// direct DFT over the first half of the window's frequencies.
func Analyze(samples []int16, sampleRate int, at time.Time) Spectrum {
	n := len(samples)
	sp := Spectrum{
		SampleRate: sampleRate,
		WindowSize: n,
		Timestamp:  at,
	}
	if n == 0 {
		return sp
	}

	bins := n / 2
	sp.Bins = make([]byte, bins)
	for k := 0; k < bins; k++ {
		var re, im float64
		for t, s := range samples {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			v := float64(s) / 32768.0
			re += v * math.Cos(angle)
			im += v * math.Sin(angle)
		}
		// Scale magnitude into the byte range with headroom: speech at
		// normal levels should not saturate a bin.
		mag := 2 * math.Sqrt(re*re+im*im) / float64(n)
		scaled := mag * 255 * 4
		if scaled > 255 {
			scaled = 255
		}
		sp.Bins[k] = byte(scaled)
	}
	return sp
}

// ToneSpectrum builds a frame with all energy at one frequency, for
// driving the anomaly analyzer directly in tests.
func ToneSpectrum(freqHz float64, amplitude byte, at time.Time) Spectrum {
	sp := Spectrum{
		Bins:       make([]byte, SpectrumBins),
		SampleRate: DefaultSampleRate,
		WindowSize: DefaultWindowSize,
		Timestamp:  at,
	}
	idx := int(freqHz / sp.BinWidth())
	if idx >= 0 && idx < len(sp.Bins) {
		sp.Bins[idx] = amplitude
	}
	return sp
}

// SpectralReader adapts a chunk Source into a stream of analysis frames.
// Stereo chunks are folded to mono and off-rate chunks resampled before
// windowing.
type SpectralReader struct {
	src    Source
	window []int16
	size   int
	now    func() time.Time
}

// NewSpectralReader wraps src. The window size comes from the source
// config, falling back to the package default.
func NewSpectralReader(src Source) *SpectralReader {
	size := src.Config().WindowSize
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &SpectralReader{src: src, size: size, now: time.Now}
}

// Next blocks until a full window has been accumulated and returns its
// spectrum. Errors from the underlying source pass through.
func (r *SpectralReader) Next(ctx context.Context) (Spectrum, error) {
	for len(r.window) < r.size {
		chunk, err := r.src.Read(ctx)
		if err != nil {
			return Spectrum{}, err
		}
		samples := chunk.Samples
		if chunk.Channels == 2 {
			samples = StereoToMono(samples)
		}
		if chunk.SampleRate != DefaultSampleRate {
			samples = Resample(samples, chunk.SampleRate, DefaultSampleRate)
		}
		r.window = append(r.window, samples...)
	}

	sp := Analyze(r.window[:r.size], DefaultSampleRate, r.now())
	r.window = append(r.window[:0], r.window[r.size:]...)
	return sp, nil
}
