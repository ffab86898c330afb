// Package analysis post-processes run traces: autocorrelation of
// sampled signals and their vibrational power spectrum.
package analysis

import (
	"math"
	"math/cmplx"
)

// FFT computes the radix-2 discrete Fourier transform. The length must
// be a power of two.
func FFT(data []float64) []complex128 {
	n := len(data)
	if n <= 1 {
		result := make([]complex128, n)
		for i := range data {
			result[i] = complex(data[i], 0)
		}
		return result
	}

	if n%2 != 0 {
		panic("fft requires power of 2 length")
	}

	even := make([]float64, n/2)
	odd := make([]float64, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	feven := FFT(even)
	fodd := FFT(odd)

	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		result[k] = feven[k] + w*fodd[k]
		result[k+n/2] = feven[k] - w*fodd[k]
	}
	return result
}

// PowerSpectrum returns the one-sided magnitude spectrum of a trace,
// mean-subtracted and zero-padded up to the next power of two.
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}

	mean := 0.0
	for _, x := range data {
		mean += x
	}
	mean /= float64(len(data))

	n := 1
	for n < len(data) {
		n *= 2
	}
	padded := make([]float64, n)
	for i, x := range data {
		padded[i] = x - mean
	}

	fft := FFT(padded)
	ps := make([]float64, len(fft)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(fft[i])
	}
	return ps
}

// Autocorrelation returns the normalized autocorrelation of a trace up
// to maxLag, so c[0] = 1 for any non-constant signal.
func Autocorrelation(data []float64, maxLag int) []float64 {
	n := len(data)
	if n == 0 || maxLag <= 0 {
		return nil
	}
	if maxLag > n {
		maxLag = n
	}

	mean := 0.0
	for _, x := range data {
		mean += x
	}
	mean /= float64(n)

	var variance float64
	centered := make([]float64, n)
	for i, x := range data {
		centered[i] = x - mean
		variance += centered[i] * centered[i]
	}
	if variance == 0 {
		return make([]float64, maxLag)
	}

	out := make([]float64, maxLag)
	for lag := 0; lag < maxLag; lag++ {
		sum := 0.0
		for i := 0; i+lag < n; i++ {
			sum += centered[i] * centered[i+lag]
		}
		out[lag] = sum / variance
	}
	return out
}

// DominantFrequency locates the strongest spectral bin of a trace
// sampled at interval dt and converts it to an angular frequency.
func DominantFrequency(data []float64, dt float64) float64 {
	ps := PowerSpectrum(data)
	if len(ps) < 2 {
		return 0
	}

	best := 1
	for i := 2; i < len(ps); i++ {
		if ps[i] > ps[best] {
			best = i
		}
	}

	n := 1
	for n < len(data) {
		n *= 2
	}
	return 2 * math.Pi * float64(best) / (float64(n) * dt)
}
