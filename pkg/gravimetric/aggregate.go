package gravimetric

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Statistics summarises the corrected volumes of one aforo. Volumes in µL.
type Statistics struct {
	N            int
	Mean         float64
	StdDev       float64 // sample, n−1 divisor
	Error        float64 // Mean − nominal
	ErrorPercent Percent // Error / nominal · 100
	// CV is the coefficient of variation (random error) in percent.
	CV Percent
}

// Aggregate reduces the volumes of one aforo. At least two values are
// required for a sample standard deviation.
func Aggregate(nominal float64, volumes []float64) (Statistics, error) {
	if len(volumes) < 2 {
		return Statistics{}, newError(KindInsufficientSamples, "", "need at least 2 volumes, got %d", len(volumes))
	}
	for _, v := range volumes {
		if !isFinite(v) {
			return Statistics{}, newError(KindMalformedInput, "", "volume is not a number")
		}
	}
	if !isFinite(nominal) {
		return Statistics{}, newError(KindMalformedInput, "valor_nominal", "not a number")
	}

	mean, sd := stat.MeanStdDev(volumes, nil)
	if sd < 0 || math.IsNaN(sd) {
		sd = 0
	}
	s := Statistics{
		N:      len(volumes),
		Mean:   mean,
		StdDev: sd,
		Error:  mean - nominal,
	}
	if nominal != 0 {
		s.ErrorPercent = Percent{Value: s.Error / nominal * 100, Applicable: true}
	}
	if mean != 0 {
		s.CV = Percent{Value: sd / mean * 100, Applicable: true}
	}
	return s, nil
}
