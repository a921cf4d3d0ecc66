package lookup

import (
	"errors"

	"memecoin-signal-lab/internal/domain"
)

// ErrNoPriceData is returned when no sample satisfies the lookup.
var ErrNoPriceData = errors.New("no price data available")

// SampleAtOrBefore returns the latest sample with timestamp <= target.
// Samples must be sorted by timestamp ASC.
func SampleAtOrBefore(target int64, samples []*domain.PriceSample) (*domain.PriceSample, error) {
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].TimestampMs <= target {
			return samples[i], nil
		}
	}
	return nil, ErrNoPriceData
}

// SampleAtOrAfter returns the earliest sample with timestamp >= target.
// Samples must be sorted by timestamp ASC.
func SampleAtOrAfter(target int64, samples []*domain.PriceSample) (*domain.PriceSample, error) {
	for _, s := range samples {
		if s.TimestampMs >= target {
			return s, nil
		}
	}
	return nil, ErrNoPriceData
}

// SampleNearest returns the sample at or before target, falling back to the
// earliest sample after target when it lies within tolerance (ms).
func SampleNearest(target, tolerance int64, samples []*domain.PriceSample) (*domain.PriceSample, error) {
	if s, err := SampleAtOrBefore(target, samples); err == nil {
		return s, nil
	}
	s, err := SampleAtOrAfter(target, samples)
	if err != nil || s.TimestampMs-target > tolerance {
		return nil, ErrNoPriceData
	}
	return s, nil
}
