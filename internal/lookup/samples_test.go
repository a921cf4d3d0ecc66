package lookup

import (
	"testing"

	"memecoin-signal-lab/internal/domain"
)

func fixtureSamples() []*domain.PriceSample {
	return []*domain.PriceSample{
		{TimestampMs: 1000, Price: 1.0},
		{TimestampMs: 2000, Price: 2.0},
		{TimestampMs: 3000, Price: 3.0},
	}
}

func TestSampleAtOrBefore_Empty(t *testing.T) {
	if _, err := SampleAtOrBefore(1000, nil); err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}
}

func TestSampleAtOrBefore(t *testing.T) {
	tests := []struct {
		target int64
		want   float64
	}{
		{2000, 2.0},
		{2500, 2.0},
		{9000, 3.0},
	}
	for _, tt := range tests {
		s, err := SampleAtOrBefore(tt.target, fixtureSamples())
		if err != nil {
			t.Fatalf("target %d: unexpected error: %v", tt.target, err)
		}
		if s.Price != tt.want {
			t.Errorf("target %d: expected %f, got %f", tt.target, tt.want, s.Price)
		}
	}

	if _, err := SampleAtOrBefore(500, fixtureSamples()); err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData before first sample, got %v", err)
	}
}

func TestSampleAtOrAfter(t *testing.T) {
	s, err := SampleAtOrAfter(1500, fixtureSamples())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Price != 2.0 {
		t.Errorf("expected 2.0, got %f", s.Price)
	}

	if _, err := SampleAtOrAfter(3001, fixtureSamples()); err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData after last sample, got %v", err)
	}
}

func TestSampleNearest(t *testing.T) {
	// No sample at or before 800, first after is 200ms later.
	s, err := SampleNearest(800, 500, fixtureSamples())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Price != 1.0 {
		t.Errorf("expected 1.0, got %f", s.Price)
	}

	if _, err := SampleNearest(100, 500, fixtureSamples()); err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData outside tolerance, got %v", err)
	}

	s, err = SampleNearest(2100, 0, fixtureSamples())
	if err != nil || s.Price != 2.0 {
		t.Errorf("expected 2.0 at or before, got %v, %v", s, err)
	}
}
