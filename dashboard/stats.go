package dashboard

import (
	"math"
	"sort"
	"time"
)

// Sorted is a sample in ascending order. Percentile reads it by index and
// never sorts; build one with SortSample.
type Sorted []float64

// SortSample sorts xs in place and returns it as a Sorted sample.
func SortSample(xs []float64) Sorted {
	sort.Float64s(xs)
	return Sorted(xs)
}

// Percentile interpolates linearly between the two nearest ranks at
// index (n-1)*p. It returns nil for an empty sample.
func Percentile(s Sorted, p float64) *float64 {
	if len(s) == 0 {
		return nil
	}
	idx := float64(len(s)-1) * p
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		v := s[lo]
		return &v
	}
	w := idx - float64(lo)
	v := s[lo]*(1-w) + s[hi]*w
	return &v
}

func Median(s Sorted) *float64 { return Percentile(s, 0.5) }

func P75(s Sorted) *float64 { return Percentile(s, 0.75) }

// ToHours converts milliseconds to hours.
func ToHours(ms float64) float64 {
	return ms / float64(time.Hour/time.Millisecond)
}

func hoursOf(ms *float64) *float64 {
	if ms == nil {
		return nil
	}
	h := ToHours(*ms)
	return &h
}

func millisBetween(later, earlier time.Time) float64 {
	return float64(later.Sub(earlier).Milliseconds())
}

// ratio returns nil when the denominator is zero.
func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}
