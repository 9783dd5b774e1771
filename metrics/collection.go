package metrics

import (
	"github.com/objcache/objcache/utils"
)

// Measurements is an insertion-ordered, mutable collection of samples with
// statistical accessors. Absent values stay absent; they are never coerced
// to zero.
type Measurements []*Measurement

// Count returns the number of samples.
func (ms Measurements) Count() int { return len(ms) }

// Latest scans from the most recently inserted sample backward and returns
// the first present value at the metric path.
func (ms Measurements) Latest(path string) (float64, bool) {
	for i := len(ms) - 1; i >= 0; i-- {
		if v, ok := ms[i].Get(path); ok {
			return v, true
		}
	}
	return 0, false
}

// Mean returns the arithmetic mean over the samples where the path is
// present. The boolean is false when no sample carries the value.
func (ms Measurements) Mean(path string) (float64, bool) {
	return utils.Mean(ms.present(path))
}

// Median returns the statistical median over the samples where the path is
// present, averaging the two middle values for an even count.
func (ms Measurements) Median(path string) (float64, bool) {
	return utils.Median(ms.present(path))
}

// Pluck projects the path from every sample in insertion order; absent
// values project as nil.
func (ms Measurements) Pluck(path string) []*float64 {
	out := make([]*float64, len(ms))
	for i, m := range ms {
		if v, ok := m.Get(path); ok {
			value := v
			out[i] = &value
		}
	}
	return out
}

// Filter returns the samples for which keep returns true, preserving order.
func (ms Measurements) Filter(keep func(*Measurement) bool) Measurements {
	var out Measurements
	for _, m := range ms {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func (ms Measurements) present(path string) []float64 {
	var values []float64
	for _, m := range ms {
		if v, ok := m.Get(path); ok {
			values = append(values, v)
		}
	}
	return values
}
