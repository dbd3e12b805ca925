package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// DefaultFPRate applies when the configured rate is outside (0, 1). Pattern
// lists are short, so a tight rate costs only a few kilobytes.
const DefaultFPRate = 0.001

// hostFilter is populated once in Build and only read afterwards, so it
// needs no locking.
type hostFilter struct {
	bf *bitsbloom.BloomFilter
}

func (f *hostFilter) MayContain(host string) bool {
	return f.bf.TestString(host)
}

// params normalises the inputs before sizing the filter.
func params(n int, p float64) (m, k uint) {
	if n < 1 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = DefaultFPRate
	}
	return bitsbloom.EstimateParameters(uint(n), p)
}
