package opt

import "math/rand"

// defaultSeed is used when callers pass seed == 0 so runs stay reproducible.
const defaultSeed int64 = 1

// NewRand returns a deterministic generator; seed 0 maps to defaultSeed.
// A *rand.Rand is not safe for concurrent use: give every constructor its own.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = defaultSeed
	}
	return rand.New(rand.NewSource(seed))
}

// DeriveSeed mixes a parent seed with a stream id (SplitMix64 finalizer) so that
// independent workers can be seeded from one base seed without correlation.
func DeriveSeed(parent int64, stream uint64) int64 {
	x := uint64(parent) ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x)
}
