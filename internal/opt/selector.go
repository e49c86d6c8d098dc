package opt

import (
	"fmt"
	"math/rand"
	"strings"
)

// Policy picks one entry out of the restricted candidate list.
type Policy int

const (
	// PolicyRandom draws uniformly from the RCL.
	PolicyRandom Policy = iota + 1
	// PolicyFuzzyBest takes the entry with the lowest membership 1-score/maxScore.
	PolicyFuzzyBest
	// PolicyFuzzyAlphaCut draws uniformly among entries whose membership is <= alpha,
	// or from the whole RCL when none qualifies.
	PolicyFuzzyAlphaCut
)

func (p Policy) String() string {
	switch p {
	case PolicyRandom:
		return "random"
	case PolicyFuzzyBest:
		return "fuzzy-best"
	case PolicyFuzzyAlphaCut:
		return "fuzzy-alpha-cut"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts the String form of a policy, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "random":
		return PolicyRandom, nil
	case "fuzzy-best", "fuzzybest":
		return PolicyFuzzyBest, nil
	case "fuzzy-alpha-cut", "alpha-cut", "alphacut":
		return PolicyFuzzyAlphaCut, nil
	default:
		return 0, fmt.Errorf("unknown selection policy %q (allowed: random, fuzzy-best, fuzzy-alpha-cut)", s)
	}
}

// Selector applies one policy with its own random stream.
type Selector struct {
	Policy   Policy
	Alpha    float64
	MaxScore float64
	rng      *rand.Rand
}

func NewSelector(policy Policy, alpha, maxScore float64, rng *rand.Rand) *Selector {
	return &Selector{Policy: policy, Alpha: alpha, MaxScore: maxScore, rng: rng}
}

// Select returns an index in [0, len(rcl)), or -1 for an empty list.
func (s *Selector) Select(rcl []Candidate) int {
	if len(rcl) == 0 {
		return -1
	}
	switch s.Policy {
	case PolicyFuzzyBest:
		return s.fuzzyBest(rcl)
	case PolicyFuzzyAlphaCut:
		return s.fuzzyAlphaCut(rcl)
	default:
		return s.rng.Intn(len(rcl))
	}
}

// membership is 1 for every entry when no node carries a positive score.
func (s *Selector) membership(c Candidate) float64 {
	if s.MaxScore <= 0 {
		return 1
	}
	return 1 - c.Score/s.MaxScore
}

func (s *Selector) fuzzyBest(rcl []Candidate) int {
	pos := 0
	lowest := s.membership(rcl[0])
	for i := 1; i < len(rcl); i++ {
		if m := s.membership(rcl[i]); m < lowest {
			lowest = m
			pos = i
		}
	}
	return pos
}

func (s *Selector) fuzzyAlphaCut(rcl []Candidate) int {
	cut := make([]int, 0, len(rcl))
	for i, c := range rcl {
		if s.membership(c) <= s.Alpha {
			cut = append(cut, i)
		}
	}
	if len(cut) == 0 {
		return s.rng.Intn(len(rcl))
	}
	return cut[s.rng.Intn(len(cut))]
}
