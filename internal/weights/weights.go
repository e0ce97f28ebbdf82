// Package weights computes the factor weight vector used to combine sub-scores.
package weights

import (
	"fmt"
	"math"
)

// Factor names one of the six scoring dimensions.
type Factor string

const (
	Keyword     Factor = "keyword"
	Semantic    Factor = "semantic"
	Funding     Factor = "funding"
	Deadline    Factor = "deadline"
	Demographic Factor = "demographic"
	Geographic  Factor = "geographic"
)

// Factors lists every factor in canonical order. Sums and renderings iterate in this order.
var Factors = []Factor{Keyword, Semantic, Funding, Deadline, Demographic, Geographic}

// Tolerance is the allowed deviation of a vector sum from 1.
const Tolerance = 1e-9

// Vector maps factors to weights.
type Vector map[Factor]float64

// Sum returns the total of all weights in canonical order.
func (v Vector) Sum() float64 {
	var sum float64
	for _, f := range Factors {
		sum += v[f]
	}
	return sum
}

// Validate checks that weights are non-negative, known and sum to 1 within Tolerance.
func (v Vector) Validate() error {
	for f, w := range v {
		if !known(f) {
			return fmt.Errorf("unknown factor %q", f)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("invalid %s weight: %v", f, w)
		}
	}
	if sum := v.Sum(); math.Abs(sum-1.0) > Tolerance {
		return fmt.Errorf("weights sum to %.12f, must sum to 1.0", sum)
	}
	return nil
}

// Normalize returns a copy divided by its sum. It panics when the sum is not positive.
func (v Vector) Normalize() Vector {
	sum := v.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		panic(fmt.Sprintf("weights: cannot normalize vector with sum %v", sum))
	}
	out := make(Vector, len(v))
	for _, f := range Factors {
		if w, ok := v[f]; ok {
			out[f] = w / sum
		}
	}
	return out
}

// Without drops factor f and renormalizes the rest.
func (v Vector) Without(f Factor) Vector {
	rest := make(Vector, len(v))
	for k, w := range v {
		if k != f {
			rest[k] = w
		}
	}
	return rest.Normalize()
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for k, w := range v {
		out[k] = w
	}
	return out
}

// Uniform returns equal weights for every factor.
func Uniform() Vector {
	v := make(Vector, len(Factors))
	for _, f := range Factors {
		v[f] = 1.0 / float64(len(Factors))
	}
	return v
}

// MustValidate panics when v breaks the weight invariant.
func MustValidate(v Vector) Vector {
	if err := v.Validate(); err != nil {
		panic("weights: invariant violated: " + err.Error())
	}
	return v
}

func known(f Factor) bool {
	for _, k := range Factors {
		if k == f {
			return true
		}
	}
	return false
}
