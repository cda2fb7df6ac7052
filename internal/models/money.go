// internal/models/money.go
package models

import (
	"fmt"
	"sort"
)

// Money is a monetary amount in minor currency units (paise). Every ledger
// field and every calculation in this service is integer arithmetic; binary
// floating point never touches a monetary value.
type Money int64

// MinorUnitsPerUnit is the subunit scale (100 paise per rupee).
const MinorUnitsPerUnit = 100

// MoneyFromUnits converts whole currency units into Money.
func MoneyFromUnits(units int64) Money {
	return Money(units * MinorUnitsPerUnit)
}

// Units returns the amount in whole currency units, truncated.
func (m Money) Units() int64 {
	return int64(m) / MinorUnitsPerUnit
}

func (m Money) Mul(n int64) Money {
	return Money(int64(m) * n)
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d", int64(m)/MinorUnitsPerUnit, abs64(int64(m))%MinorUnitsPerUnit)
}

// MulDiv computes m * num / den with the result truncated toward zero.
// den must be positive.
func MulDiv(m Money, num, den int64) Money {
	if den <= 0 {
		panic("models: MulDiv with non-positive denominator")
	}
	return Money(int64(m) * num / den)
}

// Allocate splits total across weights using the largest-remainder method.
// The returned slices always sum to exactly total: each recipient gets the
// floor of its proportional cut and the leftover minor units go one at a
// time to the largest remainders (lowest index wins ties), so no unit is
// ever lost or fabricated. total and all weights must be non-negative and
// at least one weight must be positive.
func Allocate(total Money, weights []int64) ([]Money, error) {
	if total < 0 {
		return nil, fmt.Errorf("allocate negative total %d", total)
	}
	var sum int64
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("allocate negative weight %d at index %d", w, i)
		}
		sum += w
	}
	if sum == 0 {
		return nil, fmt.Errorf("allocate with zero total weight")
	}

	out := make([]Money, len(weights))
	remainders := make([]int64, len(weights))
	var allocated Money
	for i, w := range weights {
		product := int64(total) * w
		out[i] = Money(product / sum)
		remainders[i] = product % sum
		allocated += out[i]
	}

	leftover := int64(total - allocated)
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})
	for i := int64(0); i < leftover; i++ {
		out[order[i%int64(len(order))]]++
	}

	return out, nil
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
