// Package weights keeps dimension and indicator weights consistent: integer
// percentages that sum to exactly 100 within each scope.
package weights

import "sort"

// Full is the total every normalized scope sums to.
const Full = 100

// LargestRemainder rescales weights proportionally so they sum to exactly
// 100. Each entry is floored, then the entries with the largest fractional
// remainders receive one more point until the deficit is covered. Equal
// remainders keep input order.
//
// ok is false, and the input is returned unchanged, when weights is empty or
// sums to zero.
func LargestRemainder(weights []int) (out []int, ok bool) {
	out = append([]int(nil), weights...)
	sum := 0
	for _, w := range weights {
		sum += w
	}
	if len(weights) == 0 || sum == 0 {
		return out, false
	}

	// exact[i] = w*100/sum; the remainder numerators share the denominator sum,
	// so they compare exactly as integers.
	rem := make([]int, len(weights))
	floorSum := 0
	for i, w := range weights {
		out[i] = w * Full / sum
		rem[i] = w * Full % sum
		floorSum += out[i]
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })

	for deficit, k := Full-floorSum, 0; deficit > 0; deficit, k = deficit-1, k+1 {
		out[order[k]]++
	}
	return out, true
}

// EqualShares splits 100 into n integer shares. The first 100 % n shares get
// one extra point: EqualShares(3) is [34 33 33].
func EqualShares(n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	base, extra := Full/n, Full%n
	for i := range out {
		out[i] = base
		if i < extra {
			out[i]++
		}
	}
	return out
}
