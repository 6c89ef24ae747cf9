package pretrain_data

import (
	"fmt"
	"math/rand"
)

// TruncatePair trims a and b until together they hold at most maxTokens
// ids. Each step drops one id from the longer segment, b on a tie, taking
// it from the front or the back with equal odds. The returned slices share
// the inputs' backing arrays.
//
// It panics if it has to trim an empty segment; callers keep
// maxTokens >= 2 and both segments non-empty.
func TruncatePair(rng *rand.Rand, a, b []int, maxTokens int) ([]int, []int) {
	for len(a)+len(b) > maxTokens {
		longer := &b
		if len(a) > len(b) {
			longer = &a
		}
		if len(*longer) == 0 {
			panic(fmt.Sprintf("truncating empty segment to %d tokens",
				maxTokens))
		}
		if rng.Float64() < 0.5 {
			*longer = (*longer)[1:]
		} else {
			*longer = (*longer)[:len(*longer)-1]
		}
	}
	return a, b
}
