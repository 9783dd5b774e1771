// Package nanoid wraps go-nanoid with the project's character sets.
package nanoid

import (
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/objcache/objcache/consts"
)

const defaultSize = 16

func getSize(l ...int) int {
	size := defaultSize
	if len(l) > 0 {
		size = l[0]
	}
	return size
}

// Must generates an optional length nanoid from the default alphabet.
func Must(l ...int) string {
	return gonanoid.Must(getSize(l...))
}

// String generates an optional length nanoid of mixed-case letters.
func String(l ...int) string {
	return gonanoid.MustGenerate(consts.LowerUpper, getSize(l...))
}

// Lower generates an optional length nanoid of lowercase letters.
func Lower(l ...int) string {
	return gonanoid.MustGenerate(consts.Lowercase, getSize(l...))
}

// MeasurementID generates the short collision-resistant identifier used for
// analytics measurements. It is random, not cryptographically secure, which
// is acceptable at observability-sample scale.
func MeasurementID() string {
	return gonanoid.MustGenerate(consts.MeasurementAlphabet, consts.MeasurementIDSize)
}
