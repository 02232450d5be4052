package noun

import (
	"fmt"

	"github.com/seferlab/lexgraph/pkg/common"
)

// Normalize runs the pure per-noun validation and normalization step: it
// rejects placeholder surfaces, decomposes the surface into letters, computes
// the gematria value and collapses the class tag into the closed set.
//
// When the surface carries no Hebrew letters the computed value is zero and
// an upstream-provided value is kept instead.
func Normalize(n common.Noun) (common.Noun, error) {
	if IsPlaceholderSurface(n.Surface) {
		return n, fmt.Errorf("%w: %q", ErrPlaceholderSurface, n.Surface)
	}
	if n.ID == "" {
		return n, fmt.Errorf("noun %q has no id", n.Surface)
	}

	n.Letters = Letters(n.Surface)
	if computed := GematriaValue(n.Surface); computed != 0 {
		n.GematriaValue = computed
	}
	n.Class = common.NormalizeClass(n.Class)

	return n, nil
}
