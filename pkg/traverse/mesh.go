package traverse

import (
	"errors"
	"fmt"
)

// ErrMeshRange reports an axial query value outside the valid mesh range.
// This indicates malformed geometry data upstream, never a recoverable
// traversal condition; the run aborts.
var ErrMeshRange = errors.New("traverse: value outside axial mesh range")

// findMeshIndex locates the axial cell containing val within values, a
// strictly increasing boundary array, using a binary search. When val
// lands exactly on an interior boundary, the travel direction breaks the
// tie: a positive-z ray resolves to the cell above the boundary, a
// negative-z ray to the cell below.
func findMeshIndex(values []float64, val float64, sign int) (int, error) {
	imin := 0
	imax := len(values) - 1

	if val < values[imin] || val > values[imax] {
		return 0, fmt.Errorf("%w: %g not in [%g, %g]", ErrMeshRange, val, values[imin], values[imax])
	}

	for imax-imin > 1 {
		imid := (imin + imax) / 2
		switch {
		case val > values[imid]:
			imin = imid
		case val < values[imid]:
			imax = imid
		default:
			if sign > 0 {
				return imid, nil
			}
			return imid - 1, nil
		}
	}
	return imin, nil
}
