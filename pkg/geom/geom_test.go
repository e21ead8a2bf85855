package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMaterial struct{ id int }

func (m testMaterial) ID() int { return m.id }

func validRegion() *ExtrudedRegion {
	return &ExtrudedRegion{
		Mesh:      []float64{0, 1, 2.5, 4},
		Materials: []Material{testMaterial{1}, testMaterial{2}, testMaterial{1}},
		RegionIDs: []int{10, 11, 12},
	}
}

func TestExtrudedRegionValidate(t *testing.T) {
	er := validRegion()
	require.NoError(t, er.Validate())
	assert.Equal(t, 3, er.NumCells())
}

func TestExtrudedRegionValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(er *ExtrudedRegion)
	}{
		{"no cells", func(er *ExtrudedRegion) { er.RegionIDs = nil }},
		{"material mismatch", func(er *ExtrudedRegion) { er.Materials = er.Materials[:2] }},
		{"mesh length mismatch", func(er *ExtrudedRegion) { er.Mesh = er.Mesh[:3] }},
		{"non-increasing mesh", func(er *ExtrudedRegion) { er.Mesh[2] = er.Mesh[1] }},
		{"decreasing mesh", func(er *ExtrudedRegion) { er.Mesh[2] = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			er := validRegion()
			tt.mutate(er)
			assert.Error(t, er.Validate())
		})
	}
}
