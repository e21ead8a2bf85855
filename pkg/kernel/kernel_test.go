package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florenciaren/OpenMOC/pkg/geom"
)

type testMaterial struct{ id int }

func (m testMaterial) ID() int { return m.id }

func TestSegmentationRecordsByStackIndex(t *testing.T) {
	s := NewSegmentation()
	s.NewRay()

	mat := testMaterial{7}
	s.Execute(1.5, mat, 10, 0, 3, geom.NoSurface)
	s.Execute(2.5, mat, 11, 2, geom.NoSurface, 3)
	s.Execute(0.5, mat, 11, 2, 4, geom.NoSurface)

	assert.Equal(t, 3, s.Count())

	segs0 := s.RaySegments(0)
	require.Len(t, segs0, 1)
	assert.Equal(t, 1.5, segs0[0].Length)
	assert.Equal(t, 10, segs0[0].RegionID)
	assert.Equal(t, 3, segs0[0].CmfdSurfaceFwd)
	assert.Equal(t, geom.NoSurface, segs0[0].CmfdSurfaceBwd)

	// Stack index 1 received nothing
	assert.Empty(t, s.RaySegments(1))

	segs2 := s.RaySegments(2)
	require.Len(t, segs2, 2)
	assert.Equal(t, 2.5, segs2[0].Length)
	assert.Equal(t, 0.5, segs2[1].Length)

	// Out-of-range indices are empty, not a panic
	assert.Nil(t, s.RaySegments(-1))
	assert.Nil(t, s.RaySegments(99))
}

func TestSegmentationNewRayResets(t *testing.T) {
	s := NewSegmentation()
	s.NewRay()
	s.Execute(1.0, testMaterial{1}, 0, 0, -1, -1)
	s.Execute(1.0, testMaterial{1}, 0, 1, -1, -1)

	s.NewRay()
	assert.Zero(t, s.Count())
	assert.Empty(t, s.RaySegments(0))
	assert.Empty(t, s.RaySegments(1))

	s.Execute(3.0, testMaterial{2}, 5, 1, -1, -1)
	assert.Equal(t, 1, s.Count())
	require.Len(t, s.RaySegments(1), 1)
	assert.Equal(t, 3.0, s.RaySegments(1)[0].Length)
}

func TestCounter(t *testing.T) {
	c := NewCounter()
	c.NewRay()
	for i := 0; i < 5; i++ {
		c.Execute(1.0, testMaterial{1}, i, 0, -1, -1)
	}
	assert.Equal(t, 5, c.Count())

	c.NewRay()
	assert.Zero(t, c.Count())
}

func TestVolumeAccumulatesAcrossRays(t *testing.T) {
	v := NewVolume()
	v.SetWeight(0.5)

	v.NewRay()
	v.Execute(2.0, testMaterial{1}, 10, 0, -1, -1)
	v.Execute(4.0, testMaterial{1}, 11, 0, -1, -1)
	assert.Equal(t, 2, v.Count())

	// A new ray resets the count but keeps the tally
	v.NewRay()
	v.Execute(6.0, testMaterial{1}, 10, 0, -1, -1)
	assert.Equal(t, 1, v.Count())

	assert.InDelta(t, 4.0, v.Volumes()[10], 1e-12)
	assert.InDelta(t, 2.0, v.Volumes()[11], 1e-12)
}
