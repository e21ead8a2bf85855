// Package track holds the ray data model shared by the traversal engine:
// 2D tracks laid out in the azimuthal plane, their 3D extrusions at fixed
// polar angles, and the segments a track makes as it crosses the domain.
package track

import (
	"github.com/golang/geo/r3"

	"github.com/florenciaren/OpenMOC/pkg/geom"
)

// Segment is one straight-line crossing of a single material/region cell.
// CmfdSurfaceFwd and CmfdSurfaceBwd identify the coarse-mesh faces the
// segment exits and enters through, or geom.NoSurface when the face does
// not lie on the acceleration mesh. Two abutting segments on one track
// share a surface id at their common face.
type Segment struct {
	Length         float64
	Material       geom.Material
	RegionID       int
	CmfdSurfaceFwd int
	CmfdSurfaceBwd int
}

// Track is a directed 2D track in the azimuthal plane, identified by its
// azimuthal angle index and its index among the parallel tracks of that
// angle. It owns its ordered 2D segments once segmentation has run.
//
// Tracks are immutable during traversal except for the scoped reversal
// performed by bidirectional stack tracing, which restores the original
// state before returning.
type Track struct {
	AzimIndex int
	XYIndex   int
	Phi       float64 // azimuthal angle
	Start     r3.Vector
	End       r3.Vector
	Segments  []Segment
}

// NumSegments returns the number of stored segments.
func (t *Track) NumSegments() int {
	return len(t.Segments)
}

// TotalLength returns the summed length of the stored segments.
func (t *Track) TotalLength() float64 {
	var total float64
	for i := range t.Segments {
		total += t.Segments[i].Length
	}
	return total
}

// Track3D is the extrusion of a 2D track at a fixed polar angle and
// z-stack position. It carries its own endpoints and may own a segment
// buffer when segments are precomputed (explicit 3D mode).
type Track3D struct {
	Track
	Theta      float64 // polar angle, measured from the +z axis
	PolarIndex int
	StackIndex int
}
