// Package geom defines the geometry collaborator surface consumed by the
// traversal engine: region columns produced by 2D segmentation, the
// materials and region ids of their axial cells, and the coarse-mesh
// (CMFD) acceleration lookups used to tag segment boundary crossings.
//
// The engine never constructs geometry itself; implementations are
// supplied by the surrounding application (or by test doubles).
package geom

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// NoSurface marks a segment face that does not cross a coarse-mesh surface.
const NoSurface = -1

// Material identifies the material filling an axial cell. The engine only
// forwards material references to kernels; it never inspects them beyond
// the id.
type Material interface {
	ID() int
}

// ExtrudedRegion is one region column: a radial region from 2D
// segmentation exploded into an ordered stack of axial cells. Cell i is
// bounded by Mesh[i] and Mesh[i+1], filled with Materials[i] and owns the
// flat source region RegionIDs[i].
type ExtrudedRegion struct {
	Mesh      []float64  // axial cell boundaries, strictly increasing, len = cells+1
	Materials []Material // material per axial cell
	RegionIDs []int      // flat source region id per axial cell
}

// NumCells returns the number of axial cells in the column.
func (er *ExtrudedRegion) NumCells() int {
	return len(er.RegionIDs)
}

// Validate checks the structural invariants of the column: a strictly
// increasing axial mesh with one more boundary than cells, and aligned
// material/region-id slices. Traversal assumes validated columns; this is
// intended for the upstream constructors that assemble them.
func (er *ExtrudedRegion) Validate() error {
	n := len(er.RegionIDs)
	if n == 0 {
		return fmt.Errorf("extruded region has no axial cells")
	}
	if len(er.Materials) != n {
		return fmt.Errorf("extruded region has %d materials for %d cells", len(er.Materials), n)
	}
	if len(er.Mesh) != n+1 {
		return fmt.Errorf("extruded region has %d mesh boundaries for %d cells", len(er.Mesh), n)
	}
	for i := 1; i < len(er.Mesh); i++ {
		if er.Mesh[i] <= er.Mesh[i-1] {
			return fmt.Errorf("extruded region mesh not strictly increasing at index %d: %g <= %g",
				i, er.Mesh[i], er.Mesh[i-1])
		}
	}
	return nil
}

// CoarseMesh resolves coarse-mesh (CMFD) cells and surfaces for segment
// boundary tagging. SurfaceOTF refines a crossing at axial height z within
// cell into a surface id, given a previously known surface hint (NoSurface
// when none): the hint disambiguates interior faces from boundary faces
// when a crossing lands on a cell corner.
type CoarseMesh interface {
	Cell(regionID int) int
	SurfaceOTF(cell int, z float64, hint int) int
}

// Geometry is the domain query layer consumed by the traversal engine.
//
// CoarseMesh may return nil when no acceleration mesh is configured;
// segments are then tagged NoSurface throughout.
type Geometry interface {
	// ExtrudedRegion returns the region column owning the given 2D region id.
	ExtrudedRegion(id int) *ExtrudedRegion

	// ExtrudedRegionAt maps a spatial point to its region column id. Used by
	// the upstream layout constructors that share this interface; traversal
	// itself works from the region ids stored on 2D segments.
	ExtrudedRegionAt(p r3.Vector) int

	// CoarseMesh returns the CMFD lookup, or nil when CMFD is disabled.
	CoarseMesh() CoarseMesh
}
