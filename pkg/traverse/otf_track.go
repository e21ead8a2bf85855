package traverse

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/florenciaren/OpenMOC/pkg/geom"
	"github.com/florenciaren/OpenMOC/pkg/kernel"
	"github.com/florenciaren/OpenMOC/pkg/track"
)

// traceSegmentsOTF computes the 3D segments of a single 3D track on the
// fly, given its associated flattened 2D track, its start point and its
// polar angle, and applies the kernel to each one. Lengths are composed
// from the stored 2D segment lengths and the axial mesh of the region
// column each 2D segment belongs to; no 3D segment list is materialized.
func (t *Traverser) traceSegmentsOTF(flat *track.Track, start r3.Vector, theta float64, k kernel.Kernel) error {
	phi := flat.Phi
	cosTheta := math.Cos(theta)
	sinTheta := math.Sin(theta)
	sign := 0
	if cosTheta > 0 {
		sign = 1
	} else if cosTheta < 0 {
		sign = -1
	}

	// 2D distance from the 2D track start to the 3D track start
	zCoord := start.Z
	startDist2D := (start.X - flat.Start.X) / math.Cos(phi)

	// Find the 2D segment containing the starting offset
	segStart := 0
	segments2D := flat.Segments
	for s := 0; s < len(segments2D); s++ {
		if startDist2D > segments2D[s].Length {
			startDist2D -= segments2D[s].Length
			segStart++
		} else {
			break
		}
	}
	if segStart >= len(segments2D) {
		return nil
	}

	// Resolve the starting axial mesh
	var numFSRs int
	var axialMesh []float64
	containsGlobalMesh := t.globalMesh != nil
	if containsGlobalMesh {
		axialMesh = t.globalMesh
		numFSRs = len(axialMesh) - 1
	} else {
		er := t.geometry.ExtrudedRegion(segments2D[segStart].RegionID)
		numFSRs = er.NumCells()
		axialMesh = er.Mesh
	}

	zInd, err := findMeshIndex(axialMesh, zCoord, sign)
	if err != nil {
		return err
	}

	// Loop over 2D segments
	firstSegment := true
	segmentsComplete := false
	for s := segStart; s < len(segments2D); s++ {
		er := t.geometry.ExtrudedRegion(segments2D[s].RegionID)

		// Re-resolve the mesh and axial index when the column changed
		if firstSegment || containsGlobalMesh {
			firstSegment = false
		} else {
			numFSRs = er.NumCells()
			axialMesh = er.Mesh
			zInd, err = findMeshIndex(axialMesh, zCoord, sign)
			if err != nil {
				return err
			}
		}

		remaining2D := segments2D[s].Length - startDist2D
		startDist2D = 0

		// Transport along the 2D segment until it is consumed
		for remaining2D > 0 {

			// 3D distance to the axial boundary in the travel direction
			var zDist3D float64
			if sign > 0 {
				zDist3D = (axialMesh[zInd+1] - zCoord) / cosTheta
			} else {
				zDist3D = (axialMesh[zInd] - zCoord) / cosTheta
			}

			// 3D distance to the end of the 2D segment
			segDist3D := remaining2D / sinTheta

			// Race: the nearer intersection terminates this 3D segment
			var dist2D, dist3D float64
			var zMove int
			if zDist3D <= segDist3D {
				dist2D = zDist3D * sinTheta
				dist3D = zDist3D
				zMove = sign
			} else {
				dist2D = remaining2D
				dist3D = segDist3D
				zMove = 0
			}

			fsrID := er.RegionIDs[zInd]

			surfaceFwd := geom.NoSurface
			surfaceBwd := geom.NoSurface
			if t.cmfd != nil && dist3D > TinyMove {
				// First 3D sub-segment of this 2D segment inherits its 2D
				// entry surface
				if segments2D[s].Length-remaining2D <= TinyMove {
					surfaceBwd = segments2D[s].CmfdSurfaceBwd
				}

				// Last 3D sub-segment of this 2D segment inherits its 2D
				// exit surface
				nextDist3D := (remaining2D - dist2D) / sinTheta
				if zMove == 0 || nextDist3D <= TinyMove {
					surfaceFwd = segments2D[s].CmfdSurfaceFwd
				}

				cell := t.cmfd.Cell(fsrID)
				surfaceBwd = t.cmfd.SurfaceOTF(cell, zCoord, surfaceBwd)
				zCoord += cosTheta * dist3D
				surfaceFwd = t.cmfd.SurfaceOTF(cell, zCoord, surfaceFwd)
			} else {
				zCoord += dist3D * cosTheta
			}

			if dist3D > TinyMove {
				k.Execute(dist3D, er.Materials[zInd], fsrID, 0, surfaceFwd, surfaceBwd)
			}

			remaining2D -= dist2D
			zInd += zMove

			// Crossing the outermost axial boundary ends the track: clamp
			// the index and stop. This is the domain-escape policy, not the
			// mesh-range defect handled in findMeshIndex.
			if zInd < 0 || zInd >= numFSRs {
				if zInd < 0 {
					zInd = 0
				} else {
					zInd = numFSRs - 1
				}
				segmentsComplete = true
				break
			}
		}

		if segmentsComplete {
			break
		}
	}
	return nil
}
