package traverse

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/florenciaren/OpenMOC/pkg/geom"
	"github.com/florenciaren/OpenMOC/pkg/kernel"
	"github.com/florenciaren/OpenMOC/pkg/track"
)

// traceStackOTF computes the 3D segments of every track in a z-stack in
// one sweep over (2D segment, axial cell) pairs and applies the kernel to
// each, tagged with the originating stack index.
//
// All tracks in the stack are vertical translates of the reference track
// by a fixed spacing, so each axial cell's intersection with the whole
// stack reduces to classifying stack indices into four ranges against the
// cell's [zMin, zMax) span: partial crossings clipped by the lower
// boundary, full crossings of the 2D segment span, straddles of both
// boundaries (only possible when no track crosses fully), and partial
// crossings clipped by the upper boundary. Range bounds come from ceiling
// division of the cell extent by the stack spacing; lengths are closed
// form. This replaces an O(stack × cells) walk with O(cells).
func (t *Traverser) traceStackOTF(flat *track.Track, polarIndex int, k kernel.Kernel) {
	azimIndex := flat.AzimIndex
	xyIndex := flat.XYIndex
	numZStack := t.tracks3D.TracksPerStack(azimIndex, xyIndex, polarIndex)
	first := t.tracks3D.Track3D(azimIndex, xyIndex, polarIndex, 0)
	theta := first.Theta
	zSpacing := t.tracks3D.ZSpacing(azimIndex, polarIndex)

	phi := flat.Phi
	cosTheta := math.Cos(theta)
	sinTheta := math.Sin(theta)
	tanTheta := sinTheta / cosTheta
	sign := 0
	if cosTheta > 0 {
		sign = 1
	} else if cosTheta < 0 {
		sign = -1
	}
	trackSpacing3D := zSpacing / math.Abs(cosTheta)

	// 2D distance from the 2D track start to the stack's start
	startDist2D := (first.Start.X - flat.Start.X) / math.Cos(phi)

	// Axial height at which the reference track crosses the 2D track start
	startZ := first.Start.Z - startDist2D/tanTheta

	// Loop over 2D segments
	firstStartZ := startZ
	segments2D := flat.Segments
	for s := range segments2D {
		segLength2D := segments2D[s].Length
		er := t.geometry.ExtrudedRegion(segments2D[s].RegionID)
		axialMesh := t.meshFor(er)
		numFSRs := len(axialMesh) - 1

		// Axial span of the reference track across this 2D segment
		firstEndZ := firstStartZ + segLength2D/tanTheta
		var firstTrackLowerZ, firstTrackUpperZ float64
		if sign > 0 {
			firstTrackLowerZ = firstStartZ
			firstTrackUpperZ = firstEndZ
		} else {
			firstTrackLowerZ = firstEndZ
			firstTrackUpperZ = firstStartZ
		}

		// Visit axial cells in travel order
		for zIter := 0; zIter < numFSRs; zIter++ {
			zInd := zIter
			if sign < 0 {
				zInd = numFSRs - zIter - 1
			}

			fsrID := er.RegionIDs[zInd]
			material := er.Materials[zInd]

			var cell int
			if t.cmfd != nil {
				cell = t.cmfd.Cell(fsrID)
			}

			zMin := axialMesh[zInd]
			zMax := axialMesh[zInd+1]

			// Stack index ranges crossing this cell
			startTrack := int(math.Ceil((zMin - firstTrackUpperZ) / zSpacing))
			startFull := int(math.Ceil((zMin - firstTrackLowerZ) / zSpacing))
			endFull := int(math.Ceil((zMax - firstTrackUpperZ) / zSpacing))
			endTrack := int(math.Ceil((zMax - firstTrackLowerZ) / zSpacing))

			// Every range below is clamped to the stack's valid index
			// window; indices outside it describe translates of the
			// reference track that have no physical counterpart
			startTrack = max(startTrack, 0)
			endTrack = min(endTrack, numZStack)

			// Tracks clipped by the lower cell boundary
			minLower := min(startFull, endFull)
			firstSegLen3D := (firstTrackUpperZ - zMin) / math.Abs(cosTheta)
			for i := startTrack; i < min(minLower, endTrack); i++ {
				segLen3D := firstSegLen3D + float64(i)*trackSpacing3D
				if segLen3D <= TinyMove {
					continue
				}

				surfaceFwd := geom.NoSurface
				surfaceBwd := geom.NoSurface
				if t.cmfd != nil {
					lowZ := firstTrackLowerZ + float64(i)*zSpacing
					highZ := firstTrackUpperZ + float64(i)*zSpacing
					distToCorner := math.Abs((zMin - lowZ) / cosTheta)
					if sign > 0 {
						surfaceFwd = segments2D[s].CmfdSurfaceFwd
						surfaceFwd = t.cmfd.SurfaceOTF(cell, highZ, surfaceFwd)
						if distToCorner <= TinyMove {
							surfaceBwd = segments2D[s].CmfdSurfaceBwd
						}
						surfaceBwd = t.cmfd.SurfaceOTF(cell, zMin, surfaceBwd)
					} else {
						if distToCorner <= TinyMove {
							surfaceFwd = segments2D[s].CmfdSurfaceFwd
						}
						surfaceFwd = t.cmfd.SurfaceOTF(cell, zMin, surfaceFwd)
						surfaceBwd = segments2D[s].CmfdSurfaceBwd
						surfaceBwd = t.cmfd.SurfaceOTF(cell, highZ, surfaceBwd)
					}
				}

				k.Execute(segLen3D, material, fsrID, i, surfaceFwd, surfaceBwd)
			}

			if endFull > startFull {
				// Tracks whose whole 2D segment span lies inside the cell
				segLen3D := segLength2D / sinTheta
				if segLen3D > TinyMove {
					for i := max(startFull, startTrack); i < min(endFull, endTrack); i++ {
						surfaceFwd := segments2D[s].CmfdSurfaceFwd
						surfaceBwd := segments2D[s].CmfdSurfaceBwd
						if t.cmfd != nil {
							lowZ := firstStartZ + float64(i)*zSpacing
							highZ := firstEndZ + float64(i)*zSpacing
							surfaceFwd = t.cmfd.SurfaceOTF(cell, highZ, surfaceFwd)
							surfaceBwd = t.cmfd.SurfaceOTF(cell, lowZ, surfaceBwd)
						}
						k.Execute(segLen3D, material, fsrID, i, surfaceFwd, surfaceBwd)
					}
				}
			} else if startFull > endFull {
				// Tracks straddling both boundaries within this 2D segment
				segLen3D := (zMax - zMin) / math.Abs(cosTheta)
				if segLen3D > TinyMove {
					for i := max(endFull, startTrack); i < min(startFull, endTrack); i++ {
						surfaceFwd := geom.NoSurface
						surfaceBwd := geom.NoSurface
						if t.cmfd != nil {
							var enterZ, exitZ float64
							if sign > 0 {
								enterZ = zMin
								exitZ = zMax
							} else {
								enterZ = zMax
								exitZ = zMin
							}

							// Corner hits in the s-z plane coincide with the 2D
							// segment endpoints and reuse their surfaces
							trackEndZ := firstEndZ + float64(i)*zSpacing
							if (trackEndZ-exitZ)/cosTheta <= TinyMove {
								surfaceFwd = segments2D[s].CmfdSurfaceFwd
							}
							trackStartZ := firstStartZ + float64(i)*zSpacing
							if (enterZ-trackStartZ)/cosTheta <= TinyMove {
								surfaceBwd = segments2D[s].CmfdSurfaceBwd
							}

							surfaceFwd = t.cmfd.SurfaceOTF(cell, exitZ, surfaceFwd)
							surfaceBwd = t.cmfd.SurfaceOTF(cell, enterZ, surfaceBwd)
						}
						k.Execute(segLen3D, material, fsrID, i, surfaceFwd, surfaceBwd)
					}
				}
			}

			// Tracks clipped by the upper cell boundary
			minUpper := max(startFull, endFull)
			firstSegLen3D = (zMax - firstTrackLowerZ) / math.Abs(cosTheta)
			for i := max(minUpper, startTrack); i < endTrack; i++ {
				segLen3D := firstSegLen3D - float64(i)*trackSpacing3D
				if segLen3D <= TinyMove {
					continue
				}

				surfaceFwd := geom.NoSurface
				surfaceBwd := geom.NoSurface
				if t.cmfd != nil {
					lowZ := firstTrackLowerZ + float64(i)*zSpacing
					highZ := firstTrackUpperZ + float64(i)*zSpacing
					distToCorner := (highZ - zMax) / math.Abs(cosTheta)
					if sign > 0 {
						if distToCorner <= TinyMove {
							surfaceFwd = segments2D[s].CmfdSurfaceFwd
						}
						surfaceFwd = t.cmfd.SurfaceOTF(cell, zMax, surfaceFwd)
						surfaceBwd = segments2D[s].CmfdSurfaceBwd
						surfaceBwd = t.cmfd.SurfaceOTF(cell, lowZ, surfaceBwd)
					} else {
						surfaceFwd = segments2D[s].CmfdSurfaceFwd
						surfaceFwd = t.cmfd.SurfaceOTF(cell, lowZ, surfaceFwd)
						if distToCorner <= TinyMove {
							surfaceBwd = segments2D[s].CmfdSurfaceBwd
						}
						surfaceBwd = t.cmfd.SurfaceOTF(cell, zMax, surfaceBwd)
					}
				}

				k.Execute(segLen3D, material, fsrID, i, surfaceFwd, surfaceBwd)
			}
		}

		firstStartZ = firstEndZ
	}
}

// stackGuard snapshots the geometric description a two-way trace mutates:
// the flattened track's endpoints, azimuthal angle and segment order, and
// the reference 3D track's endpoints and polar angle.
type stackGuard struct {
	flat  *track.Track
	first *track.Track3D

	start2D, end2D r3.Vector
	phi            float64
	start3D, end3D r3.Vector
	theta          float64

	reversed bool
}

func newStackGuard(flat *track.Track, first *track.Track3D) *stackGuard {
	return &stackGuard{
		flat:    flat,
		first:   first,
		start2D: flat.Start,
		end2D:   flat.End,
		phi:     flat.Phi,
		start3D: first.Start,
		end3D:   first.End,
		theta:   first.Theta,
	}
}

// reverse flips the stack's geometric description in place so that a
// forward trace walks it backward: endpoints swap, the polar angle
// reflects through pi, the azimuthal angle shifts by pi, and the 2D
// segment list reverses with forward/backward surfaces exchanged.
func (g *stackGuard) reverse() {
	g.first.Start = g.end3D
	g.first.End = g.start3D
	g.first.Theta = math.Pi - g.theta
	g.flat.Start = g.end2D
	g.flat.End = g.start2D
	g.flat.Phi = math.Pi + g.phi
	reverseSegments(g.flat.Segments)
	g.reversed = true
}

// restore returns the stack to its pre-trace state exactly. Scalar fields
// come back from the snapshot and the segment reversal is its own
// inverse, so the restored state is identical to the original.
func (g *stackGuard) restore() {
	if g.reversed {
		reverseSegments(g.flat.Segments)
		g.reversed = false
	}
	g.first.Start = g.start3D
	g.first.End = g.end3D
	g.first.Theta = g.theta
	g.flat.Start = g.start2D
	g.flat.End = g.end2D
	g.flat.Phi = g.phi
}

// reverseSegments reverses segment order in place and swaps each
// segment's forward and backward surfaces.
func reverseSegments(segments []track.Segment) {
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	for i := range segments {
		segments[i].CmfdSurfaceFwd, segments[i].CmfdSurfaceBwd =
			segments[i].CmfdSurfaceBwd, segments[i].CmfdSurfaceFwd
	}
}

// traceStackTwoWay traces a z-stack forward, notifies the kernel the pass
// is complete, reverses the stack's geometric description, traces it
// backward, and restores the original description. The deferred guard
// restores on every exit path, so the track objects show no observable
// side effect after the call returns.
func (t *Traverser) traceStackTwoWay(flat *track.Track, polarIndex int, k kernel.Transport) {
	first := t.tracks3D.Track3D(flat.AzimIndex, flat.XYIndex, polarIndex, 0)
	guard := newStackGuard(flat, first)
	defer guard.restore()

	k.SetDirection(true)
	t.traceStackOTF(flat, polarIndex, k)
	k.Post()

	guard.reverse()

	k.SetDirection(false)
	t.traceStackOTF(flat, polarIndex, k)
	k.Post()
}
