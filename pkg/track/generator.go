package track

import "github.com/florenciaren/OpenMOC/pkg/geom"

// Generator provides the 2D track layout. Construction of the layout
// (azimuthal quadrature, parallel spacing, boundary intersection) happens
// outside the traversal engine; the engine only iterates what the
// generator exposes.
type Generator interface {
	// NumAzim returns the number of azimuthal angle indices to iterate.
	// Reflected angles are covered by track reciprocity and not repeated.
	NumAzim() int

	// NumTracks returns the number of parallel tracks for one azimuthal
	// angle (the x-crossing and y-crossing counts combined).
	NumTracks(azim int) int

	// Track2D returns the 2D track at (azim, xy).
	Track2D(azim, xy int) *Track
}

// Generator3D extends Generator with the 3D extrusion: z-stacks of 3D
// tracks per (azimuthal, xy, polar) triple, the flattened 2D track list
// the on-the-fly loops iterate, the axial mesh configuration, and the
// geometry query layer.
type Generator3D interface {
	Generator

	// Num2DTracks returns the total number of flattened 2D tracks.
	Num2DTracks() int

	// FlattenedTrack returns the i-th flattened 2D track.
	FlattenedTrack(i int) *Track

	// NumPolar returns the number of polar angle indices.
	NumPolar() int

	// TracksPerStack returns the number of 3D tracks in the z-stack at
	// (azim, xy, polar).
	TracksPerStack(azim, xy, polar int) int

	// Track3D returns the z-th 3D track of the stack at (azim, xy, polar).
	Track3D(azim, xy, polar, z int) *Track3D

	// ZSpacing returns the axial level spacing between adjacent tracks of
	// a z-stack for the given angle pair. The 3D spacing along the track
	// direction is this value over |cos theta|.
	ZSpacing(azim, polar int) float64

	// GlobalZMesh returns the shared axial mesh applied to every region
	// column, or nil when each column carries its own mesh.
	GlobalZMesh() []float64

	// Geometry returns the domain query layer.
	Geometry() geom.Geometry
}
