package traverse

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/florenciaren/OpenMOC/pkg/geom"
	"github.com/florenciaren/OpenMOC/pkg/track"
)

// nopLogger silences run output in tests
type nopLogger struct{}

func (nopLogger) Printf(format string, args ...interface{}) {}

// mockMaterial implements geom.Material for testing
type mockMaterial struct{ id int }

func (m mockMaterial) ID() int { return m.id }

// mockCoarseMesh implements geom.CoarseMesh: hints pass through unchanged,
// and hintless crossings resolve to a deterministic id per known axial
// boundary so coincident faces of different segments receive equal tags.
type mockCoarseMesh struct {
	boundaries []float64
}

func (m *mockCoarseMesh) Cell(regionID int) int { return regionID }

func (m *mockCoarseMesh) SurfaceOTF(cell int, z float64, hint int) int {
	if hint != geom.NoSurface {
		return hint
	}
	for k, b := range m.boundaries {
		if math.Abs(z-b) < 1e-9 {
			return 1000 + k
		}
	}
	return geom.NoSurface
}

// mockGeometry implements geom.Geometry over a fixed set of region columns
type mockGeometry struct {
	regions map[int]*geom.ExtrudedRegion
	cmfd    geom.CoarseMesh
}

func (g *mockGeometry) ExtrudedRegion(id int) *geom.ExtrudedRegion { return g.regions[id] }
func (g *mockGeometry) ExtrudedRegionAt(p r3.Vector) int           { return 0 }
func (g *mockGeometry) CoarseMesh() geom.CoarseMesh                { return g.cmfd }

// mockGenerator implements track.Generator3D over in-memory track arrays
type mockGenerator struct {
	tracks2D   [][]*track.Track
	flattened  []*track.Track
	stacks     map[[3]int][]*track.Track3D
	numPolar   int
	zSpacing   float64
	globalMesh []float64
	geometry   geom.Geometry
}

func (g *mockGenerator) NumAzim() int                  { return len(g.tracks2D) }
func (g *mockGenerator) NumTracks(azim int) int        { return len(g.tracks2D[azim]) }
func (g *mockGenerator) Track2D(azim, xy int) *track.Track {
	return g.tracks2D[azim][xy]
}
func (g *mockGenerator) Num2DTracks() int                   { return len(g.flattened) }
func (g *mockGenerator) FlattenedTrack(i int) *track.Track  { return g.flattened[i] }
func (g *mockGenerator) NumPolar() int                      { return g.numPolar }
func (g *mockGenerator) TracksPerStack(azim, xy, polar int) int {
	return len(g.stacks[[3]int{azim, xy, polar}])
}
func (g *mockGenerator) Track3D(azim, xy, polar, z int) *track.Track3D {
	return g.stacks[[3]int{azim, xy, polar}][z]
}
func (g *mockGenerator) ZSpacing(azim, polar int) float64 { return g.zSpacing }
func (g *mockGenerator) GlobalZMesh() []float64           { return g.globalMesh }
func (g *mockGenerator) Geometry() geom.Geometry          { return g.geometry }

// newColumn builds a region column over the given mesh with region ids
// baseRegion, baseRegion+1, ... per axial cell.
func newColumn(mesh []float64, baseRegion int) *geom.ExtrudedRegion {
	cells := len(mesh) - 1
	er := &geom.ExtrudedRegion{Mesh: mesh}
	for i := 0; i < cells; i++ {
		er.Materials = append(er.Materials, mockMaterial{id: 1})
		er.RegionIDs = append(er.RegionIDs, baseRegion+i)
	}
	return er
}

// stackConfig describes a single-stack scenario: one flattened 2D track
// along the x axis (phi = 0) whose segments all reference column 0, and a
// z-stack of numZ tracks at polar angle theta, the reference track
// starting at height z0.
type stackConfig struct {
	mesh       []float64
	globalMesh []float64
	segments   []track.Segment
	theta      float64
	z0         float64
	zSpacing   float64
	numZ       int
	cmfd       geom.CoarseMesh
	columns    map[int]*geom.ExtrudedRegion // optional; default is column 0 over mesh
}

// newStackGen assembles a mock generator for one z-stack scenario.
func newStackGen(cfg stackConfig) *mockGenerator {
	columns := cfg.columns
	if columns == nil {
		columns = map[int]*geom.ExtrudedRegion{0: newColumn(cfg.mesh, 10)}
	}

	var length2D float64
	for i := range cfg.segments {
		length2D += cfg.segments[i].Length
	}

	flat := &track.Track{
		AzimIndex: 0,
		XYIndex:   0,
		Phi:       0,
		Start:     r3.Vector{X: 0, Y: 0, Z: 0},
		End:       r3.Vector{X: length2D, Y: 0, Z: 0},
		Segments:  cfg.segments,
	}

	rise := length2D / math.Tan(cfg.theta)
	stack := make([]*track.Track3D, cfg.numZ)
	for i := range stack {
		z := cfg.z0 + float64(i)*cfg.zSpacing
		stack[i] = &track.Track3D{
			Track: track.Track{
				AzimIndex: 0,
				XYIndex:   0,
				Phi:       0,
				Start:     r3.Vector{X: 0, Y: 0, Z: z},
				End:       r3.Vector{X: length2D, Y: 0, Z: z + rise},
			},
			Theta:      cfg.theta,
			PolarIndex: 0,
			StackIndex: i,
		}
	}

	return &mockGenerator{
		tracks2D:   [][]*track.Track{{flat}},
		flattened:  []*track.Track{flat},
		stacks:     map[[3]int][]*track.Track3D{{0, 0, 0}: stack},
		numPolar:   1,
		zSpacing:   cfg.zSpacing,
		globalMesh: cfg.globalMesh,
		geometry:   &mockGeometry{regions: columns, cmfd: cfg.cmfd},
	}
}

// newTraverser builds a Traverser over a mock generator without logging.
func newTraverser(mode Mode, gen track.Generator3D, workers int) *Traverser {
	t, err := New(Config{
		Mode:       mode,
		Tracks3D:   gen,
		NumWorkers: workers,
		Logger:     nopLogger{},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// sumLengths returns the summed length of a segment slice.
func sumLengths(segments []track.Segment) float64 {
	var total float64
	for i := range segments {
		total += segments[i].Length
	}
	return total
}
