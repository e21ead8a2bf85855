// Package traverse implements the segment-traversal engine of the
// method-of-characteristics solver: a dispatcher that drives one of four
// segmentation strategies over the track layout in parallel, delivering
// one event per generated segment to a per-worker kernel and one
// completion callback per traced track.
package traverse

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/florenciaren/OpenMOC/pkg/geom"
	"github.com/florenciaren/OpenMOC/pkg/kernel"
	"github.com/florenciaren/OpenMOC/pkg/track"
)

// TinyMove is the suppression tolerance: segments shorter than this are
// not emitted, and crossings closer than this to a 2D segment endpoint
// are treated as coincident with it.
const TinyMove = 1e-8

// ErrConfiguration reports an unsupported segmentation-mode/feature
// combination. It is detected before any traversal work begins.
var ErrConfiguration = errors.New("traverse: invalid configuration")

// Mode selects the segmentation strategy, fixed at construction.
type Mode int

const (
	// Explicit2D replays precomputed 2D segments track by track.
	Explicit2D Mode = iota
	// Explicit3D replays precomputed 3D segments track by track.
	Explicit3D
	// OTFTracks computes 3D segments on the fly, one 3D track at a time.
	OTFTracks
	// OTFStacks computes 3D segments on the fly, one z-stack at a time.
	OTFStacks
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Explicit2D:
		return "explicit-2d"
	case Explicit3D:
		return "explicit-3d"
	case OTFTracks:
		return "otf-tracks"
	case OTFStacks:
		return "otf-stacks"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// KernelFactory creates the kernel owned by one worker for the duration
// of a run. Exactly one kernel exists per worker; it is never shared.
type KernelFactory func(worker int) kernel.Kernel

// TransportFactory creates the bidirectional kernel owned by one worker
// during a two-way run.
type TransportFactory func(worker int) kernel.Transport

// Config configures a Traverser.
type Config struct {
	Mode       Mode
	Tracks     track.Generator   // 2D layout; may be omitted when Tracks3D is set
	Tracks3D   track.Generator3D // required for all modes except Explicit2D
	NumWorkers int               // number of parallel workers (0 = use CPU count)

	// OnTrack2D is invoked once per 2D track in Explicit2D mode, after its
	// segments have been replayed. Optional.
	OnTrack2D func(t *track.Track, segments []track.Segment)

	// OnTrack3D is invoked once per 3D track in the 3D modes, after all of
	// its segments have been produced. In on-the-fly modes the segment
	// slice is the worker's scratch buffer, valid only for the duration of
	// the call; it is nil when no segment-retaining kernel is in use.
	OnTrack3D func(t *track.Track3D, segments []track.Segment)

	Logger Logger // logger for run output (nil = stdout)
}

// Traverser drives track traversal for one fixed segmentation mode.
type Traverser struct {
	mode       Mode
	tracks     track.Generator
	tracks3D   track.Generator3D
	geometry   geom.Geometry
	cmfd       geom.CoarseMesh
	globalMesh []float64 // shared axial mesh, nil when columns carry their own
	numWorkers int
	onTrack2D  func(t *track.Track, segments []track.Segment)
	onTrack3D  func(t *track.Track3D, segments []track.Segment)
	logger     Logger
}

// New creates a Traverser, validating the mode/generator combination
// before any traversal can start. The axial mesh configuration is
// resolved here, once, rather than re-checked on the hot path.
func New(cfg Config) (*Traverser, error) {
	switch cfg.Mode {
	case Explicit2D, Explicit3D, OTFTracks, OTFStacks:
	default:
		return nil, fmt.Errorf("%w: unknown segmentation mode %d", ErrConfiguration, int(cfg.Mode))
	}

	tracks := cfg.Tracks
	if tracks == nil && cfg.Tracks3D != nil {
		tracks = cfg.Tracks3D
	}
	if cfg.Mode == Explicit2D {
		if tracks == nil {
			return nil, fmt.Errorf("%w: %s mode requires a track generator", ErrConfiguration, cfg.Mode)
		}
	} else if cfg.Tracks3D == nil {
		return nil, fmt.Errorf("%w: %s mode requires a 3D track generator", ErrConfiguration, cfg.Mode)
	}

	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}

	t := &Traverser{
		mode:       cfg.Mode,
		tracks:     tracks,
		tracks3D:   cfg.Tracks3D,
		numWorkers: numWorkers,
		onTrack2D:  cfg.OnTrack2D,
		onTrack3D:  cfg.OnTrack3D,
		logger:     logger,
	}
	if cfg.Tracks3D != nil {
		t.geometry = cfg.Tracks3D.Geometry()
		if t.geometry != nil {
			t.cmfd = t.geometry.CoarseMesh()
		}
		t.globalMesh = cfg.Tracks3D.GlobalZMesh()
	}
	return t, nil
}

// meshFor returns the axial mesh active for a region column: the shared
// global mesh when one is configured, the column's own mesh otherwise.
func (t *Traverser) meshFor(er *geom.ExtrudedRegion) []float64 {
	if t.globalMesh != nil {
		return t.globalMesh
	}
	return er.Mesh
}

// workerState is the traversal state owned by a single worker: its kernel,
// the optional segment recorder behind it, and its statistics slot.
// Nothing here is ever touched by another worker.
type workerState struct {
	kernel   kernel.Kernel
	recorder kernel.SegmentSource
	stats    Stats
}

func newWorkerStates(numWorkers int, kernels func(worker int) kernel.Kernel) []*workerState {
	states := make([]*workerState, numWorkers)
	for w := range states {
		st := &workerState{}
		if kernels != nil {
			st.kernel = kernels(w)
			if rec, ok := st.kernel.(kernel.SegmentSource); ok {
				st.recorder = rec
			}
		}
		states[w] = st
	}
	return states
}

// closeWorkers merges worker statistics and releases the kernels the
// dispatcher created through the factory.
func closeWorkers(states []*workerState) Stats {
	var stats Stats
	for _, st := range states {
		stats.add(st.stats)
		if c, ok := st.kernel.(io.Closer); ok {
			c.Close()
		}
	}
	return stats
}

// Run traverses every track once using the strategy fixed at
// construction. If kernels is non-nil one kernel is created per worker,
// applied to every generated segment, and released when the run ends.
// Completion hooks fire once per track regardless.
//
// A failure in any worker aborts the run: segmentation is deterministic,
// so an error indicates a data defect that retrying cannot repair.
func (t *Traverser) Run(kernels KernelFactory) (Stats, error) {
	var factory func(worker int) kernel.Kernel
	if kernels != nil {
		factory = func(w int) kernel.Kernel { return kernels(w) }
	}
	states := newWorkerStates(t.numWorkers, factory)

	t.logger.Printf("Traversing tracks in %s mode with %d workers...\n", t.mode, t.numWorkers)

	var err error
	switch t.mode {
	case Explicit2D:
		err = t.runExplicit2D(states)
	case Explicit3D:
		err = t.runExplicit3D(states)
	case OTFTracks:
		err = t.runByTrackOTF(states)
	case OTFStacks:
		err = t.runByStackOTF(states)
	}

	stats := closeWorkers(states)
	return stats, err
}

// RunTwoWay traverses every z-stack forward and backward in one pass,
// delivering both directions to per-worker transport kernels. Only
// supported in OTFStacks mode; any other mode fails before work begins.
func (t *Traverser) RunTwoWay(kernels TransportFactory) (Stats, error) {
	if t.mode != OTFStacks {
		return Stats{}, fmt.Errorf("%w: two-way tracing requires %s mode, have %s",
			ErrConfiguration, OTFStacks, t.mode)
	}

	states := newWorkerStates(t.numWorkers, nil)
	transports := make([]kernel.Transport, t.numWorkers)
	if kernels != nil {
		for w := range states {
			transports[w] = kernels(w)
			states[w].kernel = transports[w]
			if rec, ok := states[w].kernel.(kernel.SegmentSource); ok {
				states[w].recorder = rec
			}
		}
	}

	t.logger.Printf("Traversing tracks two-way in %s mode with %d workers...\n", t.mode, t.numWorkers)

	err := t.forEachStack(states, func(st *workerState, w int, flat *track.Track, p int) {
		if transports[w] != nil {
			t.traceStackTwoWay(flat, p, transports[w])
		}
	})

	stats := closeWorkers(states)
	return stats, err
}

// runExplicit2D loops over all explicit 2D tracks, parallelizing over the
// parallel tracks of each azimuthal angle.
func (t *Traverser) runExplicit2D(states []*workerState) error {
	for a := 0; a < t.tracks.NumAzim(); a++ {
		n := t.tracks.NumTracks(a)
		err := parallelFor(n, len(states), func(w, lo, hi int) error {
			st := states[w]
			for i := lo; i < hi; i++ {
				tr := t.tracks.Track2D(a, i)
				if st.kernel != nil {
					st.kernel.NewRay()
					traceExplicit(tr.Segments, st.kernel)
					st.stats.SegmentsGenerated += st.kernel.Count()
				}
				if t.onTrack2D != nil {
					t.onTrack2D(tr, tr.Segments)
				}
				st.stats.RaysTraced++
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// runExplicit3D loops over all explicit 3D tracks, nested inside the 2D
// iteration, replaying each track's own segment buffer.
func (t *Traverser) runExplicit3D(states []*workerState) error {
	numPolar := t.tracks3D.NumPolar()
	for a := 0; a < t.tracks3D.NumAzim(); a++ {
		n := t.tracks3D.NumTracks(a)
		err := parallelFor(n, len(states), func(w, lo, hi int) error {
			st := states[w]
			for i := lo; i < hi; i++ {
				for p := 0; p < numPolar; p++ {
					for z := 0; z < t.tracks3D.TracksPerStack(a, i, p); z++ {
						t3 := t.tracks3D.Track3D(a, i, p, z)
						if st.kernel != nil {
							st.kernel.NewRay()
							traceExplicit(t3.Segments, st.kernel)
							st.stats.SegmentsGenerated += st.kernel.Count()
						}
						if t.onTrack3D != nil {
							t.onTrack3D(t3, t3.Segments)
						}
						st.stats.RaysTraced++
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// runByTrackOTF loops over flattened 2D tracks and computes the segments
// of each associated 3D track on the fly.
func (t *Traverser) runByTrackOTF(states []*workerState) error {
	numPolar := t.tracks3D.NumPolar()
	n := t.tracks3D.Num2DTracks()
	return parallelFor(n, len(states), func(w, lo, hi int) error {
		st := states[w]
		for ext := lo; ext < hi; ext++ {
			flat := t.tracks3D.FlattenedTrack(ext)
			a := flat.AzimIndex
			i := flat.XYIndex
			for p := 0; p < numPolar; p++ {
				for z := 0; z < t.tracks3D.TracksPerStack(a, i, p); z++ {
					t3 := t.tracks3D.Track3D(a, i, p, z)
					var segments []track.Segment
					if st.kernel != nil {
						st.kernel.NewRay()
						if err := t.traceSegmentsOTF(flat, t3.Start, t3.Theta, st.kernel); err != nil {
							return err
						}
						st.stats.SegmentsGenerated += st.kernel.Count()
						if st.recorder != nil {
							segments = st.recorder.RaySegments(0)
						}
					}
					if t.onTrack3D != nil {
						t.onTrack3D(t3, segments)
					}
					st.stats.RaysTraced++
				}
			}
		}
		return nil
	})
}

// runByStackOTF loops over flattened 2D tracks and polar angles, tracing
// each whole z-stack in one pass of the batched interval computation.
func (t *Traverser) runByStackOTF(states []*workerState) error {
	return t.forEachStack(states, func(st *workerState, w int, flat *track.Track, p int) {
		if st.kernel != nil {
			t.traceStackOTF(flat, p, st.kernel)
		}
	})
}

// forEachStack drives the (flattened track, polar angle) iteration shared
// by one-way and two-way stack tracing: resets the kernel per stack,
// invokes trace, then fires the completion hook once per 3D track of the
// stack using the worker's scratch recorder.
func (t *Traverser) forEachStack(states []*workerState, trace func(st *workerState, w int, flat *track.Track, p int)) error {
	numPolar := t.tracks3D.NumPolar()
	n := t.tracks3D.Num2DTracks()
	return parallelFor(n, len(states), func(w, lo, hi int) error {
		st := states[w]
		for ext := lo; ext < hi; ext++ {
			flat := t.tracks3D.FlattenedTrack(ext)
			a := flat.AzimIndex
			i := flat.XYIndex
			for p := 0; p < numPolar; p++ {
				if st.kernel != nil {
					st.kernel.NewRay()
				}
				trace(st, w, flat, p)
				if st.kernel != nil {
					st.stats.SegmentsGenerated += st.kernel.Count()
				}
				for z := 0; z < t.tracks3D.TracksPerStack(a, i, p); z++ {
					t3 := t.tracks3D.Track3D(a, i, p, z)
					var segments []track.Segment
					if st.recorder != nil {
						segments = st.recorder.RaySegments(z)
					}
					if t.onTrack3D != nil {
						t.onTrack3D(t3, segments)
					}
					st.stats.RaysTraced++
				}
			}
		}
		return nil
	})
}
