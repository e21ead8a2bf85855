// Package kernel defines the segment-event capability applied during
// track traversal, and a small family of concrete kernels: a recording
// kernel used as the engine's scratch buffer, a counting kernel, and a
// volume-tally kernel. Consumers that need both travel directions from a
// single stack pass implement the Transport extension.
//
// A kernel instance is owned by exactly one traversal worker and is never
// shared, so implementations need no internal locking.
package kernel

import (
	"github.com/florenciaren/OpenMOC/pkg/geom"
	"github.com/florenciaren/OpenMOC/pkg/track"
)

// Kernel receives one event per generated segment. NewRay resets the
// running count at the start of each track (or z-stack in per-stack
// tracing); Count reports the events received since then.
type Kernel interface {
	NewRay()
	Execute(length float64, mat geom.Material, regionID, stackIndex, surfaceFwd, surfaceBwd int)
	Count() int
}

// SegmentSource is implemented by kernels that retain the segments of the
// current ray, keyed by z-stack index. The traversal dispatcher checks
// for it once per worker to feed completion hooks.
type SegmentSource interface {
	RaySegments(stackIndex int) []track.Segment
}

// Transport extends Kernel for bidirectional consumers: SetDirection
// announces which travel direction the following events belong to, and
// Post is invoked after each directional pass over a z-stack completes.
type Transport interface {
	Kernel
	SetDirection(forward bool)
	Post()
}

// Segmentation records every segment event, grouped by stack index. It is
// the scratch recorder the dispatcher uses in on-the-fly modes so that
// completion hooks can observe the segments of each 3D track without the
// track owning storage.
type Segmentation struct {
	count int
	rays  [][]track.Segment
}

// NewSegmentation creates an empty recording kernel.
func NewSegmentation() *Segmentation {
	return &Segmentation{}
}

// NewRay discards the previous ray's segments and resets the count.
// Per-stack buffers are retained to avoid reallocation on the hot path.
func (s *Segmentation) NewRay() {
	s.count = 0
	for i := range s.rays {
		s.rays[i] = s.rays[i][:0]
	}
}

// Execute records one segment under its stack index.
func (s *Segmentation) Execute(length float64, mat geom.Material, regionID, stackIndex, surfaceFwd, surfaceBwd int) {
	for len(s.rays) <= stackIndex {
		s.rays = append(s.rays, nil)
	}
	s.rays[stackIndex] = append(s.rays[stackIndex], track.Segment{
		Length:         length,
		Material:       mat,
		RegionID:       regionID,
		CmfdSurfaceFwd: surfaceFwd,
		CmfdSurfaceBwd: surfaceBwd,
	})
	s.count++
}

// Count returns the number of segments recorded since the last NewRay.
func (s *Segmentation) Count() int {
	return s.count
}

// RaySegments returns the recorded segments for one stack index, in
// emission order. The slice is valid until the next NewRay.
func (s *Segmentation) RaySegments(stackIndex int) []track.Segment {
	if stackIndex < 0 || stackIndex >= len(s.rays) {
		return nil
	}
	return s.rays[stackIndex]
}

// Counter counts segment events without retaining them.
type Counter struct {
	count int
}

// NewCounter creates a counting kernel.
func NewCounter() *Counter {
	return &Counter{}
}

// NewRay resets the count.
func (c *Counter) NewRay() {
	c.count = 0
}

// Execute counts one segment event.
func (c *Counter) Execute(length float64, mat geom.Material, regionID, stackIndex, surfaceFwd, surfaceBwd int) {
	c.count++
}

// Count returns the number of events since the last NewRay.
func (c *Counter) Count() int {
	return c.count
}

// Volume tallies weighted segment lengths per flat source region, the
// quadrature-weighted sum used to estimate region volumes. The tally
// accumulates across rays; merge per-worker tallies after the run.
type Volume struct {
	count   int
	weight  float64
	volumes map[int]float64
}

// NewVolume creates a volume-tally kernel.
func NewVolume() *Volume {
	return &Volume{volumes: make(map[int]float64)}
}

// SetWeight sets the quadrature weight applied to subsequent segments.
func (v *Volume) SetWeight(w float64) {
	v.weight = w
}

// NewRay resets the per-ray count. Accumulated volumes are kept.
func (v *Volume) NewRay() {
	v.count = 0
}

// Execute adds the weighted segment length to its region's tally.
func (v *Volume) Execute(length float64, mat geom.Material, regionID, stackIndex, surfaceFwd, surfaceBwd int) {
	v.volumes[regionID] += length * v.weight
	v.count++
}

// Count returns the number of events since the last NewRay.
func (v *Volume) Count() int {
	return v.count
}

// Volumes returns the accumulated tally keyed by flat source region id.
func (v *Volume) Volumes() map[int]float64 {
	return v.volumes
}
