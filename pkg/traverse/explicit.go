package traverse

import (
	"github.com/florenciaren/OpenMOC/pkg/kernel"
	"github.com/florenciaren/OpenMOC/pkg/track"
)

// traceExplicit replays a track's stored segments into the kernel
// unchanged, with a stack index of 0. Pure shim so the dispatcher has one
// call shape across all segmentation modes.
func traceExplicit(segments []track.Segment, k kernel.Kernel) {
	for i := range segments {
		s := &segments[i]
		k.Execute(s.Length, s.Material, s.RegionID, 0, s.CmfdSurfaceFwd, s.CmfdSurfaceBwd)
	}
}
