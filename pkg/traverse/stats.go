package traverse

// Stats contains statistics about one traversal run
type Stats struct {
	RaysTraced        int // Number of tracks the completion loop visited
	SegmentsGenerated int // Total segment events delivered to kernels
}

// add merges another worker's statistics into this one
func (s *Stats) add(other Stats) {
	s.RaysTraced += other.RaysTraced
	s.SegmentsGenerated += other.SegmentsGenerated
}
