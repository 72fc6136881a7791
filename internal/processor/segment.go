package processor

// Segment is a pixel-aligned byte range of a job's buffers handled by one worker.
type Segment struct {
	Offset int
	Length int
}

func (s Segment) End() int {
	return s.Offset + s.Length
}

// SegmentLength is 4*ceil(pixels/threads) for a buffer of length bytes.
func SegmentLength(length, threads int) int {
	if threads < 1 {
		threads = 1
	}
	pixels := length / 4
	return 4 * ((pixels + threads - 1) / threads)
}

// Segments splits length bytes over threads workers. Ranges are contiguous and in
// worker order; trailing ones may be short or empty.
func Segments(length, threads int) []Segment {
	if threads < 1 {
		threads = 1
	}
	segLen := SegmentLength(length, threads)
	segments := make([]Segment, threads)
	for i := range segments {
		offset := min(i*segLen, length)
		end := min(offset+segLen, length)
		segments[i] = Segment{Offset: offset, Length: end - offset}
	}
	return segments
}
