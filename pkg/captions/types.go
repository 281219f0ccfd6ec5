// Package captions provides parsing for cue-based caption files (WebVTT and
// close relatives) into speaker-attributed transcripts.
package captions

// Segment is a single timed cue attributed to a speaker.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Speaker accumulates the segments spoken by one participant.
type Speaker struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	TotalDurationSeconds float64   `json:"total_duration_seconds"`
	Segments             []Segment `json:"segments"`
}

// Transcript is the result of parsing a caption file.
type Transcript struct {
	Speakers []*Speaker `json:"speakers"`
	FullText string     `json:"full_text"`
}

// SegmentCount returns the total number of segments across all speakers.
func (t *Transcript) SegmentCount() int {
	n := 0
	for _, s := range t.Speakers {
		n += len(s.Segments)
	}
	return n
}

// IsCaptionContent reports whether the given media type is a caption format
// this package can parse.
func IsCaptionContent(mediaType string) bool {
	switch mediaType {
	case "text/vtt", "text/plain", "":
		return true
	default:
		return false
	}
}
