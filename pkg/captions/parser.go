package captions

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Caption parsing regular expressions
var (
	// Matches a cue timing line: 00:00:05.579 --> 00:00:06.858
	cueTimingRegex = regexp.MustCompile(`^(\S+)\s+-->\s+(\S+)`)
)

// Parser converts raw caption text into a speaker-attributed Transcript.
// The zero value is not usable; call NewParser.
type Parser struct {
	detect SpeakerDetector
}

// NewParser creates a Parser with the default colon-split speaker detector.
func NewParser() *Parser {
	return &Parser{detect: ColonSpeakerDetector}
}

// NewParserWithDetector creates a Parser with a custom speaker detector.
func NewParserWithDetector(detect SpeakerDetector) *Parser {
	if detect == nil {
		detect = ColonSpeakerDetector
	}
	return &Parser{detect: detect}
}

// Parse reads cue-based caption text and returns a Transcript. Input with
// no valid cues yields an empty but valid result, never an error. Only I/O
// failures from the reader are returned as errors.
//
// Cue blocks have the form "start --> end" followed by the cue text. Only
// the first non-blank line after a timing line is taken as the cue's text;
// additional lines in the same block are ignored.
func (p *Parser) Parse(r io.Reader) (*Transcript, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	result := &Transcript{Speakers: make([]*Speaker, 0)}
	byName := make(map[string]*Speaker)
	var textBuilder strings.Builder

	var cueStart, cueEnd float64
	awaitingText := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "WEBVTT") || strings.HasPrefix(line, "NOTE") {
			continue
		}

		if m := cueTimingRegex.FindStringSubmatch(line); m != nil {
			cueStart = parseTimestamp(m[1])
			cueEnd = parseTimestamp(m[2])
			awaitingText = true
			continue
		}

		if !awaitingText {
			// Cue identifiers and trailing cue lines are ignored.
			continue
		}
		awaitingText = false

		name, spoken, ok := p.detect(line)
		if !ok {
			name, spoken = UnknownSpeaker, line
		}
		if spoken == "" {
			continue
		}

		sp := byName[name]
		if sp == nil {
			sp = &Speaker{
				ID:   fmt.Sprintf("speaker_%d", len(result.Speakers)+1),
				Name: name,
			}
			byName[name] = sp
			result.Speakers = append(result.Speakers, sp)
		}

		sp.Segments = append(sp.Segments, Segment{
			Start:      cueStart,
			End:        cueEnd,
			Text:       spoken,
			Confidence: 1.0,
		})
		sp.TotalDurationSeconds += cueEnd - cueStart

		textBuilder.WriteString(name)
		textBuilder.WriteString(": ")
		textBuilder.WriteString(spoken)
		textBuilder.WriteString("\n")
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	result.FullText = textBuilder.String()
	return result, nil
}

// parseTimestamp parses an HH:MM:SS.mmm timestamp into fractional seconds.
// Malformed timestamps parse to 0 rather than failing the cue.
func parseTimestamp(ts string) float64 {
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0
	}

	return float64(hours)*3600 + float64(minutes)*60 + seconds
}
