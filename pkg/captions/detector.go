package captions

import "regexp"

// UnknownSpeaker is the name assigned to cue text with no speaker label.
const UnknownSpeaker = "Unknown"

// SpeakerDetector extracts a speaker name from a line of cue text. It
// returns the speaker name, the spoken text with the label removed, and
// whether a label was found. The parser falls back to UnknownSpeaker when
// ok is false.
type SpeakerDetector func(text string) (name, spoken string, ok bool)

// Matches a "Label: spoken text" cue line. The label may not itself contain
// a colon. Known limitation: spoken text whose first colon precedes the real
// label boundary is misattributed; callers needing stricter detection can
// supply their own SpeakerDetector.
var colonLabelRegex = regexp.MustCompile(`^([^:]+):\s+(.*)$`)

// ColonSpeakerDetector splits cue text on the first "label: rest" boundary.
// This is the default detector.
func ColonSpeakerDetector(text string) (string, string, bool) {
	m := colonLabelRegex.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
