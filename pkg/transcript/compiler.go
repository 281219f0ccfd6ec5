package transcript

import (
	"sort"
	"strings"
)

// speakingRateWPM is the fixed words-per-minute heuristic used to estimate
// speaking time from live message word counts.
const speakingRateWPM = 150.0

// liveLog is the append-only log of streamed caption fragments for one
// meeting, with incrementally maintained speaker statistics. Entries are
// never edited or removed.
type liveLog struct {
	messages []LiveMessage
	stats    map[string]*SpeakerStats
}

func newLiveLog() *liveLog {
	return &liveLog{stats: make(map[string]*SpeakerStats)}
}

// append adds a message and updates the speaker's counters. Every message
// counts toward the estimate, partial or final.
func (l *liveLog) append(msg LiveMessage) {
	l.messages = append(l.messages, msg)

	st := l.stats[msg.SpeakerID]
	if st == nil {
		st = &SpeakerStats{}
		l.stats[msg.SpeakerID] = st
	}
	st.MessageCount++
	st.EstimatedSpeakingSeconds += float64(wordCount(msg.Text)) / speakingRateWPM * 60
}

// snapshot returns a copy of the message log.
func (l *liveLog) snapshot() []LiveMessage {
	if len(l.messages) == 0 {
		return nil
	}
	out := make([]LiveMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// statsSnapshot returns a copy of the per-speaker counters.
func (l *liveLog) statsSnapshot() map[string]SpeakerStats {
	out := make(map[string]SpeakerStats, len(l.stats))
	for id, st := range l.stats {
		out[id] = *st
	}
	return out
}

// compileFinal derives the human-readable transcript from the finalized
// fragments only. It is recomputed in full on every call: messages are
// filtered to isFinal, sorted ascending by timestamp, and consecutive runs
// by the same speaker are collapsed under a single speaker header with the
// run's text joined by single spaces.
func (l *liveLog) compileFinal() string {
	finals := make([]LiveMessage, 0, len(l.messages))
	for _, msg := range l.messages {
		if msg.IsFinal {
			finals = append(finals, msg)
		}
	}
	if len(finals) == 0 {
		return ""
	}

	sort.SliceStable(finals, func(i, j int) bool {
		return finals[i].Timestamp.Before(finals[j].Timestamp)
	})

	var b strings.Builder
	var runSpeaker string
	var runTexts []string

	flush := func() {
		if len(runTexts) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(runSpeaker)
		b.WriteString(": ")
		b.WriteString(strings.Join(runTexts, " "))
		runTexts = runTexts[:0]
	}

	var runSpeakerID string
	for _, msg := range finals {
		if msg.SpeakerID != runSpeakerID || len(runTexts) == 0 {
			flush()
			runSpeakerID = msg.SpeakerID
			runSpeaker = msg.SpeakerName
			if runSpeaker == "" {
				runSpeaker = msg.SpeakerID
			}
		}
		runTexts = append(runTexts, msg.Text)
	}
	flush()

	return b.String()
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
