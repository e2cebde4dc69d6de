package model

import "strings"

// Speaker identifies which side of the call produced an utterance.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Utterance is a single speaker turn in a call, in conversation order.
type Utterance struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcript holds one call's conversation as both raw text and an ordered
// turn list. Context extraction depends on turn adjacency, so Utterances
// must preserve the original order.
type Transcript struct {
	Raw        string      `json:"raw"`
	Utterances []Utterance `json:"utterances"`
}

// assistantPrefixes are the line prefixes voice providers use for the
// assistant side of a plain-text transcript.
var assistantPrefixes = []string{"AI:", "Assistant:", "Bot:", "Agent:"}

var userPrefixes = []string{"User:", "Customer:", "Caller:", "Human:"}

// ParseTranscript splits a provider plain-text transcript into speaker-tagged
// utterances. Lines without a recognized speaker prefix are appended to the
// previous utterance; leading unprefixed lines are attributed to the assistant,
// which is who speaks first in every call flow.
func ParseTranscript(raw string) []Utterance {
	var out []Utterance
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		speaker, text, ok := splitSpeakerLine(line)
		if !ok {
			if len(out) == 0 {
				out = append(out, Utterance{Speaker: SpeakerAssistant, Text: line})
				continue
			}
			out[len(out)-1].Text = strings.TrimSpace(out[len(out)-1].Text + " " + line)
			continue
		}
		if text == "" {
			continue
		}
		out = append(out, Utterance{Speaker: speaker, Text: text})
	}
	return out
}

func splitSpeakerLine(line string) (Speaker, string, bool) {
	for _, p := range assistantPrefixes {
		if strings.HasPrefix(line, p) {
			return SpeakerAssistant, strings.TrimSpace(strings.TrimPrefix(line, p)), true
		}
	}
	for _, p := range userPrefixes {
		if strings.HasPrefix(line, p) {
			return SpeakerUser, strings.TrimSpace(strings.TrimPrefix(line, p)), true
		}
	}
	return "", "", false
}

// NewTranscript builds a Transcript from raw text and an optional structured
// turn list. When the provider did not send structured turns, they are parsed
// from the raw text.
func NewTranscript(raw string, utterances []Utterance) Transcript {
	if len(utterances) == 0 {
		utterances = ParseTranscript(raw)
	}
	return Transcript{Raw: raw, Utterances: utterances}
}
