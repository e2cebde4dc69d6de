// Package webhook ingests call-provider events, one endpoint per call stage.
package webhook

import (
	"strings"

	"github.com/dreamseed2025/formation-intake/internal/model"
)

// EventKind is the closed set of provider event types this service
// understands. Anything else maps to KindUnknown and is acknowledged
// without processing, so a provider rollout of new event types never
// turns into an error storm on their retry queue.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindEndOfCallReport
	KindStatusUpdate
	KindSpeechUpdate
	KindTranscriptFragment
	KindHang
	KindFunctionCall
)

// ParseEventKind maps a provider event type string to its kind.
func ParseEventKind(s string) EventKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "end-of-call-report":
		return KindEndOfCallReport
	case "status-update":
		return KindStatusUpdate
	case "speech-update":
		return KindSpeechUpdate
	case "transcript":
		return KindTranscriptFragment
	case "hang":
		return KindHang
	case "function-call":
		return KindFunctionCall
	}
	return KindUnknown
}

// String returns the provider wire name for the kind.
func (k EventKind) String() string {
	switch k {
	case KindEndOfCallReport:
		return "end-of-call-report"
	case KindStatusUpdate:
		return "status-update"
	case KindSpeechUpdate:
		return "speech-update"
	case KindTranscriptFragment:
		return "transcript"
	case KindHang:
		return "hang"
	case KindFunctionCall:
		return "function-call"
	}
	return "unknown"
}

// Envelope is the provider webhook body.
type Envelope struct {
	Type string `json:"type"`
	Call Call   `json:"call"`
}

// Call carries the call data attached to a provider event. Most fields are
// only present on end-of-call reports.
type Call struct {
	ID              string    `json:"id"`
	AssistantID     string    `json:"assistantId"`
	Customer        Customer  `json:"customer"`
	Transcript      string    `json:"transcript"`
	Summary         string    `json:"summary"`
	DurationSeconds float64   `json:"durationSeconds"`
	Status          string    `json:"status"`
	EndedReason     string    `json:"endedReason"`
	Messages        []Message `json:"messages"`
}

// Customer is the caller identity block.
type Customer struct {
	Number string `json:"number"`
	Email  string `json:"email,omitempty"`
}

// Message is one structured conversation turn as the provider records it.
type Message struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Transcript converts the call payload into the extraction input. Structured
// messages are preferred; when absent, speaker turns are parsed from the raw
// transcript text. System and tool turns are dropped either way.
func (c Call) AsTranscript() model.Transcript {
	var utterances []model.Utterance
	for _, m := range c.Messages {
		text := strings.TrimSpace(m.Message)
		if text == "" {
			continue
		}
		switch strings.ToLower(m.Role) {
		case "user", "customer", "human":
			utterances = append(utterances, model.Utterance{Speaker: model.SpeakerUser, Text: text})
		case "assistant", "bot", "ai":
			utterances = append(utterances, model.Utterance{Speaker: model.SpeakerAssistant, Text: text})
		}
	}
	return model.NewTranscript(c.Transcript, utterances)
}
