package conversation

import (
	"time"

	"github.com/Skufu/pillscope/internal/medicine"
)

// Origin says who produced a message.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// Kind says how a message should be rendered.
type Kind string

const (
	KindInput        Kind = "input"
	KindMedicine     Kind = "medicine-record"
	KindConversation Kind = "conversational-reply"
	KindError        Kind = "error"
)

// Phase is the coarse screen mode of a session.
type Phase string

const (
	PhaseLanding Phase = "landing"
	PhaseChat    Phase = "chat"
)

// FailureText is the only failure detail a user ever sees.
const FailureText = "Error analyzing the medicine. Please try again."

// Message is one transcript entry. Medicine is set only for KindMedicine; every
// other kind carries Text.
type Message struct {
	Origin    Origin           `json:"origin"`
	Kind      Kind             `json:"kind"`
	Text      string           `json:"text,omitempty"`
	Medicine  *medicine.Record `json:"medicine,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Sections renders a medicine message per the display rule. Other kinds have none.
func (m Message) Sections() []medicine.Section {
	if m.Kind != KindMedicine {
		return nil
	}
	return m.Medicine.Sections()
}

func userMessage(text string, now time.Time) Message {
	return Message{Origin: OriginUser, Kind: KindInput, Text: text, CreatedAt: now}
}

// assistantMessage maps a classified result through an explicit match on its
// kind. The default arm renders conversation text.
func assistantMessage(res medicine.Result, now time.Time) Message {
	switch {
	case res.IsMedicine():
		return Message{Origin: OriginAssistant, Kind: KindMedicine, Medicine: res.Medicine, CreatedAt: now}
	default:
		return Message{Origin: OriginAssistant, Kind: KindConversation, Text: res.Reply, CreatedAt: now}
	}
}

func errorMessage(now time.Time) Message {
	return Message{Origin: OriginAssistant, Kind: KindError, Text: FailureText, CreatedAt: now}
}
