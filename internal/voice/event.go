package voice

import (
	"net/http"
	"strconv"
	"strings"
)

// TurnEvent is one webhook delivery from the gateway, normalized from the
// Twilio form fields.
type TurnEvent struct {
	CallSID       string
	Speech        string
	Confidence    float64
	HasConfidence bool

	From      string
	To        string
	Direction string
	Status    string
	Duration  int
}

// ParseTurnEvent reads the Twilio form post off the request. It never fails
// outright; absent fields simply read as zero values, and the handler treats
// an empty CallSID as a malformed event.
func ParseTurnEvent(r *http.Request) TurnEvent {
	_ = r.ParseForm()
	ev := TurnEvent{
		CallSID:   r.PostFormValue("CallSid"),
		Speech:    strings.TrimSpace(r.PostFormValue("SpeechResult")),
		From:      r.PostFormValue("From"),
		To:        r.PostFormValue("To"),
		Direction: r.PostFormValue("Direction"),
		Status:    strings.ToLower(r.PostFormValue("CallStatus")),
	}
	if raw := r.PostFormValue("Confidence"); raw != "" {
		if c, err := strconv.ParseFloat(raw, 64); err == nil {
			ev.Confidence = c
			ev.HasConfidence = true
		}
	}
	if raw := r.PostFormValue("CallDuration"); raw != "" {
		if d, err := strconv.Atoi(raw); err == nil {
			ev.Duration = d
		}
	}
	return ev
}
