// Package voice speaks Twilio: it renders dialogue directives as TwiML and
// parses inbound webhook form posts, including signature verification.
package voice

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/frontdesk/internal/dialogue"
)

// Render turns a dialogue directive into a TwiML document. Listening
// directives gather speech and redirect to silenceAction when the caller
// says nothing; terminal directives speak their lines and hang up.
func Render(d dialogue.Directive, voiceName, language, gatherAction, silenceAction string) string {
	if d.Terminal() {
		return renderHangup(d, voiceName, language)
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<Response>\n")
	writeSays(&b, d.Say, voiceName, language)
	hints := hintsFor(d.Expect)
	b.WriteString(fmt.Sprintf(
		"  <Gather input=\"speech\" speechTimeout=\"auto\" language=%q hints=%q action=%q method=\"POST\"/>\n",
		escapeXML(language), escapeXML(hints), escapeXML(gatherAction)))
	// Twilio falls through here when the gather times out with no speech.
	b.WriteString(fmt.Sprintf("  <Redirect method=\"POST\">%s</Redirect>\n", escapeXML(silenceAction)))
	b.WriteString("</Response>")
	return b.String()
}

func renderHangup(d dialogue.Directive, voiceName, language string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<Response>\n")
	writeSays(&b, d.Say, voiceName, language)
	b.WriteString("  <Hangup/>\n</Response>")
	return b.String()
}

func writeSays(b *strings.Builder, lines []string, voiceName, language string) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("  <Say voice=%q language=%q>%s</Say>\n",
			escapeXML(voiceName), escapeXML(language), escapeXML(line)))
	}
}

// hintsFor biases Twilio's recognizer toward the vocabulary the next stage
// expects.
func hintsFor(expect dialogue.Expect) string {
	switch expect {
	case dialogue.ExpectDate:
		return "today, tomorrow, monday, tuesday, wednesday, thursday, friday, saturday"
	case dialogue.ExpectTime:
		return "nine thirty, ten o'clock, half past four, anytime, morning, afternoon"
	case dialogue.ExpectConfirm:
		return "yes, no, yes please, no thanks"
	case dialogue.ExpectName:
		return ""
	default:
		return "book an appointment, opening hours, address, prices, check-up, hygiene, whitening"
	}
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
