// Package intent maps noisy caller utterances to discrete intents and slots.
//
// Classification is deliberately rule-based: substring matches for phrases,
// token matches for single words, and a bounded edit distance to absorb
// transcription noise ("buk" for "book", "thurzday" for "thursday"). The
// priority order in Classify is load-bearing — an utterance often brushes
// several vocabularies and the first match wins.
package intent

import "strings"

// Intent is a discrete top-level reading of one caller utterance.
type Intent string

const (
	None         Intent = ""
	Goodbye      Intent = "goodbye"
	Booking      Intent = "booking"
	Availability Intent = "availability"
	Hours        Intent = "hours"
	Address      Intent = "address"
	Prices       Intent = "prices"
	ServiceInfo  Intent = "service_info"
	Affirm       Intent = "affirm"
)

// Result carries the classified intent plus the independently extracted
// service slot. Service may be set even when Intent is None; the dialogue
// engine remembers it across turns.
type Result struct {
	Intent  Intent
	Service string
}

// Classify resolves an utterance to an intent and service slot. Empty or
// unmatchable input yields Intent None.
func Classify(speech string) Result {
	text := normalize(speech)
	if text == "" {
		return Result{}
	}

	service := extractServiceNormalized(text)
	res := Result{Service: service}

	if anyFuzzy(text, goodbyeKeywords, 2) {
		res.Intent = Goodbye
		return res
	}

	quote := anyFuzzy(text, quoteKeywords, 2)
	booking := anyFuzzy(text, bookingKeywords, 2)

	// "Can I get a quote" is a price question unless the caller also names
	// a treatment or asks to book.
	if quote && !booking && service == "" {
		res.Intent = Prices
		return res
	}

	if booking {
		availOnly := anyFuzzy(text, availabilityKeywords, 2)
		if !availOnly || service != "" || anyFuzzy(text, bookingVerbs, 1) {
			res.Intent = Booking
			return res
		}
	}

	switch {
	case anyFuzzy(text, addressKeywords, 2):
		res.Intent = Address
	case anyFuzzy(text, availabilityKeywords, 2):
		res.Intent = Availability
	case anyFuzzy(text, hoursKeywords, 1):
		res.Intent = Hours
	case service != "" && (anyFuzzy(text, infoKeywords, 1) || anyFuzzy(text, priceKeywords, 2) || quote):
		res.Intent = ServiceInfo
	case anyFuzzy(text, priceKeywords, 2):
		res.Intent = Prices
	case anyFuzzy(text, affirmKeywords, 1):
		res.Intent = Affirm
	case service != "":
		// A bare treatment name ("whitening please") reads as a wish to
		// book it.
		res.Intent = Booking
	}
	return res
}

// ExtractService returns the canonical appointment type named in the text,
// if any. It tolerates one edit of noise on single-word synonyms.
func ExtractService(speech string) (string, bool) {
	canonical := extractServiceNormalized(normalize(speech))
	return canonical, canonical != ""
}

func extractServiceNormalized(text string) string {
	if text == "" {
		return ""
	}
	tokens := strings.Fields(text)
	for _, syn := range serviceSynonyms {
		if strings.Contains(syn.phrase, " ") {
			if strings.Contains(text, syn.phrase) {
				return syn.canonical
			}
			continue
		}
		for _, token := range tokens {
			if token == syn.phrase {
				return syn.canonical
			}
			if len(token) > 3 && len(syn.phrase) > 3 && editDistance(token, syn.phrase, 1) <= 1 {
				return syn.canonical
			}
		}
	}
	return ""
}
