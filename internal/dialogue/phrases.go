package dialogue

import "math/rand/v2"

// Phrase banks. The receptionist rotates through these so repeat callers do
// not hear the same canned line every time. Selection goes through the
// Selector so tests can pin the choice.

var greetings = []string{
	"Hi, Oak Dental. How can I help today?",
	"Hello, Oak Dental speaking, how can I help?",
	"Hi there, Oak Dental. What do you need today?",
	"Oak Dental here. How can I help you?",
	"Thanks for calling Oak Dental. What can I do for you?",
	"Hiya, you've reached Oak Dental. How can I help?",
	"Good afternoon, Oak Dental speaking. What can I do for you today?",
	"Hello there, Oak Dental. Are you calling to book, or for info?",
}

const silenceReprompt = "Hello, I'm still on the line. Let me know if you'd like our opening hours, our address, our prices, or to book an appointment."

// holders are short acknowledgements spoken before an answer so the caller
// knows they were heard.
var holders = []string{
	"Okay, that's fine.",
	"Yeah, sure.",
	"Right, I understand.",
	"No problem.",
	"Alright.",
	"Got it.",
	"Absolutely.",
	"Sure thing.",
	"Okay, noted.",
	"Sounds good.",
	"Okay, let me check.",
	"One moment.",
	"Great, thanks.",
	"No worries.",
	"Let me check that.",
	"Bear with me.",
}

// clarifiers steer a lost caller back to the menu.
var clarifiers = []string{
	"I didn't quite catch that. Was that a booking, our hours, or prices?",
	"I want to be sure I heard you right, was it about hours, address, prices, or booking?",
	"Apologies, the line dipped for a second. What do you need today?",
	"Sorry, could you repeat that in a few words?",
}

// repeats are the plain say-that-again lines used when the recognition was
// confident but the words matched nothing.
var repeats = []string{
	"Sorry, could you say that again?",
	"Mind repeating that for me?",
	"Could you say that slowly for me?",
	"One more time please?",
}

var nameClarifiers = []string{
	"Sorry, who should I pop the booking under?",
	"I missed the name there, could you share it again?",
	"Just the name for the appointment, please?",
	"Could you tell me who the visit is for?",
	"Whose name should I note down for the booking?",
}

var timeClarifiers = []string{
	"What day and time works best for you?",
	"When would you like to come in?",
	"Could you tell me the day and time you prefer?",
	"When suits you for the appointment?",
}

var dateClarifiers = []string{
	"Which day works best for you? You can say tomorrow or a weekday like Wednesday.",
	"Sure, which day are you thinking of? You can say tomorrow or a weekday like Wednesday.",
}

var goodbyes = []string{
	"Alright, take care and have a lovely day.",
	"Thanks for calling, bye for now.",
	"Speak soon, bye-bye.",
	"Take care, we'll chat soon.",
	"Thanks, we'll be in touch, bye now.",
	"Cheers, bye.",
	"All the best, goodbye.",
	"Thanks again, bye bye.",
	"Pleasure speaking, take care.",
	"Lovely, talk soon, bye.",
}

// confirmQuestions ask permission before reserving; %s is the slot phrase,
// for example "Check-up on tomorrow at 4:30pm".
var confirmQuestions = []string{
	"Shall I book you for %s?",
	"Okay, booking for %s. Does that sound good?",
	"Got it, %s. Want me to lock that in?",
}

// confirmTemplates announce a completed reservation. Arguments: full date
// ("Tuesday, September 23rd"), spoken time, appointment type, caller name.
// The final read-back uses the unambiguous date form, not "tomorrow".
var confirmTemplates = []string{
	"Perfect, I'll book you for %[1]s at %[2]s for a %[3]s, under %[4]s.",
	"Alright, %[4]s, you're set for %[3]s on %[1]s at %[2]s.",
	"Got it. %[3]s appointment for %[4]s, %[1]s %[2]s.",
}

const anythingElsePrompt = "Is there anything else I can help you with?"

// anytimePhrases mean the caller will take whichever slot comes first.
var anytimePhrases = map[string]bool{
	"anytime":                 true,
	"any time":                true,
	"whenever":                true,
	"whenever is fine":        true,
	"any time is fine":        true,
	"any is fine":             true,
	"any time works":          true,
	"anytime works":           true,
	"any time works for me":   true,
	"anytime works for me":    true,
	"whenever works":          true,
	"whenever works for me":   true,
	"whatever time works":     true,
	"whatever time you have":  true,
	"earliest you have":       true,
	"the earliest":            true,
	"first available":         true,
	"soonest":                 true,
}

// negativeResponses are the bare refusals that read as "no" to the current
// question rather than as a goodbye.
var negativeResponses = map[string]bool{
	"no":          true,
	"nah":         true,
	"nope":        true,
	"not really":  true,
	"nothing":     true,
	"no not now":  true,
	"not today":   true,
}

// Selector picks one phrase from a bank. Production uses NewRandomSelector;
// tests inject FirstSelector so prompts are predictable.
type Selector interface {
	Pick(bank []string) string
}

// RandomSelector picks uniformly at random.
type RandomSelector struct{}

// NewRandomSelector returns the default phrase selector.
func NewRandomSelector() RandomSelector { return RandomSelector{} }

// Pick implements Selector.
func (RandomSelector) Pick(bank []string) string {
	if len(bank) == 0 {
		return ""
	}
	return bank[rand.IntN(len(bank))]
}

// FirstSelector always returns the first phrase of a bank.
type FirstSelector struct{}

// Pick implements Selector.
func (FirstSelector) Pick(bank []string) string {
	if len(bank) == 0 {
		return ""
	}
	return bank[0]
}
