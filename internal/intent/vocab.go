package intent

// Keyword vocabularies for the classifier. Deliberately noisy: they carry the
// misspellings and truncations speech recognition actually produces on a
// phone line.

var goodbyeKeywords = []string{
	"bye", "bye bye", "bye-bye", "goodbye",
	"that's all", "thats all", "that is all",
	"that's it", "thats it", "that is it",
	"nothing else", "no more", "finish",
	"we're good", "were good",
	"no thanks", "no thank you",
}

var quoteKeywords = []string{
	"quote", "quotation", "estimate", "ballpark",
}

var bookingKeywords = []string{
	"book", "booking", "appointment", "apointment", "appoinment",
	"schedule", "reserve", "checkup", "check-up", "check up",
	"see the dentist", "visit", "come in",
	"buk", "buking", "buk appointment",
}

// bookingVerbs are the subset of booking keywords that state the action
// outright; they override an availability-flavoured phrasing like
// "book any time tomorrow".
var bookingVerbs = []string{
	"book", "booking", "reserve", "schedule", "buk", "buking",
}

var availabilityKeywords = []string{
	"availability", "available", "availabilty",
	"what do you have", "what have you got", "what times",
	"times are available", "free slots", "free time", "free appointment",
	"open slots", "any slots", "any availability",
	"what time u have", "what time you have",
	"any time", "anytime", "any time works", "anytime works",
	"today", "tomorrow",
	"monday", "tuesday", "wednesday", "wednsday",
	"thursday", "thur", "thurzday",
	"friday", "saturday", "saturdy", "sunday",
}

var addressKeywords = []string{
	"address", "addres", "where", "postcode", "post code",
	"located", "location", "directions", "direcsion", "find",
}

var hoursKeywords = []string{
	"hour", "hours", "opening", "opening hours", "opening time",
	"open hours", "open", "openin",
	"closing", "closing time", "closing hours", "clozing",
}

var priceKeywords = []string{
	"price", "prices", "prize", "prise", "cost", "how much",
	"fee", "fees", "charges", "pricing",
}

// infoKeywords mark a question about a treatment rather than a wish to book
// it: "tell me about whitening" versus just "whitening".
var infoKeywords = []string{
	"what is", "what's", "whats", "tell me about", "about",
	"how long", "what does", "involve", "information", "info",
	"do you do", "do you offer",
}

var affirmKeywords = []string{
	"yes", "yeah", "yep", "sure", "please", "ok", "okay",
	"alright", "sounds good",
}

// serviceSynonym pairs a spoken treatment reference (already normalized)
// with its canonical appointment-type name.
type serviceSynonym struct {
	phrase    string
	canonical string
}

// serviceSynonyms is matched in order, so the more specific phrases sit
// before the loose single-word ones. Used both for the sticky service slot
// and for inline appointment-type capture.
var serviceSynonyms = []serviceSynonym{
	{"check up", "Check-up"},
	{"checkup", "Check-up"},
	{"chekup", "Check-up"},
	{"regular check", "Check-up"},
	{"teeth clean", "Hygiene"},
	{"hygiene", "Hygiene"},
	{"hygeine", "Hygiene"},
	{"cleaning", "Hygiene"},
	{"clean", "Hygiene"},
	{"scale", "Hygiene"},
	{"white ning", "Whitening"},
	{"whitening", "Whitening"},
	{"white", "Whitening"},
	{"tooth fill", "Filling"},
	{"filling", "Filling"},
	{"fillin", "Filling"},
	{"tooth out", "Extraction"},
	{"extraction", "Extraction"},
	{"pull", "Extraction"},
	{"emergency", "Emergency"},
	{"urgent", "Emergency"},
}
