// Package dialogue drives the conversation: it turns one caller utterance
// (or a silence signal) plus the call's current state into the next spoken
// directive, advancing the booking state machine along the way.
package dialogue

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/haasonsaas/frontdesk/internal/calls"
	"github.com/haasonsaas/frontdesk/internal/config"
	"github.com/haasonsaas/frontdesk/internal/datetime"
	"github.com/haasonsaas/frontdesk/internal/intent"
	"github.com/haasonsaas/frontdesk/internal/schedule"
)

const (
	continuationMenu = "What else can I help with? You can ask about our opening hours, our address, our prices, or let me know if you'd like to book an appointment."
	menuHint         = "You can ask about our opening hours, our address, our prices, or say you'd like to book an appointment."
)

// Input is one turn's worth of recognition output from the gateway. Empty
// Text signals silence. Confidence is only meaningful when HasConfidence is
// set; some gateways omit it.
type Input struct {
	Text          string
	Confidence    float64
	HasConfidence bool
}

// Engine decides what the receptionist says next. One Engine serves every
// call; all per-call data lives in the borrowed calls.State.
type Engine struct {
	schedule *schedule.Store
	practice *config.PracticeSource
	phrases  Selector
	cfg      config.DialogueConfig
	logger   *slog.Logger

	// now is swapped in tests so weekday phrases resolve predictably.
	now func() time.Time
}

// NewEngine wires the dialogue engine over the schedule store and practice
// profile.
func NewEngine(store *schedule.Store, practice *config.PracticeSource, phrases Selector, cfg config.DialogueConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if phrases == nil {
		phrases = NewRandomSelector()
	}
	return &Engine{
		schedule: store,
		practice: practice,
		phrases:  phrases,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Greet opens the call with a greeting from the practice profile.
func (e *Engine) Greet(st *calls.State) Directive {
	st.Greeted = true
	bank := e.practice.Current().Greetings
	if len(bank) == 0 {
		bank = greetings
	}
	return e.say(st, ExpectIntent, e.pick(bank))
}

// Goodbye ends the call politely and marks it completed.
func (e *Engine) Goodbye(st *calls.State) Directive {
	return e.goodbye(st)
}

// Turn processes one caller utterance or silence and returns the next
// directive. A completed call only ever gets a bare hangup back.
func (e *Engine) Turn(st *calls.State, in Input) Directive {
	if st.Stage == calls.StageCompleted {
		return Directive{Hangup: true}
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return e.silence(st)
	}
	st.AddCallerLine(text)
	st.SilenceCount = 0

	res := intent.Classify(text)
	if res.Service != "" {
		st.LastService = res.Service
	}
	e.logger.Info("turn",
		"call_sid", st.CallSID, "stage", st.Stage, "intent", res.Intent, "service", res.Service)

	if res.Intent == intent.Goodbye {
		return e.goodbye(st)
	}

	switch st.Stage {
	case calls.StageBookingType:
		return e.bookingType(st, res, text)
	case calls.StageBookingDate:
		return e.bookingDate(st, res, text)
	case calls.StageBookingTime:
		return e.bookingTime(st, res, text)
	case calls.StageBookingName:
		return e.bookingName(st, res, text)
	case calls.StageBookingConfirm:
		return e.bookingConfirm(st, res, text)
	default:
		return e.menu(st, res, text, in)
	}
}

// menu handles the top-level intent and follow_up stages.
func (e *Engine) menu(st *calls.State, res intent.Result, text string, in Input) Directive {
	if st.Stage == calls.StageFollowUp {
		if isNegative(text) {
			return e.goodbye(st)
		}
		if res.Intent == intent.Affirm {
			st.Stage = calls.StageIntent
			st.NoteProgress()
			return e.say(st, ExpectIntent, e.pick(holders), continuationMenu)
		}
	}

	switch res.Intent {
	case intent.Hours, intent.Address, intent.Prices, intent.ServiceInfo:
		line, _ := e.infoLine(st, res)
		st.Intent = string(res.Intent)
		st.NoteProgress()
		st.Stage = calls.StageFollowUp
		return e.say(st, ExpectIntent, e.pick(holders), line, anythingElsePrompt)
	case intent.Booking:
		return e.startBooking(st, res)
	case intent.Availability:
		return e.startAvailability(st, res, text)
	case intent.Affirm:
		st.Stage = calls.StageIntent
		return e.say(st, ExpectIntent, e.pick(holders), continuationMenu)
	}

	st.Retries++
	st.Stage = calls.StageIntent
	if in.HasConfidence && in.Confidence < e.cfg.ConfidenceThreshold {
		return e.say(st, ExpectIntent, e.pick(clarifiers), menuHint)
	}
	return e.say(st, ExpectIntent, e.pick(repeats), menuHint)
}

// startBooking launches a fresh booking, clearing any earlier progress.
// A service named in the same breath (or earlier in the call) skips the
// type question.
func (e *Engine) startBooking(st *calls.State, res intent.Result) Directive {
	st.ResetBooking()
	st.Intent = "booking"
	st.NoteProgress()
	if t := apptTypeFor(res.Service, st.LastService); t != "" {
		st.Booking.ApptType = t
		st.Stage = calls.StageBookingDate
		return e.say(st, ExpectDate, fmt.Sprintf("Great, a %s. What day works best for you?", t))
	}
	st.Stage = calls.StageBookingType
	return e.say(st, ExpectIntent, "Sure.", e.typeQuestion())
}

// startAvailability treats "what do you have on Friday" as an implicit
// booking and jumps straight into the date/time sub-flow.
func (e *Engine) startAvailability(st *calls.State, res intent.Result, text string) Directive {
	st.Intent = "booking"
	st.NoteProgress()
	if st.Booking.ApptType == "" {
		if t := apptTypeFor(res.Service, st.LastService); t != "" {
			st.Booking.ApptType = t
		}
	}
	date, ok := datetime.ParseDayPhrase(text, e.now())
	if !ok {
		st.Stage = calls.StageBookingDate
		return e.say(st, ExpectDate, e.pick(dateClarifiers))
	}
	return e.offerTimes(st, date)
}

// offerTimes queries availability for date and either presents the times,
// offers the single next free slot practice-wide, or apologises.
func (e *Engine) offerTimes(st *calls.State, date string) Directive {
	avail, err := e.schedule.ListAvailable(date, 6)
	if err != nil {
		return e.storageTrouble(st, err)
	}
	if len(avail) == 0 {
		next, ok, err := e.schedule.FindNextAvailable()
		if err != nil {
			return e.storageTrouble(st, err)
		}
		if !ok {
			st.Stage = calls.StageFollowUp
			return e.say(st, ExpectIntent,
				"Sorry, I can't see any available times in the diary right now.", anythingElsePrompt)
		}
		st.Booking.Date = date
		st.Booking.AvailableTimes = nil
		st.Booking.SuggestedDate = next.Date
		st.Booking.SuggestedTime = next.StartTime
		st.Stage = calls.StageBookingDate
		return e.say(st, ExpectConfirm, fmt.Sprintf(
			"Sorry, no free times that day. The next available is %s at %s. Would you like that?",
			datetime.HumanDayPhrase(next.Date, e.now()), datetime.Spoken12Hour(next.StartTime)))
	}
	st.Booking.Date = date
	st.Booking.AvailableTimes = startTimes(avail)
	st.Stage = calls.StageBookingTime
	return e.say(st, ExpectTime, fmt.Sprintf("On %s, we have %s. Which time works for you?",
		datetime.HumanDayPhrase(date, e.now()), spokenList(st.Booking.AvailableTimes)))
}

func (e *Engine) bookingType(st *calls.State, res intent.Result, text string) Directive {
	// "what is whitening" mid-booking is a question, not a type choice
	if res.Intent == intent.ServiceInfo || res.Intent == intent.Hours ||
		res.Intent == intent.Address || res.Intent == intent.Prices {
		line, _ := e.infoLine(st, res)
		return e.say(st, ExpectIntent, e.pick(holders), line, e.typeQuestion())
	}
	if t := matchApptType(text); t != "" {
		st.Booking.ApptType = t
		st.NoteProgress()
		if st.Booking.Date != "" && st.Booking.Time != "" {
			st.Stage = calls.StageBookingName
			return e.say(st, ExpectName, fmt.Sprintf("Great, a %s.", t), "And your name please?")
		}
		st.Stage = calls.StageBookingDate
		return e.say(st, ExpectDate, fmt.Sprintf("Great, a %s. What day works best for you?", t))
	}
	st.Retries++
	return e.say(st, ExpectIntent, "Sorry, I didn't catch that type.", e.typeQuestion())
}

func (e *Engine) bookingDate(st *calls.State, res intent.Result, text string) Directive {
	b := &st.Booking
	if b.SuggestedDate != "" {
		if res.Intent == intent.Affirm {
			b.Date, b.Time = b.SuggestedDate, b.SuggestedTime
			b.SuggestedDate, b.SuggestedTime = "", ""
			st.NoteProgress()
			return e.afterTimeChosen(st)
		}
		if isNegative(text) {
			b.SuggestedDate, b.SuggestedTime = "", ""
			return e.say(st, ExpectDate, e.pick(holders), e.pick(dateClarifiers))
		}
	}
	if date, ok := datetime.ParseDayPhrase(text, e.now()); ok {
		st.NoteProgress()
		return e.offerTimes(st, date)
	}
	// after a reservation conflict the caller answers with a bare time
	if b.Date != "" && len(b.AvailableTimes) > 0 {
		if hhmm, ok := datetime.PickTime(text, b.AvailableTimes); ok {
			b.Time = hhmm
			st.NoteProgress()
			return e.afterTimeChosen(st)
		}
	}
	if line, ok := e.infoLine(st, res); ok {
		return e.say(st, ExpectDate, e.pick(holders), line, e.pick(dateClarifiers))
	}
	st.Retries++
	return e.say(st, ExpectDate, e.pick(dateClarifiers))
}

func (e *Engine) bookingTime(st *calls.State, res intent.Result, text string) Directive {
	b := &st.Booking
	if date, ok := datetime.ParseDayPhrase(text, e.now()); ok && date != b.Date {
		st.NoteProgress()
		return e.offerTimes(st, date)
	}
	if anytimePhrases[plain(text)] && len(b.AvailableTimes) > 0 {
		b.Time = b.AvailableTimes[0]
		st.NoteProgress()
		return e.afterTimeChosen(st)
	}
	if hhmm, ok := datetime.PickTime(text, b.AvailableTimes); ok {
		b.Time = hhmm
		st.NoteProgress()
		return e.afterTimeChosen(st)
	}
	if res.Intent == intent.Affirm {
		return e.say(st, ExpectTime, e.pick(timeClarifiers))
	}
	if line, ok := e.infoLine(st, res); ok {
		return e.say(st, ExpectTime, e.pick(holders), line, e.pick(timeClarifiers))
	}
	st.Retries++
	return e.say(st, ExpectTime, fmt.Sprintf("What time suits you? For example %s.",
		spokenList(firstN(b.AvailableTimes, 4))))
}

func (e *Engine) bookingName(st *calls.State, res intent.Result, text string) Directive {
	if line, ok := e.infoLine(st, res); ok {
		return e.say(st, ExpectName, e.pick(holders), line, e.pick(nameClarifiers))
	}
	// caller changed their mind mid-flow, restart the booking
	if res.Intent == intent.Booking && len(strings.Fields(text)) > 2 {
		return e.startBooking(st, res)
	}
	if res.Intent == intent.Affirm {
		return e.say(st, ExpectName, e.pick(nameClarifiers))
	}
	name, ok := intent.ExtractFirstName(text)
	if !ok {
		st.Retries++
		if st.Retries >= e.cfg.MaxNameAttempts {
			e.logger.Info("name attempts exhausted", "call_sid", st.CallSID)
			return e.goodbye(st)
		}
		return e.say(st, ExpectName, e.pick(nameClarifiers))
	}
	st.CallerName = name
	st.NoteProgress()
	st.Stage = calls.StageBookingConfirm
	return e.say(st, ExpectConfirm, fmt.Sprintf("Great, %s.", name), e.confirmQuestion(st))
}

func (e *Engine) bookingConfirm(st *calls.State, res intent.Result, text string) Directive {
	b := &st.Booking
	if res.Intent == intent.Affirm {
		ok, err := e.schedule.Reserve(b.Date, b.Time, st.CallerName, b.ApptType)
		if err != nil {
			return e.storageTrouble(st, err)
		}
		if !ok {
			e.logger.Warn("reservation conflict",
				"call_sid", st.CallSID, "date", b.Date, "start_time", b.Time)
			b.Time = ""
			return e.reofferAfterConflict(st)
		}
		st.BookingLogged = true
		st.Intent = "booking"
		st.NoteProgress()
		st.Stage = calls.StageFollowUp
		msg := fmt.Sprintf(e.pick(confirmTemplates),
			datetime.DescribeDay(b.Date), datetime.Spoken12Hour(b.Time),
			b.ApptType, st.CallerName)
		say := []string{msg}
		if !st.ConsentPlayed {
			if consent := strings.TrimSpace(e.practice.Current().Consent); consent != "" {
				say = append(say, consent)
				st.ConsentPlayed = true
			}
		}
		say = append(say, anythingElsePrompt)
		return e.say(st, ExpectIntent, say...)
	}
	if isNegative(text) {
		st.ResetBooking()
		st.NoteProgress()
		st.Stage = calls.StageFollowUp
		return e.say(st, ExpectIntent, "No problem, I won't reserve it.", anythingElsePrompt)
	}
	if line, ok := e.infoLine(st, res); ok {
		return e.say(st, ExpectConfirm, e.pick(holders), line, e.confirmQuestion(st))
	}
	st.Retries++
	return e.say(st, ExpectConfirm, e.confirmQuestion(st))
}

// reofferAfterConflict re-queries the chosen date after a lost reservation
// race and puts the caller back into slot selection.
func (e *Engine) reofferAfterConflict(st *calls.State) Directive {
	b := &st.Booking
	avail, err := e.schedule.ListAvailable(b.Date, 6)
	if err != nil {
		return e.storageTrouble(st, err)
	}
	st.Stage = calls.StageBookingDate
	if len(avail) == 0 {
		b.AvailableTimes = nil
		next, ok, err := e.schedule.FindNextAvailable()
		if err != nil {
			return e.storageTrouble(st, err)
		}
		if !ok {
			st.Stage = calls.StageFollowUp
			return e.say(st, ExpectIntent,
				"Sorry, that slot was just taken and I can't see any other free times right now.",
				anythingElsePrompt)
		}
		b.SuggestedDate, b.SuggestedTime = next.Date, next.StartTime
		return e.say(st, ExpectConfirm, fmt.Sprintf(
			"Sorry, that slot was just taken. The next available is %s at %s. Would you like that?",
			datetime.HumanDayPhrase(next.Date, e.now()), datetime.Spoken12Hour(next.StartTime)))
	}
	b.AvailableTimes = startTimes(avail)
	return e.say(st, ExpectTime, fmt.Sprintf(
		"Sorry, that slot was just taken. On %s we still have %s. Which works for you?",
		datetime.HumanDayPhrase(b.Date, e.now()), spokenList(b.AvailableTimes)))
}

// silence handles a turn with no recognized speech. A silent turn in
// follow_up ends the call at once; elsewhere the caller gets reprompted
// until the silence budget runs out.
func (e *Engine) silence(st *calls.State) Directive {
	if st.Stage == calls.StageFollowUp {
		return e.goodbye(st)
	}
	if st.Stage == calls.StageIntent && !st.Reprompted {
		st.Reprompted = true
		return e.say(st, ExpectIntent, silenceReprompt)
	}
	st.SilenceCount++
	e.logger.Info("silence", "call_sid", st.CallSID, "stage", st.Stage, "count", st.SilenceCount)
	if st.SilenceCount >= e.cfg.MaxSilences {
		return e.goodbye(st)
	}
	switch st.Stage {
	case calls.StageBookingName:
		return e.say(st, ExpectName, e.pick(nameClarifiers))
	case calls.StageBookingTime:
		return e.say(st, ExpectTime, e.pick(timeClarifiers))
	case calls.StageBookingDate:
		return e.say(st, ExpectDate, e.pick(dateClarifiers))
	case calls.StageBookingType:
		return e.say(st, ExpectIntent, e.typeQuestion())
	case calls.StageBookingConfirm:
		return e.say(st, ExpectConfirm, e.confirmQuestion(st))
	default:
		return e.say(st, ExpectIntent, e.pick(clarifiers), menuHint)
	}
}

// afterTimeChosen routes to the name question, or back to the type question
// when the type was never captured.
func (e *Engine) afterTimeChosen(st *calls.State) Directive {
	spoken := datetime.Spoken12Hour(st.Booking.Time)
	if st.Booking.ApptType == "" {
		st.Stage = calls.StageBookingType
		return e.say(st, ExpectIntent, fmt.Sprintf("Okay, %s noted.", spoken), e.typeQuestion())
	}
	st.Stage = calls.StageBookingName
	return e.say(st, ExpectName, fmt.Sprintf("Okay, %s noted.", spoken), "And your name please?")
}

// infoLine resolves an informational intent to its spoken answer from the
// current practice profile.
func (e *Engine) infoLine(st *calls.State, res intent.Result) (string, bool) {
	p := e.practice.Current()
	switch res.Intent {
	case intent.Hours:
		return p.Hours, true
	case intent.Address:
		return p.Address, true
	case intent.Prices:
		return p.Prices, true
	case intent.ServiceInfo:
		svc := res.Service
		if svc == "" {
			svc = st.LastService
		}
		if line, ok := p.Services[svc]; ok && line != "" {
			return line, true
		}
		return p.Prices, true
	}
	return "", false
}

func (e *Engine) confirmQuestion(st *calls.State) string {
	b := st.Booking
	slot := fmt.Sprintf("a %s on %s at %s",
		b.ApptType, datetime.HumanDayPhrase(b.Date, e.now()), datetime.Spoken12Hour(b.Time))
	return fmt.Sprintf(e.pick(confirmQuestions), slot)
}

func (e *Engine) typeQuestion() string {
	return fmt.Sprintf("What type of appointment would you like? We do %s.",
		strings.Join(schedule.Types, ", "))
}

func (e *Engine) goodbye(st *calls.State) Directive {
	msg := e.pick(goodbyes)
	st.Stage = calls.StageCompleted
	st.AddAgentLine(msg)
	e.logger.Info("ending call", "call_sid", st.CallSID)
	return Directive{Say: []string{msg}, Hangup: true}
}

// storageTrouble ends the turn with a safe apology when the schedule store
// fails; the caller never hears a raw error.
func (e *Engine) storageTrouble(st *calls.State, err error) Directive {
	e.logger.Error("schedule storage failure", "call_sid", st.CallSID, "error", err)
	msg := "Sorry, I'm having trouble with the diary just now. Please call back shortly."
	st.Stage = calls.StageCompleted
	st.AddAgentLine(msg)
	return Directive{Say: []string{msg}, Hangup: true}
}

// say records each non-empty line on the transcript and bundles them into a
// listening directive.
func (e *Engine) say(st *calls.State, expect Expect, lines ...string) Directive {
	var say []string
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		st.AddAgentLine(l)
		say = append(say, l)
	}
	return Directive{Say: say, Expect: expect}
}

func (e *Engine) pick(bank []string) string { return e.phrases.Pick(bank) }

// plain lowercases and strips punctuation so phrase-set lookups tolerate
// transcription quirks.
func plain(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isNegative(text string) bool { return negativeResponses[plain(text)] }

// apptTypeFor returns the first candidate that names a known appointment
// type.
func apptTypeFor(candidates ...string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		for _, t := range schedule.Types {
			if c == t {
				return t
			}
		}
	}
	return ""
}

// matchApptType resolves an utterance to an appointment type, exact synonym
// capture first, then loose substring against the type names.
func matchApptType(text string) string {
	if svc, ok := intent.ExtractService(text); ok {
		return svc
	}
	norm := plain(text)
	if norm == "" {
		return ""
	}
	for _, t := range schedule.Types {
		tn := plain(t)
		if norm == tn || strings.Contains(norm, tn) {
			return t
		}
		if len(norm) >= 4 && strings.Contains(tn, norm) {
			return t
		}
	}
	return ""
}

func startTimes(slots []schedule.Slot) []string {
	times := make([]string, 0, len(slots))
	for _, s := range slots {
		times = append(times, s.StartTime)
	}
	return times
}

func spokenList(times []string) string {
	spoken := make([]string, 0, len(times))
	for _, t := range times {
		spoken = append(spoken, datetime.Spoken12Hour(t))
	}
	return strings.Join(spoken, ", ")
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
