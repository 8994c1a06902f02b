package dialogue

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/frontdesk/internal/calls"
	"github.com/haasonsaas/frontdesk/internal/config"
	"github.com/haasonsaas/frontdesk/internal/schedule"
)

// refMonday pins "today" to Monday 2025-09-22 so tomorrow is always the
// Tuesday the fixtures use.
var refMonday = time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, rows string) (*Engine, *schedule.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.csv")
	header := "date,weekday,start_time,end_time,status,patient_name,appointment_type,notes\n"
	if err := os.WriteFile(path, []byte(header+rows), 0o644); err != nil {
		t.Fatal(err)
	}
	store := schedule.NewStore(path, nil)
	cfg := config.Default()
	eng := NewEngine(store, config.NewPracticeSource(cfg.Practice), FirstSelector{},
		cfg.Dialogue, slog.New(slog.NewTextHandler(io.Discard, nil)))
	eng.now = func() time.Time { return refMonday }
	return eng, store
}

func newCall() *calls.State {
	return &calls.State{CallSID: "CA123", Stage: calls.StageIntent}
}

func speak(e *Engine, st *calls.State, text string) Directive {
	return e.Turn(st, Input{Text: text})
}

func saidContains(t *testing.T, d Directive, want string) {
	t.Helper()
	joined := strings.Join(d.Say, " ")
	if !strings.Contains(joined, want) {
		t.Fatalf("directive %q does not mention %q", joined, want)
	}
}

const tuesdaySlots = `2025-09-23,Tuesday,16:30,17:00,Available,,,
2025-09-23,Tuesday,09:30,10:00,Available,,,
`

func TestBookingHappyPath(t *testing.T) {
	e, store := newTestEngine(t, tuesdaySlots)
	st := newCall()

	d := speak(e, st, "I'd like to book an appointment")
	if st.Stage != calls.StageBookingType {
		t.Fatalf("stage = %s, want booking_type", st.Stage)
	}
	saidContains(t, d, "Check-up, Hygiene, Whitening")

	d = speak(e, st, "a check-up please")
	if st.Stage != calls.StageBookingDate {
		t.Fatalf("stage = %s, want booking_date", st.Stage)
	}
	if st.Booking.ApptType != "Check-up" {
		t.Fatalf("appt type = %q", st.Booking.ApptType)
	}

	d = speak(e, st, "tomorrow")
	if st.Stage != calls.StageBookingTime {
		t.Fatalf("stage = %s, want booking_time", st.Stage)
	}
	if st.Booking.Date != "2025-09-23" {
		t.Fatalf("date = %q, want 2025-09-23", st.Booking.Date)
	}
	// Offered ascending.
	saidContains(t, d, "9:30am, 4:30pm")

	d = speak(e, st, "430")
	if st.Stage != calls.StageBookingName {
		t.Fatalf("stage = %s, want booking_name", st.Stage)
	}
	if st.Booking.Time != "16:30" {
		t.Fatalf("time = %q, want 16:30", st.Booking.Time)
	}

	d = speak(e, st, "my name is sarah")
	if st.Stage != calls.StageBookingConfirm {
		t.Fatalf("stage = %s, want booking_confirm", st.Stage)
	}
	if st.CallerName != "Sarah" {
		t.Fatalf("caller name = %q", st.CallerName)
	}
	saidContains(t, d, "Check-up")

	d = speak(e, st, "yes please")
	if st.Stage != calls.StageFollowUp {
		t.Fatalf("stage = %s, want follow_up", st.Stage)
	}
	if !st.BookingLogged {
		t.Fatal("booking not logged")
	}
	if !st.ConsentPlayed {
		t.Fatal("consent line not played")
	}
	saidContains(t, d, "Sarah")
	// The read-back names the date in full rather than "tomorrow".
	saidContains(t, d, "Tuesday, September 23rd")

	avail, err := store.ListAvailable("2025-09-23", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(avail) != 1 || avail[0].StartTime != "09:30" {
		t.Fatalf("schedule after booking: %+v", avail)
	}
}

func TestInlineServiceSkipsTypeStage(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)
	st := newCall()

	speak(e, st, "I'd like to book a hygiene appointment")
	if st.Stage != calls.StageBookingDate {
		t.Fatalf("stage = %s, want booking_date", st.Stage)
	}
	if st.Booking.ApptType != "Hygiene" {
		t.Fatalf("appt type = %q, want Hygiene", st.Booking.ApptType)
	}
}

func TestCompletedCallOnlyHangsUp(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)
	st := newCall()

	d := speak(e, st, "goodbye")
	if !d.Hangup {
		t.Fatal("goodbye did not hang up")
	}
	if st.Stage != calls.StageCompleted {
		t.Fatalf("stage = %s, want completed", st.Stage)
	}

	for _, text := range []string{"hello", "book me in", ""} {
		d = speak(e, st, text)
		if !d.Hangup || len(d.Say) != 0 || d.Expect != ExpectNone {
			t.Fatalf("completed call produced %+v for %q", d, text)
		}
	}
}

func TestSilenceInBookingNameEndsAfterMax(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)
	st := newCall()
	st.Stage = calls.StageBookingName

	d := speak(e, st, "")
	if d.Hangup {
		t.Fatal("first silence should reprompt, not hang up")
	}
	if d.Expect != ExpectName {
		t.Fatalf("expect = %q, want name", d.Expect)
	}

	d = speak(e, st, "")
	if !d.Hangup {
		t.Fatal("second silence should end the call")
	}
	if len(d.Say) == 0 {
		t.Fatal("goodbye should be spoken, not a bare disconnect")
	}
}

func TestSilenceInFollowUpEndsImmediately(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)
	st := newCall()
	st.Stage = calls.StageFollowUp

	if d := speak(e, st, ""); !d.Hangup {
		t.Fatal("silence in follow_up should end the call at once")
	}
}

func TestInitialSilenceGetsOneFreeReprompt(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)
	st := newCall()
	st.Greeted = true

	d := speak(e, st, "")
	saidContains(t, d, "still on the line")
	if st.SilenceCount != 0 {
		t.Fatalf("silence count = %d after free reprompt", st.SilenceCount)
	}

	if d = speak(e, st, ""); d.Hangup {
		t.Fatal("second silence should still reprompt")
	}
	if d = speak(e, st, ""); !d.Hangup {
		t.Fatal("third silence should end the call")
	}
}

func TestHoursThenNoThanksEndsCall(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)
	st := newCall()

	d := speak(e, st, "what are your opening hours")
	if st.Stage != calls.StageFollowUp {
		t.Fatalf("stage = %s, want follow_up", st.Stage)
	}
	saidContains(t, d, "Monday to Friday")
	saidContains(t, d, anythingElsePrompt)

	if d = speak(e, st, "no thanks"); !d.Hangup {
		t.Fatal("no thanks in follow_up should end the call")
	}
}

func TestInfoDetourKeepsBookingProgress(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)
	st := newCall()

	speak(e, st, "book a check-up")
	if st.Stage != calls.StageBookingDate {
		t.Fatalf("stage = %s, want booking_date", st.Stage)
	}

	d := speak(e, st, "how much is whitening")
	if st.Stage != calls.StageBookingDate {
		t.Fatalf("detour moved stage to %s", st.Stage)
	}
	if st.Booking.ApptType != "Check-up" {
		t.Fatalf("detour clobbered appt type: %q", st.Booking.ApptType)
	}
	saidContains(t, d, "Whitening starts")
	// And the stage question is re-asked.
	saidContains(t, d, "day")
}

func TestDayFullOffersNextAvailable(t *testing.T) {
	e, _ := newTestEngine(t, "2025-09-24,Wednesday,10:00,10:30,Available,,,\n")
	st := newCall()

	d := speak(e, st, "do you have anything tomorrow")
	if st.Stage != calls.StageBookingDate {
		t.Fatalf("stage = %s, want booking_date", st.Stage)
	}
	saidContains(t, d, "next available")
	saidContains(t, d, "Wednesday")
	if st.Booking.SuggestedDate != "2025-09-24" || st.Booking.SuggestedTime != "10:00" {
		t.Fatalf("suggestion = %q %q", st.Booking.SuggestedDate, st.Booking.SuggestedTime)
	}

	d = speak(e, st, "yes")
	if st.Booking.Date != "2025-09-24" || st.Booking.Time != "10:00" {
		t.Fatalf("accepted slot = %q %q", st.Booking.Date, st.Booking.Time)
	}
	if st.Stage != calls.StageBookingType {
		t.Fatalf("stage = %s, want booking_type (no type yet)", st.Stage)
	}

	speak(e, st, "checkup")
	if st.Stage != calls.StageBookingName {
		t.Fatalf("stage = %s, want booking_name (date and time known)", st.Stage)
	}
}

func TestSuggestedSlotRejected(t *testing.T) {
	e, _ := newTestEngine(t, "2025-09-24,Wednesday,10:00,10:30,Available,,,\n")
	st := newCall()

	speak(e, st, "anything tomorrow")
	d := speak(e, st, "no")
	if d.Hangup {
		t.Fatal("rejecting the suggestion should not end the call")
	}
	if st.Booking.SuggestedDate != "" {
		t.Fatal("suggestion not cleared")
	}
	if st.Stage != calls.StageBookingDate {
		t.Fatalf("stage = %s, want booking_date", st.Stage)
	}
}

func TestReservationConflictReoffers(t *testing.T) {
	e, store := newTestEngine(t, tuesdaySlots)
	st := newCall()

	speak(e, st, "book a check-up")
	speak(e, st, "tomorrow")
	speak(e, st, "4:30")
	speak(e, st, "sarah")
	if st.Stage != calls.StageBookingConfirm {
		t.Fatalf("stage = %s, want booking_confirm", st.Stage)
	}

	// Another caller grabs the slot between question and answer.
	ok, err := store.Reserve("2025-09-23", "16:30", "Bob", "Hygiene")
	if err != nil || !ok {
		t.Fatalf("rival reserve failed: ok=%v err=%v", ok, err)
	}

	d := speak(e, st, "yes")
	if d.Hangup {
		t.Fatal("conflict should not end the call")
	}
	saidContains(t, d, "just taken")
	saidContains(t, d, "9:30am")
	if st.Booking.Time != "" {
		t.Fatalf("conflicted time not cleared: %q", st.Booking.Time)
	}
	if st.Stage != calls.StageBookingDate {
		t.Fatalf("stage = %s, want booking_date", st.Stage)
	}

	// Picking one of the re-offered times continues the flow.
	speak(e, st, "9:30")
	if st.Booking.Time != "09:30" {
		t.Fatalf("re-picked time = %q", st.Booking.Time)
	}
	if st.Stage != calls.StageBookingName {
		t.Fatalf("stage = %s, want booking_name", st.Stage)
	}
}

func TestAnytimePicksEarliest(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)
	st := newCall()

	speak(e, st, "book a check-up")
	speak(e, st, "tomorrow")
	speak(e, st, "anytime works for me")
	if st.Booking.Time != "09:30" {
		t.Fatalf("time = %q, want earliest 09:30", st.Booking.Time)
	}
}

func TestConfirmDeclined(t *testing.T) {
	e, store := newTestEngine(t, tuesdaySlots)
	st := newCall()

	speak(e, st, "book a check-up")
	speak(e, st, "tomorrow")
	speak(e, st, "9:30")
	speak(e, st, "sarah")

	d := speak(e, st, "no")
	if d.Hangup {
		t.Fatal("declining should not end the call")
	}
	saidContains(t, d, "won't reserve")
	if st.Stage != calls.StageFollowUp {
		t.Fatalf("stage = %s, want follow_up", st.Stage)
	}
	if st.Booking.ApptType != "" || st.Booking.Time != "" {
		t.Fatalf("booking not cleared: %+v", st.Booking)
	}

	avail, err := store.ListAvailable("2025-09-23", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(avail) != 2 {
		t.Fatalf("declined booking still consumed a slot: %+v", avail)
	}
}

func TestNameAttemptsExhausted(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)
	st := newCall()
	st.Stage = calls.StageBookingName

	d := speak(e, st, "...")
	if d.Hangup {
		t.Fatal("first failed name attempt should reprompt")
	}
	d = speak(e, st, "!!")
	if !d.Hangup {
		t.Fatal("second failed name attempt should end the call")
	}
}

func TestUnresolvedInputClarifiers(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)

	st := newCall()
	d := e.Turn(st, Input{Text: "blorp gurgle", Confidence: 0.2, HasConfidence: true})
	if got := d.Say[0]; got != clarifiers[0] {
		t.Fatalf("low confidence got %q, want direct clarifier", got)
	}
	if st.Retries != 1 {
		t.Fatalf("retries = %d, want 1", st.Retries)
	}

	st = newCall()
	d = e.Turn(st, Input{Text: "blorp gurgle", Confidence: 0.9, HasConfidence: true})
	if got := d.Say[0]; got != repeats[0] {
		t.Fatalf("high confidence got %q, want generic repeat", got)
	}
}

func TestNoAvailabilityAnywhere(t *testing.T) {
	e, _ := newTestEngine(t, "")
	st := newCall()

	d := speak(e, st, "what do you have tomorrow")
	saidContains(t, d, "can't see any available times")
	if st.Stage != calls.StageFollowUp {
		t.Fatalf("stage = %s, want follow_up", st.Stage)
	}
}

func TestStickyServiceReused(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)
	st := newCall()

	speak(e, st, "how much is a whitening treatment")
	if st.LastService != "Whitening" {
		t.Fatalf("sticky service = %q", st.LastService)
	}

	speak(e, st, "okay let's book it in")
	if st.Stage != calls.StageBookingDate {
		t.Fatalf("stage = %s, want booking_date via sticky service", st.Stage)
	}
	if st.Booking.ApptType != "Whitening" {
		t.Fatalf("appt type = %q, want Whitening", st.Booking.ApptType)
	}
}

func TestGreetUsesPracticeProfile(t *testing.T) {
	e, _ := newTestEngine(t, tuesdaySlots)
	st := newCall()

	d := e.Greet(st)
	if !st.Greeted {
		t.Fatal("greeted flag not set")
	}
	if len(d.Say) != 1 || d.Expect != ExpectIntent {
		t.Fatalf("greeting directive: %+v", d)
	}
	if len(st.Transcript) != 1 || st.Transcript[0].Role != "Agent" {
		t.Fatalf("greeting not on transcript: %+v", st.Transcript)
	}
}
