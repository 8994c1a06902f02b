package server

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/frontdesk/internal/calls"
	"github.com/haasonsaas/frontdesk/internal/config"
	"github.com/haasonsaas/frontdesk/internal/dialogue"
	"github.com/haasonsaas/frontdesk/internal/observability"
	"github.com/haasonsaas/frontdesk/internal/schedule"
	"github.com/haasonsaas/frontdesk/internal/transcripts"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	base := t.TempDir()

	cfg := config.Default()
	cfg.Storage = config.StorageConfig{
		ScheduleCSV:    filepath.Join(base, "schedule.csv"),
		TranscriptsDir: filepath.Join(base, "transcripts"),
		CallsLog:       filepath.Join(base, "calls.jsonl"),
		BookingsCSV:    filepath.Join(base, "bookings.csv"),
	}
	if mutate != nil {
		mutate(cfg)
	}

	header := "date,weekday,start_time,end_time,status,patient_name,appointment_type,notes\n"
	if err := os.WriteFile(cfg.Storage.ScheduleCSV, []byte(header), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	sched := schedule.NewStore(cfg.Storage.ScheduleCSV, logger)
	engine := dialogue.NewEngine(sched, config.NewPracticeSource(cfg.Practice),
		dialogue.FirstSelector{}, cfg.Dialogue, logger)
	records := transcripts.NewStore(cfg.Storage, logger)
	if err := records.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	return New(cfg, engine, calls.NewStore(), records, metrics, registry, logger)
}

func post(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "http://desk.test"+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCallFlowOverWebhooks(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	rec := post(t, h, "/voice", url.Values{"CallSid": {"CA1"}, "From": {"+447700900123"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("voice status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "<Gather") || !strings.Contains(body, "Oak Dental") {
		t.Fatalf("greeting twiml:\n%s", body)
	}

	rec = post(t, h, "/gather", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"what are your opening hours"}})
	if body := rec.Body.String(); !strings.Contains(body, "Monday to Friday") {
		t.Fatalf("hours twiml:\n%s", body)
	}

	rec = post(t, h, "/gather", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"no thanks"}})
	if body := rec.Body.String(); !strings.Contains(body, "<Hangup/>") {
		t.Fatalf("goodbye twiml:\n%s", body)
	}

	// The call is completed; a stray extra turn gets a bare disconnect.
	rec = post(t, h, "/gather", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"hello again"}})
	body := rec.Body.String()
	if !strings.Contains(body, "<Hangup/>") || strings.Contains(body, "<Say") {
		t.Fatalf("completed call twiml:\n%s", body)
	}
}

func TestMissingCallSidGetsGoodbye(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	for _, path := range []string{"/voice", "/gather"} {
		rec := post(t, h, path, url.Values{})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "<Hangup/>") {
			t.Fatalf("%s should hang up:\n%s", path, rec.Body.String())
		}
	}
}

func TestSilenceRedirectRunsSilentTurn(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	post(t, h, "/voice", url.Values{"CallSid": {"CA1"}})
	// Gather timed out; Twilio redirects back to /voice with no speech.
	rec := post(t, h, "/voice", url.Values{"CallSid": {"CA1"}})
	if !strings.Contains(rec.Body.String(), "still on the line") {
		t.Fatalf("expected the silence nudge:\n%s", rec.Body.String())
	}
}

func TestCompletionIsIdempotent(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	post(t, h, "/voice", url.Values{"CallSid": {"CA1"}, "From": {"+447700900123"}})
	post(t, h, "/gather", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"where are you"}})

	done := url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}, "CallDuration": {"45"}}
	for i := 0; i < 3; i++ {
		rec := post(t, h, "/status", done)
		if rec.Code != http.StatusOK {
			t.Fatalf("status call %d = %d", i, rec.Code)
		}
	}

	entries, err := os.ReadDir(s.cfg.Storage.TranscriptsDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d transcript files, want exactly 1", len(entries))
	}

	data, err := os.ReadFile(s.cfg.Storage.CallsLog)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 1 {
		t.Fatalf("got %d summary records, want exactly 1", len(lines))
	}

	if s.states.Len() != 0 {
		t.Fatalf("state not removed, %d live calls", s.states.Len())
	}
	if got := testutil.ToFloat64(s.metrics.CallsCompleted); got != 1 {
		t.Fatalf("calls completed metric = %v, want 1", got)
	}
}

func TestFinalizedCallIsNotReopened(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	post(t, h, "/voice", url.Values{"CallSid": {"CA9"}, "From": {"+447700900123"}})
	post(t, h, "/status", url.Values{"CallSid": {"CA9"}, "CallStatus": {"completed"}})
	if s.states.Len() != 0 {
		t.Fatalf("state not removed on completion, %d live calls", s.states.Len())
	}

	// A lagging gather for the finished call must get a bare disconnect,
	// never a fresh greeting or prompt.
	rec := post(t, h, "/gather", url.Values{"CallSid": {"CA9"}, "SpeechResult": {"are you still there"}})
	body := rec.Body.String()
	if !strings.Contains(body, "<Hangup/>") || strings.Contains(body, "<Say") || strings.Contains(body, "<Gather") {
		t.Fatalf("late gather twiml:\n%s", body)
	}

	// Same for a retried voice webhook.
	rec = post(t, h, "/voice", url.Values{"CallSid": {"CA9"}})
	body = rec.Body.String()
	if !strings.Contains(body, "<Hangup/>") || strings.Contains(body, "<Say") {
		t.Fatalf("late voice twiml:\n%s", body)
	}

	if s.states.Len() != 0 {
		t.Fatalf("late webhooks minted state, %d live calls", s.states.Len())
	}
	if got := testutil.ToFloat64(s.metrics.CallsCompleted); got != 1 {
		t.Fatalf("calls completed metric = %v, want 1", got)
	}
}

func TestCompletionForUnknownCallStillLogs(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	rec := post(t, h, "/status", url.Values{"CallSid": {"CAghost"}, "CallStatus": {"completed"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data, err := os.ReadFile(s.cfg.Storage.CallsLog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "CAghost") {
		t.Fatal("summary missing for unknown call")
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	req := httptest.NewRequest("GET", "http://desk.test/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest("GET", "http://desk.test/metrics", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "frontdesk_active_calls") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func signForm(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := fullURL
	for _, k := range keys {
		for _, v := range form[k] {
			payload += k + v
		}
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSignatureVerification(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Twilio.AuthToken = "secret-token"
		cfg.Twilio.VerifySignatures = true
	})
	h := s.Handler()

	form := url.Values{"CallSid": {"CA1"}}

	// Unsigned webhook posts are rejected.
	if rec := post(t, h, "/voice", form); rec.Code != http.StatusForbidden {
		t.Fatalf("unsigned post: %d, want 403", rec.Code)
	}

	// A correctly signed post goes through.
	req := httptest.NewRequest("POST", "http://desk.test/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", signForm("secret-token", "http://desk.test/voice", form))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("signed post: %d, want 200", rec.Code)
	}

	// Health is not a webhook route and needs no signature.
	req = httptest.NewRequest("GET", "http://desk.test/health", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health behind verification: %d", rec.Code)
	}
}
