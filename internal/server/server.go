// Package server bridges the telephony gateway's webhooks to the dialogue
// engine and owns the call lifecycle: greeting, turns, and the exactly-once
// completion work.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/frontdesk/internal/calls"
	"github.com/haasonsaas/frontdesk/internal/config"
	"github.com/haasonsaas/frontdesk/internal/dialogue"
	"github.com/haasonsaas/frontdesk/internal/observability"
	"github.com/haasonsaas/frontdesk/internal/transcripts"
	"github.com/haasonsaas/frontdesk/internal/voice"
)

const (
	gatherPath = "/gather"
	voicePath  = "/voice"

	// staleCallAge is how long an untouched call state survives before the
	// sweeper assumes its completion callback was lost.
	staleCallAge = time.Hour
)

// Server handles the gateway's webhook traffic for every concurrent call.
type Server struct {
	cfg      *config.Config
	engine   *dialogue.Engine
	states   *calls.Store
	records  *transcripts.Store
	metrics  *observability.Metrics
	registry *prometheus.Registry
	logger   *slog.Logger

	validator *voice.Validator

	// completed is the seen-set behind idempotent completion; duplicate
	// status callbacks for a finished call are no-ops.
	mu        sync.Mutex
	completed map[string]time.Time

	cron *cron.Cron
}

// New assembles the server. The validator is only armed when signature
// verification is enabled in the config.
func New(cfg *config.Config, engine *dialogue.Engine, states *calls.Store,
	records *transcripts.Store, metrics *observability.Metrics,
	registry *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		engine:    engine,
		states:    states,
		records:   records,
		metrics:   metrics,
		registry:  registry,
		logger:    logger,
		completed: make(map[string]time.Time),
		cron:      cron.New(),
	}
	if cfg.Twilio.VerifySignatures {
		s.validator = voice.NewValidator(cfg.Twilio.AuthToken)
	}
	return s
}

// Handler builds the route table. Webhook routes sit behind the signature
// check when verification is enabled.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+voicePath, s.handleVoice)
	mux.HandleFunc("POST "+gatherPath, s.handleGather)
	mux.HandleFunc("POST /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return s.verifySignature(mux)
}

// Run serves webhooks until ctx is cancelled, then drains in-flight
// requests. It also starts the periodic state sweeper.
func (s *Server) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc("@every 10m", s.sweep); err != nil {
		return fmt.Errorf("server: schedule sweep: %w", err)
	}
	s.cron.Start()
	defer s.cron.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	}
}

// sweep drops stale call states and forgets old completion markers.
func (s *Server) sweep() {
	if n := s.states.Sweep(staleCallAge); n > 0 {
		s.logger.Info("swept stale call state", "count", n)
		s.metrics.ActiveCalls.Set(float64(s.states.Len()))
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	s.mu.Lock()
	for sid, at := range s.completed {
		if at.Before(cutoff) {
			delete(s.completed, sid)
		}
	}
	s.mu.Unlock()
}

// handleVoice answers the initial webhook and the silence redirects. The
// first event for a call greets; later hits mean a gather timed out.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	ev := voice.ParseTurnEvent(r)
	if ev.CallSID == "" {
		s.logger.Warn("call sid missing on voice webhook")
		s.respondTwiML(w, s.engine.Goodbye(&calls.State{CallSID: "unknown"}))
		return
	}

	if s.finished(ev.CallSID) {
		s.hangupFinished(w, ev.CallSID)
		return
	}

	st := s.states.GetOrCreate(ev.CallSID)
	if !st.Greeted {
		st.MergeMeta(calls.Meta{
			From:      ev.From,
			To:        ev.To,
			Direction: ev.Direction,
			StartedAt: time.Now().UTC(),
		})
		s.metrics.CallsStarted.Inc()
		s.metrics.ActiveCalls.Set(float64(s.states.Len()))
		s.logger.Info("incoming call", "call_sid", ev.CallSID, "from", ev.From)
		s.respondTwiML(w, s.engine.Greet(st))
		return
	}

	// No speech arrived, run a silent turn.
	s.turn(w, st, voice.TurnEvent{CallSID: ev.CallSID})
}

// handleGather processes one recognized utterance.
func (s *Server) handleGather(w http.ResponseWriter, r *http.Request) {
	ev := voice.ParseTurnEvent(r)
	if ev.CallSID == "" {
		s.logger.Warn("call sid missing on gather webhook")
		s.respondTwiML(w, s.engine.Goodbye(&calls.State{CallSID: "unknown"}))
		return
	}
	if s.finished(ev.CallSID) {
		s.hangupFinished(w, ev.CallSID)
		return
	}
	s.turn(w, s.states.GetOrCreate(ev.CallSID), ev)
}

// finished reports whether the completion work for sid already ran. Webhooks
// can lag their status callback; a finished call must never be reopened.
func (s *Server) finished(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[sid]
	return ok
}

// hangupFinished answers a late webhook for a finalized call with a bare
// disconnect so no fresh state is minted for it.
func (s *Server) hangupFinished(w http.ResponseWriter, sid string) {
	s.logger.Info("webhook after completion dropped", "call_sid", sid)
	s.respondTwiML(w, dialogue.Directive{Hangup: true})
}

func (s *Server) turn(w http.ResponseWriter, st *calls.State, ev voice.TurnEvent) {
	stageBefore := st.Stage
	bookedBefore := st.BookingLogged

	d := s.engine.Turn(st, dialogue.Input{
		Text:          ev.Speech,
		Confidence:    ev.Confidence,
		HasConfidence: ev.HasConfidence,
	})

	s.metrics.Turns.WithLabelValues(string(stageBefore)).Inc()
	if !bookedBefore && st.BookingLogged {
		s.metrics.BookingsReserved.Inc()
	}
	if stageBefore == calls.StageBookingConfirm && st.Stage == calls.StageBookingDate {
		s.metrics.ReservationConflicts.Inc()
	}
	if ev.Speech == "" && d.Terminal() {
		s.metrics.SilenceHangups.Inc()
	}
	s.respondTwiML(w, d)
}

// handleStatus folds call metadata into live state and, on the completed
// status, runs the finish work exactly once.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ev := voice.ParseTurnEvent(r)
	if ev.CallSID == "" {
		s.respondJSON(w, map[string]bool{"ok": true})
		return
	}

	if st, ok := s.states.Get(ev.CallSID); ok {
		m := calls.Meta{From: ev.From, To: ev.To, Direction: ev.Direction}
		if ev.Duration > 0 {
			m.Duration = fmt.Sprintf("%d", ev.Duration)
		}
		st.MergeMeta(m)
	}

	if ev.Status == "completed" {
		s.finalize(ev)
	}
	s.respondJSON(w, map[string]bool{"ok": true})
}

// finalize flushes the transcript, booking row, and call summary for a
// finished call. Duplicate completion callbacks are no-ops.
func (s *Server) finalize(ev voice.TurnEvent) {
	s.mu.Lock()
	if _, seen := s.completed[ev.CallSID]; seen {
		s.mu.Unlock()
		s.logger.Info("duplicate completion ignored", "call_sid", ev.CallSID)
		return
	}
	s.completed[ev.CallSID] = time.Now()
	s.mu.Unlock()

	st, ok := s.states.Remove(ev.CallSID)
	if !ok {
		st = &calls.State{CallSID: ev.CallSID}
	}
	s.metrics.CallsCompleted.Inc()
	s.metrics.ActiveCalls.Set(float64(s.states.Len()))

	transcriptFile := ""
	if len(st.Transcript) > 0 {
		path, err := s.records.SaveTranscript(ev.CallSID, st.Transcript)
		if err != nil {
			s.logger.Error("transcript save failed", "call_sid", ev.CallSID, "error", err)
		} else {
			transcriptFile = path
		}
	}

	requested := ""
	if st.BookingLogged && st.Booking.Date != "" && st.Booking.Time != "" {
		requested = st.Booking.Date + " " + st.Booking.Time
		if err := s.records.AppendBooking(ev.CallSID, st.CallerName, requested); err != nil {
			s.logger.Error("booking log failed", "call_sid", ev.CallSID, "error", err)
		}
	}

	meta := st.MetaSnapshot()
	summary := transcripts.Summary{
		CallSID:        ev.CallSID,
		Direction:      firstNonEmpty(ev.Direction, meta.Direction),
		From:           firstNonEmpty(ev.From, meta.From),
		To:             firstNonEmpty(ev.To, meta.To),
		DurationSec:    ev.Duration,
		CallerName:     st.CallerName,
		Intent:         st.Intent,
		RequestedTime:  requested,
		TranscriptFile: transcriptFile,
	}
	if err := s.records.AppendSummary(summary); err != nil {
		s.logger.Error("summary log failed", "call_sid", ev.CallSID, "error", err)
	}
	s.logger.Info("call finished", "call_sid", ev.CallSID, "intent", st.Intent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) respondTwiML(w http.ResponseWriter, d dialogue.Directive) {
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(voice.Render(d, s.cfg.Voice.Name, s.cfg.Voice.Language, gatherPath, voicePath)))
}

func (s *Server) respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
