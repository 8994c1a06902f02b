// Package transcripts persists what each call leaves behind: the transcript
// file, the call-summary log, and the booking-request ledger.
//
// Everything here is append-only. The files are shared with reception staff
// tooling, so formats stay plain: numbered text transcripts, a JSON-lines
// call log, and a flat bookings CSV.
package transcripts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/frontdesk/internal/calls"
	"github.com/haasonsaas/frontdesk/internal/config"
)

const transcriptPrefix = "AI Incoming Call "

// Summary is one finished call's record in the calls log.
type Summary struct {
	RecordID       string `json:"record_id"`
	CallSID        string `json:"call_sid"`
	FinishedAt     string `json:"finished_at"`
	Direction      string `json:"direction,omitempty"`
	From           string `json:"from,omitempty"`
	To             string `json:"to,omitempty"`
	DurationSec    int    `json:"duration_sec"`
	CallerName     string `json:"caller_name,omitempty"`
	Intent         string `json:"intent"`
	RequestedTime  string `json:"requested_time,omitempty"`
	TranscriptFile string `json:"transcript_file,omitempty"`
}

// Store writes call artifacts under the configured storage paths. Safe for
// concurrent use; the lock keeps transcript numbering and file appends from
// interleaving.
type Store struct {
	dir      string
	callsLog string
	bookings string
	logger   *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a store over the configured storage locations.
func NewStore(cfg config.StorageConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:      cfg.TranscriptsDir,
		callsLog: cfg.CallsLog,
		bookings: cfg.BookingsCSV,
		logger:   logger,
		now:      time.Now,
	}
}

// EnsureDirs creates the storage directories if they are missing.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.dir, filepath.Dir(s.callsLog), filepath.Dir(s.bookings)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("transcripts: create %s: %w", dir, err)
		}
	}
	return nil
}

// SaveTranscript writes the call's role-tagged lines to the next numbered
// transcript file and returns its path.
func (s *Store) SaveTranscript(callSID string, lines []calls.Line) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("transcripts: create %s: %w", s.dir, err)
	}
	index, err := s.nextIndex()
	if err != nil {
		return "", err
	}
	now := s.now()
	name := fmt.Sprintf("%s%04d %s %s.txt",
		transcriptPrefix, index, now.Format("15-04"), now.Format("02-01-06"))
	path := filepath.Join(s.dir, name)

	var b strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&b, "[%s] %s\n", line.Role, line.Text)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("transcripts: write %s: %w", path, err)
	}
	s.logger.Info("transcript saved", "call_sid", callSID, "path", path)
	return path, nil
}

// nextIndex scans existing transcript files and returns one past the highest
// number seen. Callers must hold s.mu.
func (s *Store) nextIndex() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("transcripts: scan %s: %w", s.dir, err)
	}
	max := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, transcriptPrefix) || !strings.HasSuffix(name, ".txt") {
			continue
		}
		rest := strings.TrimPrefix(name, transcriptPrefix)
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// AppendSummary appends one finished-call record to the calls log. A missing
// record id or finish timestamp is filled in.
func (s *Store) AppendSummary(sum Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sum.RecordID == "" {
		sum.RecordID = uuid.NewString()
	}
	if sum.FinishedAt == "" {
		sum.FinishedAt = s.now().UTC().Format(time.RFC3339)
	}
	if sum.Intent == "" {
		sum.Intent = "unknown"
	}

	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("transcripts: encode summary: %w", err)
	}
	if err := appendLine(s.callsLog, append(data, '\n')); err != nil {
		return err
	}
	s.logger.Info("call summary logged", "call_sid", sum.CallSID, "intent", sum.Intent)
	return nil
}

// AppendBooking records a booking request in the bookings CSV. A call with
// no requested time logs nothing.
func (s *Store) AppendBooking(callSID, callerName, requestedTime string) error {
	requestedTime = strings.TrimSpace(requestedTime)
	if requestedTime == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.bookings)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.bookings, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("transcripts: open %s: %w", s.bookings, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write([]string{"timestamp", "call_sid", "caller_name", "requested_time", "intent"}); err != nil {
			return fmt.Errorf("transcripts: write %s: %w", s.bookings, err)
		}
	}
	row := []string{s.now().UTC().Format(time.RFC3339), callSID, callerName, requestedTime, "book"}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("transcripts: write %s: %w", s.bookings, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("transcripts: flush %s: %w", s.bookings, err)
	}
	s.logger.Info("booking request logged",
		"call_sid", callSID, "caller_name", callerName, "requested_time", requestedTime)
	return nil
}

func appendLine(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("transcripts: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("transcripts: append %s: %w", path, err)
	}
	return nil
}
