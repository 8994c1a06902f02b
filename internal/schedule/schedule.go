// Package schedule owns the appointment-slot table.
//
// The table lives in a CSV file provisioned out-of-band (reception staff or
// a separate tool add the rows); this package only queries availability and
// flips slots from Available to Booked. The file has no transactional
// guarantee of its own, so every reserve runs its full load-check-mutate-save
// sequence under one process-level lock: two callers racing for the same slot
// cannot both win.
package schedule

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Slot statuses. A slot moves Available -> Booked exactly once and never
// reverts.
const (
	StatusAvailable = "Available"
	StatusBooked    = "Booked"
)

// Types is the fixed vocabulary of appointment types offered over the phone.
var Types = []string{"Check-up", "Hygiene", "Whitening", "Extraction", "Filling", "Emergency"}

// Slot is one bookable row in the appointment table.
type Slot struct {
	Date            string
	Weekday         string
	StartTime       string
	EndTime         string
	Status          string
	PatientName     string
	AppointmentType string
	Notes           string
}

// Store reads and mutates the slot table. Safe for concurrent use.
type Store struct {
	path   string
	logger *slog.Logger

	// mu spans every load-check-mutate-save sequence; the CSV itself has
	// no locking.
	mu sync.Mutex
}

// NewStore creates a store over the CSV file at path. The file may not exist
// yet; queries against a missing file return no slots.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// ListAvailable returns available slots, optionally filtered to one date,
// sorted by start time ascending and capped at limit (limit <= 0 means no
// cap). An empty schedule yields an empty list, not an error.
func (s *Store) ListAvailable(date string, limit int) ([]Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.load()
	if err != nil {
		return nil, err
	}
	var avail []Slot
	for _, slot := range slots {
		if slot.Status != StatusAvailable {
			continue
		}
		if date != "" && slot.Date != date {
			continue
		}
		avail = append(avail, slot)
	}
	sort.SliceStable(avail, func(i, j int) bool {
		return avail[i].StartTime < avail[j].StartTime
	})
	if limit > 0 && len(avail) > limit {
		avail = avail[:limit]
	}
	return avail, nil
}

// FindNextAvailable returns the first available slot in storage order. The
// schedule file is kept sorted by date, so first means soonest.
func (s *Store) FindNextAvailable() (Slot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.load()
	if err != nil {
		return Slot{}, false, err
	}
	for _, slot := range slots {
		if slot.Status == StatusAvailable {
			return slot, true, nil
		}
	}
	return Slot{}, false, nil
}

// Reserve books the slot at (date, startTime) for the named caller. It
// returns false when no such slot exists or it is no longer available — the
// caller lost the race and should re-offer availability. The whole
// read-check-write runs under the store lock.
func (s *Store) Reserve(date, startTime, name, apptType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.load()
	if err != nil {
		return false, err
	}
	for i := range slots {
		if slots[i].Date != date || slots[i].StartTime != startTime {
			continue
		}
		if strings.TrimSpace(slots[i].Status) != StatusAvailable {
			return false, nil
		}
		slots[i].Status = StatusBooked
		slots[i].PatientName = name
		slots[i].AppointmentType = apptType
		if err := s.save(slots); err != nil {
			return false, fmt.Errorf("schedule: persist reservation: %w", err)
		}
		s.logger.Info("slot reserved",
			"date", date, "start_time", startTime, "appointment_type", apptType)
		return true, nil
	}
	return false, nil
}
