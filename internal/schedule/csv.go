package schedule

import (
	"encoding/csv"
	"fmt"
	"os"
)

// columns is the expected CSV header, in order. Files written by older
// provisioning tools may miss trailing columns; those read as empty.
var columns = []string{
	"date", "weekday", "start_time", "end_time",
	"status", "patient_name", "appointment_type", "notes",
}

// load reads the whole slot table. A missing file is an empty schedule.
// Callers must hold s.mu.
func (s *Store) load() ([]Slot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("schedule: open %s: %w", s.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("schedule: parse %s: %w", s.path, err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	slots := make([]Slot, 0, len(records)-1)
	for _, rec := range records[1:] {
		slots = append(slots, Slot{
			Date:            field(rec, 0),
			Weekday:         field(rec, 1),
			StartTime:       field(rec, 2),
			EndTime:         field(rec, 3),
			Status:          field(rec, 4),
			PatientName:     field(rec, 5),
			AppointmentType: field(rec, 6),
			Notes:           field(rec, 7),
		})
	}
	return slots, nil
}

// save rewrites the slot table atomically via a temp file rename so a crash
// mid-write cannot truncate the schedule. Callers must hold s.mu.
func (s *Store) save(slots []Slot) error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("schedule: create %s: %w", tmp, err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(columns); err != nil {
		f.Close()
		return err
	}
	for _, slot := range slots {
		row := []string{
			slot.Date, slot.Weekday, slot.StartTime, slot.EndTime,
			slot.Status, slot.PatientName, slot.AppointmentType, slot.Notes,
		}
		if err := writer.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
