package memory

import (
	"context"
	"fmt"
	"sync"

	"flotta/internal/sheets"
)

// Store is an in-memory mirror used in tests and local setups where no
// spreadsheet is wired up.
type Store struct {
	mu     sync.Mutex
	nextID int
	rows   map[int64]sheets.MirrorRow
	order  []int64
}

func New() *Store {
	return &Store{rows: make(map[int64]sheets.MirrorRow)}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, row sheets.MirrorRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[row.LogID]; !exists {
		s.order = append(s.order, row.LogID)
	}
	s.rows[row.LogID] = row
	s.nextID++
	return fmt.Sprintf("mem:%d", s.nextID), nil
}

// Delete removes the row for the log. Deleting a row that was never mirrored
// is not an error, matching the spreadsheet behavior.
func (s *Store) Delete(_ context.Context, row sheets.MirrorRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[row.LogID]; !exists {
		return nil
	}
	delete(s.rows, row.LogID)
	for i, id := range s.order {
		if id == row.LogID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Rows returns the mirrored rows in append order.
func (s *Store) Rows() []sheets.MirrorRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]sheets.MirrorRow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	return out
}
