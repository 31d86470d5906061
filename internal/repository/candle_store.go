package repository

import (
	"sort"
	"sync"

	"goldbot/internal/domain"
)

// CandleStore keeps the closed candles of one timeframe, oldest first.
// It never holds the in-progress bar: callers pass closed bars only.
type CandleStore struct {
	mu         sync.RWMutex
	candles    []domain.Candle
	lastClosed int64
	retention  int
}

// NewCandleStore creates a store capped at retention candles.
func NewCandleStore(retention int) *CandleStore {
	if retention < 1 {
		retention = 1
	}
	return &CandleStore{
		candles:   make([]domain.Candle, 0, retention),
		retention: retention,
	}
}

// Replace installs a freshly loaded closed history.
func (s *CandleStore) Replace(closed []domain.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.candles = make([]domain.Candle, 0, len(closed))
	seen := make(map[int64]struct{}, len(closed))
	for _, c := range closed {
		if _, dup := seen[c.Timestamp]; dup {
			continue
		}
		seen[c.Timestamp] = struct{}{}
		s.candles = append(s.candles, c)
	}
	s.sortAndTrim()

	s.lastClosed = 0
	if n := len(s.candles); n > 0 {
		s.lastClosed = s.candles[n-1].Timestamp
	}
}

// Merge adds fetched closed bars. It reports whether the newest fetched bar is newer
// than the last recorded close and returns the bars that were actually added.
// A fetch without progress leaves the store untouched.
func (s *CandleStore) Merge(closed []domain.Candle) (bool, []domain.Candle) {
	if len(closed) == 0 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newest := closed[len(closed)-1]
	if newest.Timestamp <= s.lastClosed {
		return false, nil
	}

	known := make(map[int64]struct{}, len(s.candles))
	for _, c := range s.candles {
		known[c.Timestamp] = struct{}{}
	}

	added := make([]domain.Candle, 0, len(closed))
	for _, c := range closed {
		if _, ok := known[c.Timestamp]; ok {
			continue
		}
		known[c.Timestamp] = struct{}{}
		s.candles = append(s.candles, c)
		added = append(added, c)
	}

	s.sortAndTrim()
	s.lastClosed = newest.Timestamp
	return true, added
}

// Candles returns a copy of the stored bars.
func (s *CandleStore) Candles() []domain.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Candle, len(s.candles))
	copy(result, s.candles)
	return result
}

// LastClosed returns the timestamp of the most recently accepted closed bar.
func (s *CandleStore) LastClosed() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastClosed
}

// Len returns the number of stored bars.
func (s *CandleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candles)
}

// sortAndTrim restores ascending order and drops the oldest bars over retention. Caller holds mu.
func (s *CandleStore) sortAndTrim() {
	if !sort.SliceIsSorted(s.candles, s.less) {
		sort.SliceStable(s.candles, s.less)
	}
	if len(s.candles) > s.retention {
		s.candles = append([]domain.Candle(nil), s.candles[len(s.candles)-s.retention:]...)
	}
}

func (s *CandleStore) less(i, j int) bool {
	return s.candles[i].Timestamp < s.candles[j].Timestamp
}
