package repository

import (
	"fmt"
	"sync"

	"goldbot/internal/domain"
)

// PositionBook is the set of positions opened and managed by the engine, in opening order.
type PositionBook struct {
	mu        sync.RWMutex
	positions []domain.Position
}

func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make([]domain.Position, 0)}
}

// Add appends a confirmed position.
func (b *PositionBook) Add(p domain.Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.indexOf(p.DealID) >= 0 {
		return fmt.Errorf("position with deal ID %s already exists", p.DealID)
	}
	b.positions = append(b.positions, p)
	return nil
}

// Replace swaps the position identified by oldDealID for p, keeping its slot.
func (b *PositionBook) Replace(oldDealID string, p domain.Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(oldDealID)
	if i < 0 {
		return fmt.Errorf("position with deal ID %s not found", oldDealID)
	}
	b.positions[i] = p
	return nil
}

// Update overwrites the position with the same deal ID.
func (b *PositionBook) Update(p domain.Position) error {
	return b.Replace(p.DealID, p)
}

// Remove drops the position with dealID. Removing an unknown deal is a no-op.
func (b *PositionBook) Remove(dealID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := b.indexOf(dealID); i >= 0 {
		b.positions = append(b.positions[:i], b.positions[i+1:]...)
	}
}

// All returns a copy of the open positions.
func (b *PositionBook) All() []domain.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]domain.Position, len(b.positions))
	copy(result, b.positions)
	return result
}

// Count returns the number of open positions.
func (b *PositionBook) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

func (b *PositionBook) indexOf(dealID string) int {
	for i, p := range b.positions {
		if p.DealID == dealID {
			return i
		}
	}
	return -1
}
