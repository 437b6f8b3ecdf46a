// internal/spectator/coordinator.go

// Package spectator tracks which players are watching a tournament after
// elimination (or by choice) so the engine can target bracket updates at them.
package spectator

import (
	"sync"

	"github.com/google/uuid"
)

// Coordinator is a small mutex-guarded index of spectators per tournament.
type Coordinator struct {
	mu           sync.Mutex
	byTournament map[uuid.UUID]map[uuid.UUID]bool
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{byTournament: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

// Add marks a player as spectating a tournament.
func (c *Coordinator) Add(tournamentID, playerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.byTournament[tournamentID]
	if !ok {
		set = make(map[uuid.UUID]bool)
		c.byTournament[tournamentID] = set
	}
	set[playerID] = true
}

// Remove drops a player from the tournament's spectator set.
func (c *Coordinator) Remove(tournamentID, playerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.byTournament[tournamentID]; ok {
		delete(set, playerID)
		if len(set) == 0 {
			delete(c.byTournament, tournamentID)
		}
	}
}

// Spectators lists the players currently spectating a tournament.
func (c *Coordinator) Spectators(tournamentID uuid.UUID) []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uuid.UUID, 0, len(c.byTournament[tournamentID]))
	for id := range c.byTournament[tournamentID] {
		out = append(out, id)
	}
	return out
}

// Clear drops all spectators for a finished or cancelled tournament.
func (c *Coordinator) Clear(tournamentID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byTournament, tournamentID)
}
