// internal/bracket/generator.go

// Package bracket builds tournament brackets as pure functions of the seeded
// player list and format. It owns no state; the tournament engine applies its
// output under the lobby lock.
package bracket

import (
	"math/bits"

	"github.com/google/uuid"

	"github.com/dilemma-gg/party/internal/models"
)

// Generate maps an ordered player list (join order, host seed 1) and format to
// the initial bracket plus the total round count. Elimination formats produce
// only round 1; later rounds depend on results. Round robin produces every
// round up front via the circle method.
func Generate(tournamentID uuid.UUID, players []*models.TournamentPlayer, format models.TournamentFormat) (*models.TournamentBracket, int, error) {
	n := len(players)
	if !format.ValidPlayerCount(n) {
		return nil, 0, models.ErrBracketGenerationFailed
	}
	seen := make(map[uuid.UUID]bool, n)
	for _, p := range players {
		if seen[p.ID] {
			return nil, 0, models.ErrBracketGenerationFailed
		}
		seen[p.ID] = true
	}

	b := &models.TournamentBracket{
		Eliminated:    make(map[uuid.UUID]bool),
		ActiveMatches: make(map[uuid.UUID]*models.TournamentMatch),
	}

	switch format {
	case models.FormatSingleElimination, models.FormatDoubleElimination:
		pairs := seedPairings(n)
		b.Rounds = append(b.Rounds, BuildRound(tournamentID, 1, pairs, players))
		total := bits.TrailingZeros(uint(n)) // log2 of 4/8/16
		if format == models.FormatDoubleElimination {
			// Losers get a second life, roughly doubling the round count. The
			// engine completes the tournament on survivor count regardless.
			total *= 2
		}
		return b, total, nil

	case models.FormatRoundRobin:
		rounds := circleMethod(n)
		for i, pairs := range rounds {
			b.Rounds = append(b.Rounds, BuildRound(tournamentID, i+1, pairs, players))
		}
		return b, len(rounds), nil
	}
	return nil, 0, models.ErrInvalidTournamentFormat
}

// NextEliminationPairings derives the next round's pairings from the
// tournament's surviving players, as seed-index pairs. Survivors are grouped
// by loss count (double elimination keeps one-loss players in contention);
// within each group the best remaining seed faces the worst. A lone leftover
// in each group meets across groups; a single overall leftover advances on a
// walkover with no match that round.
func NextEliminationPairings(t *models.Tournament) [][2]int {
	groups := map[int][]int{}
	for _, idx := range t.Survivors() {
		groups[t.Losses[idx]] = append(groups[t.Losses[idx]], idx)
	}

	var pairs [][2]int
	var leftovers []int
	for losses := 0; losses <= 1; losses++ {
		g := groups[losses]
		for len(g) >= 2 {
			pairs = append(pairs, [2]int{g[0], g[len(g)-1]})
			g = g[1 : len(g)-1]
		}
		if len(g) == 1 {
			leftovers = append(leftovers, g[0])
		}
	}
	if len(leftovers) == 2 {
		pairs = append(pairs, [2]int{leftovers[0], leftovers[1]})
	}
	return pairs
}

// seedPairings pairs round 1 by seed: 1 vs N, 2 vs N-1, and so on, as 0-based
// index pairs.
func seedPairings(n int) [][2]int {
	pairs := make([][2]int, 0, n/2)
	for i := 0; i < n/2; i++ {
		pairs = append(pairs, [2]int{i, n - 1 - i})
	}
	return pairs
}

// circleMethod schedules all C(n,2) round-robin pairings so that no player
// faces two opponents in the same round. With an odd field a phantom seat
// gives one player a sit-out per round.
func circleMethod(n int) [][][2]int {
	m := n
	if m%2 == 1 {
		m++ // phantom seat m-1
	}
	arr := make([]int, m)
	for i := range arr {
		arr[i] = i
	}

	rounds := make([][][2]int, 0, m-1)
	for r := 0; r < m-1; r++ {
		var pairs [][2]int
		for i := 0; i < m/2; i++ {
			a, b := arr[i], arr[m-1-i]
			if a >= n || b >= n {
				continue // phantom pairing, sit-out
			}
			pairs = append(pairs, [2]int{a, b})
		}
		rounds = append(rounds, pairs)

		// Rotate all but the first seat.
		last := arr[m-1]
		copy(arr[2:], arr[1:m-1])
		arr[1] = last
	}
	return rounds
}

// BuildRound materializes index pairs into scheduled matches.
func BuildRound(tournamentID uuid.UUID, number int, pairs [][2]int, players []*models.TournamentPlayer) *models.TournamentRound {
	round := &models.TournamentRound{Number: number}
	for _, pr := range pairs {
		round.Matches = append(round.Matches, &models.TournamentMatch{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Round:        number,
			Player1ID:    players[pr[0]].ID,
			Player2ID:    players[pr[1]].ID,
			Status:       models.MatchScheduled,
		})
	}
	return round
}
