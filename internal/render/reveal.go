// Package render turns a set of safe tiles into something to show the user:
// a composed PNG board or a plain text grid.
package render

import (
	"math/rand/v2"
	"slices"
	"strings"

	"mines-predictor-bot/internal/models"
)

const (
	minRevealed = 4
	maxRevealed = 6

	tileSafe   = "💎"
	tileHidden = "⬜"
)

// ChooseReveal picks 4 to 6 of the safe tiles to display. The pick is purely
// cosmetic and carries no fairness guarantee. A nil r uses the global source.
func ChooseReveal(safe []int, r *rand.Rand) []int {
	intN := rand.IntN
	shuffle := rand.Shuffle
	if r != nil {
		intN = r.IntN
		shuffle = r.Shuffle
	}

	n := minRevealed + intN(maxRevealed-minRevealed+1)
	if n > len(safe) {
		n = len(safe)
	}

	pool := slices.Clone(safe)
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	picked := pool[:n]
	slices.Sort(picked)
	return picked
}

// TextGrid draws the board as emoji rows.
func TextGrid(revealed []int) string {
	show := make(map[int]bool, len(revealed))
	for _, t := range revealed {
		show[t] = true
	}

	var b strings.Builder
	for row := 0; row < models.GridSize; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		for col := 0; col < models.GridSize; col++ {
			if show[row*models.GridSize+col] {
				b.WriteString(tileSafe)
			} else {
				b.WriteString(tileHidden)
			}
		}
	}
	return b.String()
}
