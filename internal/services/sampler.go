package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"mines-predictor-bot/internal/models"
)

// MinesDigest is hex(HMAC-SHA256(serverSeed, "<clientSeed>-<nonce>")).
func MinesDigest(serverSeed, clientSeed string, nonce int64) string {
	message := fmt.Sprintf("%s-%d", clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// PlaceMines draws bombs from the digest one byte at a time. A byte picks the
// tile at that position of the remaining list; bytes past the end of the list
// are skipped, so after 32 bytes fewer than mineCount bombs may be placed.
func PlaceMines(serverSeed, clientSeed string, nonce int64, mineCount int) models.MinePlacement {
	if mineCount < 0 {
		mineCount = 0
	}
	if mineCount > models.TileCount-1 {
		mineCount = models.TileCount - 1
	}

	digest := MinesDigest(serverSeed, clientSeed, nonce)

	remaining := make([]int, models.TileCount)
	for i := range remaining {
		remaining[i] = i
	}

	bombs := make([]int, 0, mineCount)
	isBomb := make([]bool, models.TileCount)

	for i := 0; i+2 <= len(digest); i += 2 {
		if len(bombs) == mineCount {
			break
		}

		v, err := strconv.ParseUint(digest[i:i+2], 16, 8)
		if err != nil {
			continue
		}
		if int(v) >= len(remaining) {
			continue
		}

		tile := remaining[v]
		remaining = append(remaining[:v], remaining[v+1:]...)
		bombs = append(bombs, tile)
		isBomb[tile] = true
	}

	safe := make([]int, 0, models.TileCount-len(bombs))
	for tile := 0; tile < models.TileCount; tile++ {
		if !isBomb[tile] {
			safe = append(safe, tile)
		}
	}

	return models.MinePlacement{
		Digest:    digest,
		MineCount: mineCount,
		Bombs:     bombs,
		SafeTiles: safe,
	}
}

// SafeTiles returns the tiles without a bomb, ascending.
func SafeTiles(serverSeed, clientSeed string, nonce int64, mineCount int) []int {
	return PlaceMines(serverSeed, clientSeed, nonce, mineCount).SafeTiles
}
