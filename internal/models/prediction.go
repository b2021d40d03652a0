package models

import "time"

// MinePlacement is the full output of one sampler run.
type MinePlacement struct {
	Digest    string `json:"digest"`
	MineCount int    `json:"mine_count"`
	Bombs     []int  `json:"bombs"`
	SafeTiles []int  `json:"safe_tiles"`
}

// BombsPlaced can be below MineCount when the digest runs out of usable bytes.
func (m MinePlacement) BombsPlaced() int {
	return len(m.Bombs)
}

type Prediction struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	MineCount   int       `json:"mine_count"`
	ServerSeed  string    `json:"server_seed"`
	ClientSeed  string    `json:"client_seed"`
	Nonce       int64     `json:"nonce"`
	Digest      string    `json:"digest"`
	SafeTiles   []int     `json:"safe_tiles"`
	Revealed    []int     `json:"revealed"`
	BombsPlaced int       `json:"bombs_placed"`
	BetAmount   string    `json:"bet_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserStatus summarises a user's access for the admin API.
type UserStatus struct {
	UserID     int64       `json:"user_id"`
	Premium    bool        `json:"premium"`
	Admin      bool        `json:"admin"`
	Activation *Activation `json:"activation,omitempty"`
	ExpiresAt  *time.Time  `json:"expires_at,omitempty"`
}
