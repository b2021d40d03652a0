package models

import (
	"strings"
	"time"
)

// DefaultAdminActivationKey grants permanent premium status to whoever enters it.
const DefaultAdminActivationKey = "SUPER-ADMIN-2024"

type KeyRecord struct {
	Name         string `json:"key_name"`
	DurationDays int    `json:"duration_days"`
}

func (k KeyRecord) Duration() time.Duration {
	return time.Duration(k.DurationDays) * 24 * time.Hour
}

// DefaultKeys is the inventory written into an empty key store.
var DefaultKeys = []KeyRecord{
	{Name: "ALPHA-1122", DurationDays: 30},
	{Name: "BETA-3344", DurationDays: 30},
	{Name: "GAMMA-5566", DurationDays: 7},
	{Name: "DELTA-7788", DurationDays: 7},
	{Name: "EPSILON-9900", DurationDays: 1},
	{Name: "ZETA-2244", DurationDays: 1},
	{Name: "THETA-6688", DurationDays: 365},
	{Name: "IOTA-1357", DurationDays: 365},
}

// Activation links a user to the key they last entered. A user has at most one.
type Activation struct {
	UserID      int64     `json:"user_id"`
	KeyName     string    `json:"key_name"`
	ActivatedAt time.Time `json:"activated_at"`
}

func (a Activation) ExpiresAt(key KeyRecord) time.Time {
	return a.ActivatedAt.Add(key.Duration())
}

type ActivationResult int

const (
	ActivationInvalidKey ActivationResult = iota
	ActivationActivated
	ActivationAdmin
)

func (r ActivationResult) String() string {
	switch r {
	case ActivationActivated:
		return "activated"
	case ActivationAdmin:
		return "admin"
	default:
		return "invalid_key"
	}
}

// Granted reports whether the result unlocks a prediction.
func (r ActivationResult) Granted() bool {
	return r == ActivationActivated || r == ActivationAdmin
}

// NormalizeKey turns user input into the stored key form.
func NormalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
