package services

import "time"

const (
	KeyUserState       = "user_state:%d"
	KeyActivationKeys  = "activation_keys"
	KeyUserActivations = "user_activation_info"
	KeyAdminUsers      = "admin_users"
	KeyPrediction      = "prediction:%s"
	KeyUserPredictions = "user:%d:predictions"
	KeyRateLimit       = "ratelimit:%s:%s"

	TTLUserState  = 7 * 24 * time.Hour  // abandoned flows expire after a week
	TTLPrediction = 30 * 24 * time.Hour // 30 days

	DefaultRateLimitVerify = 60 // Max 60 verify calls per minute per IP
)
