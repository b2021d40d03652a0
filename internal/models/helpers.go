package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	CallbackStartFlow  = "start_prediction_flow"
	callbackMinePrefix = "mine_"
)

func GeneratePredictionID() string {
	return fmt.Sprintf("pred_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func MineCallbackData(n int) string {
	return callbackMinePrefix + strconv.Itoa(n)
}

// ParseMineCallback extracts n from "mine_<n>". Counts outside 3..24 are rejected.
func ParseMineCallback(data string) (int, bool) {
	if !strings.HasPrefix(data, callbackMinePrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(data, callbackMinePrefix))
	if err != nil || !ValidMineCount(n) {
		return 0, false
	}
	return n, true
}

// ParseUserID reads a Telegram user id from a path segment.
func ParseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id: %q", s)
	}
	return id, nil
}
