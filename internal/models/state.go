package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	GridSize  = 5
	TileCount = GridSize * GridSize

	MinMines = 3
	MaxMines = 24
)

// DefaultClientSeed is the client seed every flow uses.
var DefaultClientSeed = strings.Repeat("0", 64)

type Step string

const (
	StepIdle                  Step = ""
	StepAwaitingMineCount     Step = "awaiting_mine_count"
	StepAwaitingServerSeed    Step = "awaiting_server_seed"
	StepAwaitingBetAmount     Step = "awaiting_bet_amount"
	StepAwaitingActivationKey Step = "awaiting_activation_key"
)

// ConversationState is the per-user position in the prediction flow. Each
// step is its own type carrying only the fields captured so far.
type ConversationState interface {
	Step() Step
	isState()
}

type Seeds struct {
	Server string
	Client string
}

type Idle struct{}

type AwaitingMineCount struct{}

type AwaitingServerSeed struct {
	MineCount int
}

type AwaitingBetAmount struct {
	MineCount int
	Seeds     Seeds
}

type AwaitingActivationKey struct {
	MineCount int
	Seeds     Seeds
	BetAmount string
}

func (Idle) Step() Step                  { return StepIdle }
func (AwaitingMineCount) Step() Step     { return StepAwaitingMineCount }
func (AwaitingServerSeed) Step() Step    { return StepAwaitingServerSeed }
func (AwaitingBetAmount) Step() Step     { return StepAwaitingBetAmount }
func (AwaitingActivationKey) Step() Step { return StepAwaitingActivationKey }

func (Idle) isState()                  {}
func (AwaitingMineCount) isState()     {}
func (AwaitingServerSeed) isState()    {}
func (AwaitingBetAmount) isState()     {}
func (AwaitingActivationKey) isState() {}

// stateRecord is the flat form persisted by every store.
type stateRecord struct {
	Step       Step   `json:"step,omitempty"`
	MineCount  int    `json:"mine_count,omitempty"`
	ServerSeed string `json:"server_seed,omitempty"`
	ClientSeed string `json:"client_seed,omitempty"`
	BetAmount  string `json:"bet_amount,omitempty"`
}

// EncodeState renders a state as JSON. Idle encodes as "{}".
func EncodeState(s ConversationState) ([]byte, error) {
	var rec stateRecord

	switch st := s.(type) {
	case nil, Idle:
	case AwaitingMineCount:
		rec.Step = StepAwaitingMineCount
	case AwaitingServerSeed:
		rec.Step = StepAwaitingServerSeed
		rec.MineCount = st.MineCount
	case AwaitingBetAmount:
		rec.Step = StepAwaitingBetAmount
		rec.MineCount = st.MineCount
		rec.ServerSeed = st.Seeds.Server
		rec.ClientSeed = st.Seeds.Client
	case AwaitingActivationKey:
		rec.Step = StepAwaitingActivationKey
		rec.MineCount = st.MineCount
		rec.ServerSeed = st.Seeds.Server
		rec.ClientSeed = st.Seeds.Client
		rec.BetAmount = st.BetAmount
	default:
		return nil, fmt.Errorf("unknown conversation state %T", s)
	}

	return json.Marshal(rec)
}

// DecodeState parses a stored state. Empty input, an unknown step or a record
// missing fields its step requires all decode to Idle.
func DecodeState(data []byte) (ConversationState, error) {
	if len(data) == 0 {
		return Idle{}, nil
	}

	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Idle{}, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}

	seeds := Seeds{Server: rec.ServerSeed, Client: rec.ClientSeed}

	switch rec.Step {
	case StepAwaitingMineCount:
		return AwaitingMineCount{}, nil
	case StepAwaitingServerSeed:
		if ValidMineCount(rec.MineCount) {
			return AwaitingServerSeed{MineCount: rec.MineCount}, nil
		}
	case StepAwaitingBetAmount:
		if ValidMineCount(rec.MineCount) && seeds.Server != "" {
			return AwaitingBetAmount{MineCount: rec.MineCount, Seeds: seeds}, nil
		}
	case StepAwaitingActivationKey:
		if ValidMineCount(rec.MineCount) && seeds.Server != "" {
			return AwaitingActivationKey{MineCount: rec.MineCount, Seeds: seeds, BetAmount: rec.BetAmount}, nil
		}
	}

	return Idle{}, nil
}

func ValidMineCount(n int) bool {
	return n >= MinMines && n <= MaxMines
}
