package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"mines-predictor-bot/internal/logging"
	"mines-predictor-bot/internal/models"
	"mines-predictor-bot/internal/render"
)

const (
	textStart            = "Start STAKE MINES Predictor 💣"
	textChooseMines      = "Choose Mines Number From 3-24 ⬇️"
	textServerSeedPrompt = "Mines set to <b>%d</b>.\n\nPlease enter the <b>Server Seed</b>:"
	textBetPrompt        = "Great! Now enter your <b>Bet Amount</b>:"
	textActivationNeeded = "❗<b>Activation Required</b>\nYour key is invalid or has expired. Please enter a key:"
	textInvalidKey       = "❌ <b>Error!</b> The key is invalid."
	textGenerating       = "<i>Generating prediction...</i>"
	textAdminGenerating  = "<i>Admin activated. Generating prediction...</i>"
	textPredictionReady  = "💎 <b>Prediction Ready!</b> (%d-mine game).\nNonce: <code>%d</code>"
	textFailure          = "An unexpected error occurred. Please try starting again with /start."

	labelStart = "Click Here To Start 🚀"
	labelBuy   = "Buy It From Here 🚀"

	CommandStart = "start"

	// nonceSpace bounds the random nonce drawn per prediction.
	nonceSpace = 10000
)

// Transition is the outcome of one event: the state to persist, the messages
// to deliver in order, and what happened along the way.
type Transition struct {
	Next       models.ConversationState
	Actions    []models.Action
	Prediction *models.Prediction
	Activation *models.Activation
	Result     models.ActivationResult
	// Err is a *models.FlowError. ErrInvalidKey keeps the state; any other
	// kind has already reset Next to Idle.
	Err error
}

type FlowConfig struct {
	PurchaseURL        string
	ServerSeedGuideURL string
	BetAmountGuideURL  string
}

// Machine sequences user input into the gate and the sampler. It holds no
// per-user data; the caller loads and persists the state around Transition.
type Machine struct {
	gate     *ActivationGate
	renderer Renderer
	cfg      FlowConfig
	log      logging.Logger

	nonce  func() int64
	reveal func(safe []int) []int
}

func NewMachine(gate *ActivationGate, renderer Renderer, cfg FlowConfig, log logging.Logger) *Machine {
	return &Machine{
		gate:     gate,
		renderer: renderer,
		cfg:      cfg,
		log:      log,
		nonce:    func() int64 { return rand.Int64N(nonceSpace) },
		reveal:   func(safe []int) []int { return render.ChooseReveal(safe, nil) },
	}
}

// WithNonceSource replaces the random nonce draw.
func (m *Machine) WithNonceSource(f func() int64) *Machine {
	m.nonce = f
	return m
}

// WithRevealer replaces the cosmetic choice of which safe tiles to show.
func (m *Machine) WithRevealer(f func(safe []int) []int) *Machine {
	m.reveal = f
	return m
}

func (m *Machine) Transition(ctx context.Context, state models.ConversationState, ev models.Event, now time.Time) (tr Transition) {
	defer func() {
		if r := recover(); r != nil {
			tr = m.fail(ev, models.UnhandledError("transition", fmt.Errorf("panic: %v", r)))
		}
	}()

	if state == nil {
		state = models.Idle{}
	}

	switch e := ev.(type) {
	case models.CommandEvent:
		return m.onCommand(state, e)
	case models.CallbackEvent:
		return m.onCallback(state, e)
	case models.TextEvent:
		return m.onText(ctx, state, e, now)
	default:
		return Transition{Next: state}
	}
}

func (m *Machine) onCommand(state models.ConversationState, e models.CommandEvent) Transition {
	if e.Command != CommandStart {
		return Transition{Next: state}
	}

	keyboard := models.Keyboard{{{Label: labelStart, CallbackData: models.CallbackStartFlow}}}

	return Transition{
		Next: models.Idle{},
		Actions: []models.Action{
			models.SendText{ChatID: e.ChatID, Text: textStart, Options: models.MessageOptions{Keyboard: keyboard}},
		},
	}
}

func (m *Machine) onCallback(state models.ConversationState, e models.CallbackEvent) Transition {
	actions := []models.Action{models.AckCallback{CallbackID: e.CallbackID}}

	if e.Data == models.CallbackStartFlow {
		actions = append(actions, models.EditText{
			ChatID:    e.ChatID,
			MessageID: e.MessageID,
			Text:      textChooseMines,
			Options:   models.MessageOptions{Keyboard: mineKeyboard()},
		})
		return Transition{Next: models.AwaitingMineCount{}, Actions: actions}
	}

	n, ok := models.ParseMineCallback(e.Data)
	if _, waiting := state.(models.AwaitingMineCount); !ok || !waiting {
		return Transition{Next: state, Actions: actions}
	}

	actions = append(actions,
		models.DeleteMessage{ChatID: e.ChatID, MessageID: e.MessageID},
		models.SendImage{
			ChatID:  e.ChatID,
			URL:     m.cfg.ServerSeedGuideURL,
			Caption: fmt.Sprintf(textServerSeedPrompt, n),
			Options: models.MessageOptions{HTML: true},
		},
	)

	return Transition{Next: models.AwaitingServerSeed{MineCount: n}, Actions: actions}
}

func (m *Machine) onText(ctx context.Context, state models.ConversationState, e models.TextEvent, now time.Time) Transition {
	switch st := state.(type) {
	case models.AwaitingServerSeed:
		next := models.AwaitingBetAmount{
			MineCount: st.MineCount,
			Seeds:     models.Seeds{Server: e.Text, Client: models.DefaultClientSeed},
		}
		actions := append(cleanupInput(e), models.SendImage{
			ChatID:  e.ChatID,
			URL:     m.cfg.BetAmountGuideURL,
			Caption: textBetPrompt,
			Options: models.MessageOptions{HTML: true},
		})
		return Transition{Next: next, Actions: actions}

	case models.AwaitingBetAmount:
		premium, err := m.gate.IsPremium(ctx, e.UserID, now)
		if err != nil {
			return m.fail(e, err)
		}

		if premium {
			actions, p := m.predict(ctx, e, st.MineCount, st.Seeds, e.Text, textGenerating, now)
			return Transition{Next: models.Idle{}, Actions: append(cleanupInput(e), actions...), Prediction: p}
		}

		next := models.AwaitingActivationKey{MineCount: st.MineCount, Seeds: st.Seeds, BetAmount: e.Text}
		actions := append(cleanupInput(e), models.SendText{
			ChatID:  e.ChatID,
			Text:    textActivationNeeded,
			Options: models.MessageOptions{HTML: true},
		})
		return Transition{Next: next, Actions: actions}

	case models.AwaitingActivationKey:
		result, err := m.gate.Activate(ctx, e.UserID, e.Text, now)
		if err != nil {
			return m.fail(e, err)
		}

		if !result.Granted() {
			keyboard := models.Keyboard{{{Label: labelBuy, URL: m.cfg.PurchaseURL}}}
			actions := append(cleanupInput(e), models.SendText{
				ChatID:  e.ChatID,
				Text:    textInvalidKey,
				Options: models.MessageOptions{HTML: true, Keyboard: keyboard},
			})
			return Transition{
				Next:    st,
				Actions: actions,
				Result:  result,
				Err:     &models.FlowError{Kind: models.ErrInvalidKey, Op: "activate"},
			}
		}

		loading := textGenerating
		if result == models.ActivationAdmin {
			loading = textAdminGenerating
		}

		actions, p := m.predict(ctx, e, st.MineCount, st.Seeds, st.BetAmount, loading, now)
		activation := &models.Activation{UserID: e.UserID, KeyName: models.NormalizeKey(e.Text), ActivatedAt: now}

		return Transition{
			Next:       models.Idle{},
			Actions:    append(cleanupInput(e), actions...),
			Prediction: p,
			Activation: activation,
			Result:     result,
		}

	default:
		return Transition{Next: state}
	}
}

// predict runs the sampler and builds the messages carrying the result.
func (m *Machine) predict(ctx context.Context, e models.TextEvent, mineCount int, seeds models.Seeds, bet, loading string, now time.Time) ([]models.Action, *models.Prediction) {
	nonce := m.nonce()
	placement := PlaceMines(seeds.Server, seeds.Client, nonce, mineCount)
	revealed := m.reveal(placement.SafeTiles)

	p := &models.Prediction{
		ID:          models.GeneratePredictionID(),
		UserID:      e.UserID,
		MineCount:   mineCount,
		ServerSeed:  seeds.Server,
		ClientSeed:  seeds.Client,
		Nonce:       nonce,
		Digest:      placement.Digest,
		SafeTiles:   placement.SafeTiles,
		Revealed:    revealed,
		BombsPlaced: placement.BombsPlaced(),
		BetAmount:   bet,
		CreatedAt:   now,
	}

	actions := []models.Action{
		models.SendText{ChatID: e.ChatID, Text: loading, Options: models.MessageOptions{HTML: true}, Transient: true},
	}

	caption := fmt.Sprintf(textPredictionReady, mineCount, nonce)

	var image []byte
	var err error
	if m.renderer != nil {
		image, err = m.renderer.Render(ctx, revealed)
	}
	if m.renderer == nil || err != nil {
		if err != nil {
			m.log.Warn(ctx, "image generation failed, sending text grid", "prediction_id", p.ID, "error", err)
		}
		actions = append(actions, models.SendText{
			ChatID:  e.ChatID,
			Text:    caption + "\n\n" + render.TextGrid(revealed),
			Options: models.MessageOptions{HTML: true},
		})
		return actions, p
	}

	actions = append(actions, models.SendImage{
		ChatID:  e.ChatID,
		Image:   image,
		Caption: caption,
		Options: models.MessageOptions{HTML: true},
	})

	return actions, p
}

// fail resets the flow and tells the user to start over.
func (m *Machine) fail(ev models.Event, err error) Transition {
	tr := Transition{Next: models.Idle{}, Err: err}
	if ev != nil && ev.Chat() != 0 {
		tr.Actions = []models.Action{models.SendText{ChatID: ev.Chat(), Text: textFailure}}
	}
	return tr
}

// cleanupInput removes the prompt the user answered and the answer itself.
func cleanupInput(e models.TextEvent) []models.Action {
	actions := make([]models.Action, 0, 3)
	if e.MessageID > 1 {
		actions = append(actions, models.DeleteMessage{ChatID: e.ChatID, MessageID: e.MessageID - 1})
	}
	return append(actions, models.DeleteMessage{ChatID: e.ChatID, MessageID: e.MessageID})
}

func mineKeyboard() models.Keyboard {
	rows := make(models.Keyboard, 0, models.MaxMines-models.MinMines+1)
	for n := models.MinMines; n <= models.MaxMines; n++ {
		rows = append(rows, []models.Button{{Label: strconv.Itoa(n), CallbackData: models.MineCallbackData(n)}})
	}
	return rows
}
