package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"mines-predictor-bot/internal/logging"
	"mines-predictor-bot/internal/models"
)

const rateLimitActionUpdate = "update"

// Engine runs one inbound update end to end: it loads the sender's state,
// asks the Machine what to do, performs it and stores the result.
//
// Updates of the same user are not serialized. Two concurrent updates both
// read the same state and the later save wins.
type Engine struct {
	store     Store
	messenger Messenger
	machine   *Machine
	bootstrap *Bootstrapper
	log       logging.Logger

	limiter     RateLimiter
	rateLimit   int
	rateWindow  time.Duration
	broadcaster Broadcaster
	now         func() time.Time
}

type EngineOption func(*Engine)

// WithRateLimit drops updates beyond limit per user per window.
func WithRateLimit(l RateLimiter, limit int, window time.Duration) EngineOption {
	return func(e *Engine) {
		e.limiter = l
		e.rateLimit = limit
		e.rateWindow = window
	}
}

func WithBroadcaster(b Broadcaster) EngineOption {
	return func(e *Engine) {
		e.broadcaster = b
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(store Store, messenger Messenger, machine *Machine, bootstrap *Bootstrapper, log logging.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		messenger: messenger,
		machine:   machine,
		bootstrap: bootstrap,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleEvent never fails because of the messaging transport. It returns the
// flow error of the transition, or a persistence error when the next state
// could not be stored.
func (e *Engine) HandleEvent(ctx context.Context, ev models.Event) error {
	userID := ev.User()
	log := e.log.With("user_id", userID)

	if e.bootstrap != nil {
		if _, err := e.bootstrap.Ensure(ctx); err != nil {
			log.Error(ctx, "key bootstrap failed", "error", err)
		}
	}

	if !e.allow(ctx, log, ev) {
		return nil
	}

	state, err := e.store.LoadState(ctx, userID)
	if err != nil {
		log.Warn(ctx, "failed to load state, starting from idle", "error", err)
		state = models.Idle{}
	}

	tr := e.machine.Transition(ctx, state, ev, e.now())

	switch {
	case tr.Err == nil:
	case errors.Is(tr.Err, models.ErrInvalidKey):
		log.Info(ctx, "invalid activation key entered")
	default:
		log.Error(ctx, "flow failed", "kind", models.ErrorKind(tr.Err), "error", tr.Err)
	}

	e.dispatch(ctx, log, tr.Actions)
	e.record(ctx, log, tr)

	if err := e.store.SaveState(ctx, userID, tr.Next); err != nil {
		log.Error(ctx, "failed to save state", "step", tr.Next.Step(), "error", err)
		if _, idle := tr.Next.(models.Idle); !idle {
			if err := e.store.SaveState(ctx, userID, models.Idle{}); err != nil {
				log.Error(ctx, "failed to reset state to idle", "error", err)
			}
		}
		return models.PersistenceError("save state", err)
	}

	if tr.Err != nil && !errors.Is(tr.Err, models.ErrInvalidKey) {
		return tr.Err
	}
	return nil
}

func (e *Engine) allow(ctx context.Context, log logging.Logger, ev models.Event) bool {
	if e.limiter == nil || e.rateLimit <= 0 {
		return true
	}

	subject := strconv.FormatInt(ev.User(), 10)
	allowed, err := e.limiter.CheckRateLimit(ctx, subject, rateLimitActionUpdate, e.rateLimit, e.rateWindow)
	if err != nil {
		log.Warn(ctx, "rate limit check failed", "error", err)
		return true
	}
	if allowed {
		return true
	}

	log.Warn(ctx, "update rate limit exceeded")
	if cb, ok := ev.(models.CallbackEvent); ok {
		if err := e.messenger.AcknowledgeCallback(ctx, cb.CallbackID); err != nil {
			log.Debug(ctx, "failed to acknowledge dropped callback", "error", err)
		}
	}
	return false
}

// dispatch delivers actions in order. Transient messages are removed once the
// rest has been sent.
func (e *Engine) dispatch(ctx context.Context, log logging.Logger, actions []models.Action) {
	type sent struct {
		chatID    int64
		messageID int
	}
	var transient []sent

	for _, a := range actions {
		var err error

		switch a := a.(type) {
		case models.SendText:
			var id int
			id, err = e.messenger.SendText(ctx, a.ChatID, a.Text, a.Options)
			if err == nil && a.Transient {
				transient = append(transient, sent{a.ChatID, id})
			}
		case models.SendImage:
			_, err = e.messenger.SendImage(ctx, a.ChatID, a)
		case models.EditText:
			err = e.messenger.EditText(ctx, a.ChatID, a.MessageID, a.Text, a.Options)
		case models.DeleteMessage:
			// Old or already removed messages cannot be deleted; that is expected.
			if err := e.messenger.DeleteMessage(ctx, a.ChatID, a.MessageID); err != nil {
				log.Debug(ctx, "delete message failed", "message_id", a.MessageID, "error", err)
			}
		case models.AckCallback:
			err = e.messenger.AcknowledgeCallback(ctx, a.CallbackID)
		}

		if err != nil {
			log.Warn(ctx, "failed to deliver action", "error", models.TransportError("dispatch", err))
		}
	}

	for _, m := range transient {
		if err := e.messenger.DeleteMessage(ctx, m.chatID, m.messageID); err != nil {
			log.Debug(ctx, "failed to remove transient message", "message_id", m.messageID, "error", err)
		}
	}
}

func (e *Engine) record(ctx context.Context, log logging.Logger, tr Transition) {
	if tr.Prediction != nil {
		if err := e.store.RecordPrediction(ctx, tr.Prediction); err != nil {
			log.Warn(ctx, "failed to record prediction", "prediction_id", tr.Prediction.ID, "error", err)
		}
		log.Info(ctx, "prediction issued",
			"prediction_id", tr.Prediction.ID,
			"mine_count", tr.Prediction.MineCount,
			"bombs_placed", tr.Prediction.BombsPlaced)
		if e.broadcaster != nil {
			e.broadcaster.BroadcastPrediction(tr.Prediction)
		}
	}

	if tr.Activation != nil {
		log.Info(ctx, "key activated", "key", tr.Activation.KeyName, "result", tr.Result.String())
		if e.broadcaster != nil {
			e.broadcaster.BroadcastActivation(tr.Activation, tr.Result)
		}
	}
}
