package services

import "mines-predictor-bot/internal/models"

// Broadcaster pushes flow events to live admin subscribers.
type Broadcaster interface {
	BroadcastPrediction(p *models.Prediction)
	BroadcastActivation(a *models.Activation, result models.ActivationResult)
}
