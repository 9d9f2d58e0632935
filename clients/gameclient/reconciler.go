// Package gameclient implements the client side of the game engine's state
// contract: the server's snapshots and events are the only ground truth, and
// anything rendered locally before the server confirms it is a prediction
// that the next authoritative message overwrites.
package gameclient

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Frostie0/braina-game-server/internal/game"
)

// Prediction is an optimistic local change, rendered before the server has
// confirmed it. Predictions are cosmetic; they are never merged into the
// authoritative state.
type Prediction struct {
	CellIndex      int
	SelectedAnswer string
	MadeAt         time.Time
}

// Reconciler tracks the authoritative view of one room for one user. On
// reconnect the client re-joins with its persisted user ID and adopts the
// returned snapshot wholesale; no event replay is needed.
type Reconciler struct {
	UserID string

	state      game.Snapshot
	hasState   bool
	prediction *Prediction
}

// NewReconciler creates a reconciler for the given persistent user ID.
func NewReconciler(userID string) *Reconciler {
	return &Reconciler{UserID: userID}
}

// State returns the last authoritative snapshot.
func (rc *Reconciler) State() (game.Snapshot, bool) {
	return rc.state, rc.hasState
}

// Predict records an optimistic local change (e.g. highlighting a chosen
// option before the server confirms). It does not touch authoritative state.
func (rc *Reconciler) Predict(p Prediction) {
	rc.prediction = &p
}

// Prediction returns the live prediction, if one has not yet been overridden.
func (rc *Reconciler) Prediction() *Prediction {
	return rc.prediction
}

// Apply ingests one server event. Every authoritative message discards any
// outstanding prediction, confirmed or not: the server's view wins.
func (rc *Reconciler) Apply(event game.ServerEvent) error {
	defer func() { rc.prediction = nil }()

	switch event.Type {
	case game.EventSnapshot:
		var snap game.Snapshot
		if err := json.Unmarshal(event.Data, &snap); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		rc.state = snap
		rc.hasState = true

	case game.EventPlayerJoined:
		var p game.PlayerJoinedPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return fmt.Errorf("decode player_joined: %w", err)
		}
		rc.state.Players = p.Players

	case game.EventPlayerLeft:
		var p game.PlayerLeftPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return fmt.Errorf("decode player_left: %w", err)
		}
		rc.state.Players = p.Players

	case game.EventGameStarted:
		rc.state.State = game.StatePlaying

	case game.EventNewQuestion:
		var p game.NewQuestionPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return fmt.Errorf("decode new_question: %w", err)
		}
		rc.state.QuestionIndex = p.QuestionIndex
		rc.state.Question = &p.Question
		rc.state.QuestionStart = p.StartTime

	case game.EventTTTState:
		var p game.TTTStatePayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return fmt.Errorf("decode ttt_state: %w", err)
		}
		rc.state.Grid = p.Grid
		rc.state.CurrentTurn = p.CurrentTurn
		rc.state.Phase = p.Phase
		rc.state.TurnStart = p.TurnStart
		for i := range rc.state.Players {
			if h, ok := p.Hearts[rc.state.Players[i].UserID]; ok {
				rc.state.Players[i].Hearts = h
			}
			if s, ok := p.Symbols[rc.state.Players[i].UserID]; ok {
				rc.state.Players[i].Symbol = s
			}
		}

	case game.EventTTTGameOver:
		var p game.TTTGameOverPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return fmt.Errorf("decode ttt_gameover: %w", err)
		}
		rc.state.State = game.StateEnded
		rc.state.Winner = p.Winner

	case game.EventGameEnded:
		rc.state.State = game.StateEnded
	}

	return nil
}

// RemainingTime computes the displayed countdown from the server's recorded
// start timestamp, so client clock drift never double-counts. It is
// non-increasing within a turn and never negative.
func RemainingTime(turnStart time.Time, limit time.Duration, now time.Time) time.Duration {
	remaining := limit - now.Sub(turnStart)
	if remaining < 0 {
		return 0
	}
	return remaining
}
