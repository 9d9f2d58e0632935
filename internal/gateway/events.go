package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Frostie0/braina-game-server/internal/game"
)

// ClientEventType tags an inbound client event.
type ClientEventType string

const (
	ClientJoinGame     ClientEventType = "join_game"
	ClientStartGame    ClientEventType = "start_game"
	ClientSubmitAnswer ClientEventType = "submit_answer"
	ClientNextQuestion ClientEventType = "next_question"
	ClientTTTMove      ClientEventType = "tictactoe_move"
	ClientTTTAnswer    ClientEventType = "tictactoe_answer"
	ClientTTTTimeout   ClientEventType = "ttt_turn_timeout"
)

// ClientEvent is the tagged envelope every inbound message must use. The
// payload is validated here, at the boundary, before anything reaches a room.
type ClientEvent struct {
	Type ClientEventType `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound payloads. Fields like timeSpent and isCorrect are carried for the
// presentation layer's benefit but are advisory only: the room recomputes
// both from its own state.

type JoinGamePayload struct {
	GameCode string `json:"gameCode"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsHost   bool   `json:"isHost"`
}

type StartGamePayload struct {
	GameCode string `json:"gameCode"`
}

type SubmitAnswerPayload struct {
	GameCode  string  `json:"gameCode"`
	UserID    string  `json:"userId"`
	Answer    string  `json:"answer"`
	TimeSpent float64 `json:"timeSpent,omitempty"`
	IsCorrect *bool   `json:"isCorrect,omitempty"`
}

type NextQuestionPayload struct {
	GameCode string `json:"gameCode"`
}

type TTTMovePayload struct {
	GameCode string `json:"gameCode"`
	UserID   string `json:"userId"`
	Index    int    `json:"index"`
}

type TTTAnswerPayload struct {
	GameCode  string `json:"gameCode"`
	UserID    string `json:"userId"`
	Index     int    `json:"index"`
	Answer    string `json:"answer"`
	IsCorrect *bool  `json:"isCorrect,omitempty"`
}

type TTTTimeoutPayload struct {
	GameCode string `json:"gameCode"`
}

// dispatch validates one inbound message and routes it to the room actor.
// Failures are reported to the sender only; the rest of the room never sees
// them.
func (cm *ConnectionManager) dispatch(c *Connection, message []byte) {
	var event ClientEvent
	if err := json.Unmarshal(message, &event); err != nil {
		cm.sendError(c, "bad_request", "malformed event")
		return
	}

	if err := cm.route(c, event); err != nil {
		if errors.Is(err, game.ErrStaleEvent) {
			// Authority conflicts are discarded silently.
			log.Debug().
				Str("connection_id", c.ID).
				Str("event_type", string(event.Type)).
				Msg("discarding stale client event")
			return
		}
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Str("event_type", string(event.Type)).
			Msg("rejected client event")
		cm.sendError(c, errorCode(err), err.Error())
	}
}

func (cm *ConnectionManager) route(c *Connection, event ClientEvent) error {
	actor, err := cm.registry.Lookup(c.Code)
	if err != nil {
		return err
	}

	switch event.Type {
	case ClientJoinGame:
		var p JoinGamePayload
		if err := decode(event.Data, &p); err != nil {
			return err
		}
		if err := c.checkIdentity(p.GameCode, p.UserID); err != nil {
			return err
		}
		if p.UserName == "" {
			return fmt.Errorf("%w: userName is required", errValidation)
		}
		snap, err := actor.Join(p.UserID, p.UserName, p.IsHost, c.ID)
		if err != nil {
			return err
		}
		c.joined = true
		cm.SendToUser(c.Code, c.UserID, game.NewEvent(c.Code, game.EventSnapshot, time.Now(), snap))
		return nil

	case ClientStartGame:
		var p StartGamePayload
		if err := decode(event.Data, &p); err != nil {
			return err
		}
		if err := c.checkIdentity(p.GameCode, c.UserID); err != nil {
			return err
		}
		return actor.Start(c.UserID)

	case ClientSubmitAnswer:
		var p SubmitAnswerPayload
		if err := decode(event.Data, &p); err != nil {
			return err
		}
		if err := c.checkIdentity(p.GameCode, p.UserID); err != nil {
			return err
		}
		return actor.SubmitAnswer(p.UserID, p.Answer)

	case ClientNextQuestion:
		var p NextQuestionPayload
		if err := decode(event.Data, &p); err != nil {
			return err
		}
		if err := c.checkIdentity(p.GameCode, c.UserID); err != nil {
			return err
		}
		return actor.NextQuestion(c.UserID)

	case ClientTTTMove:
		var p TTTMovePayload
		if err := decode(event.Data, &p); err != nil {
			return err
		}
		if err := c.checkIdentity(p.GameCode, p.UserID); err != nil {
			return err
		}
		return actor.RequestMove(p.UserID, p.Index)

	case ClientTTTAnswer:
		var p TTTAnswerPayload
		if err := decode(event.Data, &p); err != nil {
			return err
		}
		if err := c.checkIdentity(p.GameCode, p.UserID); err != nil {
			return err
		}
		return actor.AnswerMove(p.UserID, p.Index, p.Answer)

	case ClientTTTTimeout:
		var p TTTTimeoutPayload
		if err := decode(event.Data, &p); err != nil {
			return err
		}
		if err := c.checkIdentity(p.GameCode, c.UserID); err != nil {
			return err
		}
		return actor.ReportTimeout(c.UserID)

	default:
		return fmt.Errorf("%w: unknown event type %q", errValidation, event.Type)
	}
}

var errValidation = errors.New("validation failed")

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing payload", errValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errValidation, err)
	}
	return nil
}

// checkIdentity rejects events whose payload claims a room or user other
// than the one this connection authenticated as.
func (c *Connection) checkIdentity(gameCode, userID string) error {
	if gameCode != c.Code {
		return fmt.Errorf("%w: event for room %q on a connection bound to %q", errValidation, gameCode, c.Code)
	}
	if userID != c.UserID {
		return fmt.Errorf("%w: event for user %q on a connection owned by %q", errValidation, userID, c.UserID)
	}
	return nil
}

func (cm *ConnectionManager) sendError(c *Connection, code, message string) {
	event := game.NewEvent(c.Code, game.EventError, time.Now(), game.ErrorPayload{
		Code:    code,
		Message: message,
	})
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// errorCode maps domain errors onto stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, game.ErrRoomFull):
		return "room_full"
	case errors.Is(err, game.ErrGameAlreadyStarted):
		return "game_already_started"
	case errors.Is(err, game.ErrNotHost):
		return "not_host"
	case errors.Is(err, game.ErrRoomFrozen):
		return "room_unavailable"
	default:
		return "validation_error"
	}
}
