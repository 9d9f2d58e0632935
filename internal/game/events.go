package game

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventType tags an outbound server event.
type EventType string

const (
	EventPlayerJoined    EventType = "player_joined"
	EventPlayerLeft      EventType = "player_left"
	EventGameStarted     EventType = "game_started"
	EventSnapshot        EventType = "snapshot"
	EventNewQuestion     EventType = "new_question"
	EventAnswerSubmitted EventType = "answer_submitted"
	EventGameEnded       EventType = "game_ended"
	EventTTTState        EventType = "ttt_state"
	EventTTTQuestion     EventType = "ttt_question"
	EventTTTGameOver     EventType = "ttt_gameover"
	EventError           EventType = "error"
)

// ServerEvent is the envelope for every message the engine emits. Data holds
// the type-specific payload.
type ServerEvent struct {
	ID        string          `json:"id"`
	GameCode  string          `json:"gameCode"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent builds an envelope, marshalling the payload. A payload that fails
// to marshal is a programming error; the event is emitted with empty data so
// the stream keeps flowing.
func NewEvent(code string, typ EventType, now time.Time, payload any) ServerEvent {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to marshal event payload")
		data = []byte("{}")
	}
	return ServerEvent{
		ID:        uuid.New().String(),
		GameCode:  code,
		Type:      typ,
		Timestamp: now,
		Data:      data,
	}
}

// Broadcaster delivers committed events to connected clients. Implemented by
// the gateway; delivery happens after commit and must not block the room's
// event loop.
type Broadcaster interface {
	Broadcast(code string, event ServerEvent)
	SendToUser(code, userID string, event ServerEvent)
}

// NopBroadcaster discards events; used in tests and tooling.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(string, ServerEvent)          {}
func (NopBroadcaster) SendToUser(string, string, ServerEvent) {}

// QuestionView is a question as shown to clients: the answer key and
// explanation stay on the server until the game ends.
type QuestionView struct {
	Type    string            `json:"type"`
	Prompt  string            `json:"question"`
	Options map[string]string `json:"options"`
}

// PlayerView is the public slice of a player record.
type PlayerView struct {
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	IsConnected bool   `json:"isConnected"`
	IsHost      bool   `json:"isHost"`
	Score       int    `json:"score"`
	Symbol      string `json:"symbol,omitempty"`
	Hearts      int    `json:"hearts,omitempty"`
}

// Payloads.

type PlayerJoinedPayload struct {
	UserID  string       `json:"userId"`
	Players []PlayerView `json:"players"`
}

type PlayerLeftPayload struct {
	UserID  string       `json:"userId"`
	Players []PlayerView `json:"players"`
}

type GameStartedPayload struct {
	Variant   Variant   `json:"variant"`
	StartedAt time.Time `json:"startedAt"`
}

type NewQuestionPayload struct {
	QuestionIndex  int          `json:"questionIndex"`
	TotalQuestions int          `json:"totalQuestions"`
	Question       QuestionView `json:"question"`
	StartTime      time.Time    `json:"startTime"`
	TimeLimitSec   int          `json:"timeLimitSec"`
}

type AnswerSubmittedPayload struct {
	UserID        string `json:"userId"`
	QuestionIndex int    `json:"questionIndex"`
	Answered      int    `json:"answered"`
	Connected     int    `json:"connected"`
}

type GameEndedPayload struct {
	Results []PlayerResult `json:"results"`
	EndedAt time.Time      `json:"endedAt"`
}

type TTTStatePayload struct {
	Grid         []string          `json:"grid"`
	CurrentTurn  string            `json:"currentTurn"`
	Phase        Phase             `json:"phase"`
	Hearts       map[string]int    `json:"hearts"`
	Symbols      map[string]string `json:"symbols"`
	TurnStart    time.Time         `json:"turnStart"`
	TimeLimitSec int               `json:"timeLimitSec"`
}

type TTTQuestionPayload struct {
	CellIndex    int          `json:"index"`
	UserID       string       `json:"userId"`
	Question     QuestionView `json:"question"`
	BoundAt      time.Time    `json:"boundAt"`
	TimeLimitSec int          `json:"timeLimitSec"`
}

type TTTGameOverPayload struct {
	Winner string `json:"winner"`
	Draw   bool   `json:"draw"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
