package game

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Frostie0/braina-game-server/internal/questions"
)

// Variant selects the rule set a room plays under.
type Variant string

const (
	VariantTrivia    Variant = "trivia"
	VariantTicTacToe Variant = "tictactoe"
)

// State is the room lifecycle state.
type State string

const (
	StateWaiting State = "waiting"
	StatePlaying State = "playing"
	StateEnded   State = "ended"
)

// Phase is the tic-tac-toe turn sub-state.
type Phase string

const (
	PhaseAwaitingMove   Phase = "awaiting_move"
	PhaseAwaitingAnswer Phase = "awaiting_answer"
	PhaseRoundOver      Phase = "round_over"
)

// InitialHearts is the life counter each tic-tac-toe player starts with.
const InitialHearts = 5

// Settings are fixed at room creation.
type Settings struct {
	MaxPlayers      int           `json:"maxPlayers" yaml:"max_players"`
	TimePerTurn     time.Duration `json:"timePerTurn" yaml:"time_per_turn"`
	TimePerQuestion time.Duration `json:"timePerQuestion" yaml:"time_per_question"`
	TotalQuestions  int           `json:"totalQuestions" yaml:"total_questions"`
}

// AnsweredQuestion is one entry in a player's append-only answer history.
type AnsweredQuestion struct {
	QuestionIndex int           `json:"questionIndex"`
	Answer        string        `json:"answer"`
	IsCorrect     bool          `json:"isCorrect"`
	TimeSpent     time.Duration `json:"timeSpent"`
}

// Player is a room member. The record persists across disconnects so score,
// hearts, and host role survive a rejoin; it is dropped only when the room
// itself is reaped.
type Player struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	ConnectionID string `json:"-"`
	IsConnected  bool   `json:"isConnected"`
	IsHost       bool   `json:"isHost"`

	// Trivia.
	Score int `json:"score"`

	// Tic-tac-toe.
	Symbol string `json:"symbol,omitempty"`
	Hearts int    `json:"hearts,omitempty"`

	Answered []AnsweredQuestion `json:"answeredQuestions"`
}

// TimeSpentTotal is the cumulative time across all recorded answers, used as
// the ranking tiebreaker.
func (p *Player) TimeSpentTotal() time.Duration {
	var total time.Duration
	for _, a := range p.Answered {
		total += a.TimeSpent
	}
	return total
}

// HasAnswered reports whether the player already has an entry for the given
// question index.
func (p *Player) HasAnswered(questionIndex int) bool {
	for _, a := range p.Answered {
		if a.QuestionIndex == questionIndex {
			return true
		}
	}
	return false
}

// pendingBinding ties an accepted tic-tac-toe move to the question that must
// be answered before the cell resolves. At most one exists per room.
type pendingBinding struct {
	CellIndex     int
	UserID        string
	QuestionIndex int
	BoundAt       time.Time
}

// Room is one game session. All fields are owned and mutated exclusively by
// the room's actor goroutine; nothing else writes them.
type Room struct {
	Code      string
	HostID    string
	Variant   Variant
	State     State
	Settings  Settings
	Questions []questions.Question
	Players   []*Player

	// Version counts committed transitions.
	Version uint64

	// Trivia.
	CurrentQuestionIndex int
	QuestionStart        time.Time

	// Tic-tac-toe.
	Board       [9]string
	CurrentTurn string
	Phase       Phase
	TurnStart   time.Time
	pending     *pendingBinding

	CreatedAt time.Time
	EndedAt   time.Time
	Winner    string

	frozen bool
}

// PlayerByID returns the member record for a user, or nil.
func (r *Room) PlayerByID(userID string) *Player {
	for _, p := range r.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// PlayerBySymbol returns the tic-tac-toe player holding the given mark.
func (r *Room) PlayerBySymbol(symbol string) *Player {
	for _, p := range r.Players {
		if p.Symbol == symbol {
			return p
		}
	}
	return nil
}

// ConnectedCount counts members currently attached to a live connection.
func (r *Room) ConnectedCount() int {
	n := 0
	for _, p := range r.Players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// minPlayers is the variant-specific minimum needed to start.
func (r *Room) minPlayers() int {
	if r.Variant == VariantTicTacToe {
		return 2
	}
	return 1
}

// commit records a completed transition. Every accepted-and-applied event
// bumps the version exactly once.
func (r *Room) commit() {
	r.Version++
}

// freeze stops the room fail-closed after an unreachable invariant
// violation. A frozen room rejects every further event.
func (r *Room) freeze(reason string) {
	r.frozen = true
	log.Error().
		Str("game_code", r.Code).
		Str("reason", reason).
		Msg("room frozen after invariant violation")
}
