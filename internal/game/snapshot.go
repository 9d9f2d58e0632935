package game

import "time"

// SettingsView exposes room settings in wire units.
type SettingsView struct {
	MaxPlayers         int `json:"maxPlayers"`
	TimePerTurnSec     int `json:"timePerTurnSec"`
	TimePerQuestionSec int `json:"timePerQuestionSec"`
	TotalQuestions     int `json:"totalQuestions"`
}

// Snapshot is the authoritative full state of a room as sent to clients. A
// reconnecting client resumes from it directly; no event replay is needed.
// Question answer keys are never included.
type Snapshot struct {
	Code     string       `json:"gameCode"`
	HostID   string       `json:"hostId"`
	Variant  Variant      `json:"variant"`
	State    State        `json:"state"`
	Version  uint64       `json:"version"`
	Players  []PlayerView `json:"players"`
	Settings SettingsView `json:"settings"`

	QuestionIndex int           `json:"questionIndex"`
	Question      *QuestionView `json:"question,omitempty"`
	QuestionStart time.Time     `json:"questionStart,omitempty"`

	Grid        []string  `json:"grid,omitempty"`
	CurrentTurn string    `json:"currentTurn,omitempty"`
	Phase       Phase     `json:"phase,omitempty"`
	TurnStart   time.Time `json:"turnStart,omitempty"`
	PendingCell *int      `json:"pendingCell,omitempty"`
	PendingUser string    `json:"pendingUser,omitempty"`

	Winner    string    `json:"winner,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *Room) playerViews() []PlayerView {
	views := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		views = append(views, PlayerView{
			UserID:      p.UserID,
			UserName:    p.UserName,
			IsConnected: p.IsConnected,
			IsHost:      p.IsHost,
			Score:       p.Score,
			Symbol:      p.Symbol,
			Hearts:      p.Hearts,
		})
	}
	return views
}

// BuildSnapshot renders the room's current authoritative state.
func (r *Room) BuildSnapshot() Snapshot {
	snap := Snapshot{
		Code:    r.Code,
		HostID:  r.HostID,
		Variant: r.Variant,
		State:   r.State,
		Version: r.Version,
		Players: r.playerViews(),
		Settings: SettingsView{
			MaxPlayers:         r.Settings.MaxPlayers,
			TimePerTurnSec:     int(r.Settings.TimePerTurn / time.Second),
			TimePerQuestionSec: int(r.Settings.TimePerQuestion / time.Second),
			TotalQuestions:     r.questionCount(),
		},
		QuestionIndex: r.CurrentQuestionIndex,
		Winner:        r.Winner,
		CreatedAt:     r.CreatedAt,
	}

	switch r.Variant {
	case VariantTrivia:
		if r.State == StatePlaying {
			q := r.Questions[r.CurrentQuestionIndex]
			snap.Question = &QuestionView{Type: q.Type, Prompt: q.Prompt, Options: q.Options}
			snap.QuestionStart = r.QuestionStart
		}
	case VariantTicTacToe:
		// Copied: snapshots leave the actor goroutine and are marshaled
		// elsewhere while the board keeps changing.
		snap.Grid = append([]string(nil), r.Board[:]...)
		snap.CurrentTurn = r.CurrentTurn
		snap.Phase = r.Phase
		snap.TurnStart = r.TurnStart
		if r.pending != nil {
			cell := r.pending.CellIndex
			snap.PendingCell = &cell
			snap.PendingUser = r.pending.UserID
			q := r.Questions[r.pending.QuestionIndex]
			snap.Question = &QuestionView{Type: q.Type, Prompt: q.Prompt, Options: q.Options}
			snap.QuestionStart = r.pending.BoundAt
		}
	}
	return snap
}

// clone deep-copies a room. Restoring from a clone and replaying the same
// events must land in the same state as live continuation; the actor tests
// hold the engine to that.
func (r *Room) clone() *Room {
	cp := *r
	cp.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		pc := *p
		pc.Answered = append([]AnsweredQuestion(nil), p.Answered...)
		cp.Players[i] = &pc
	}
	cp.Questions = append(r.Questions[:0:0], r.Questions...)
	if r.pending != nil {
		pb := *r.pending
		cp.pending = &pb
	}
	return &cp
}
