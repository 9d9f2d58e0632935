package game

import (
	"math/rand"
	"time"
)

// winLines are the 8 board lines that decide a tic-tac-toe win.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

const (
	SymbolX = "X"
	SymbolO = "O"
)

func otherSymbol(s string) string {
	if s == SymbolX {
		return SymbolO
	}
	return SymbolX
}

// turnResolution describes the outcome of a resolved tic-tac-toe turn.
type turnResolution struct {
	UserID    string
	CellIndex int
	Correct   bool
	Placed    bool
	GameOver  bool
	Winner    string // empty on a draw
	Draw      bool
}

// assignSymbols gives the first two players their marks. Host plays X.
func (r *Room) assignSymbols() {
	for i, p := range r.Players {
		switch i {
		case 0:
			p.Symbol = SymbolX
		case 1:
			p.Symbol = SymbolO
		}
		p.Hearts = InitialHearts
	}
}

// requestMove validates a cell claim and binds a question to it. The move is
// accepted but not resolved: the cell stays empty and the turn does not pass
// until the bound question is answered or times out.
func (r *Room) requestMove(userID string, cell int, rng *rand.Rand, now time.Time) (int, error) {
	if r.Variant != VariantTicTacToe {
		return 0, ErrWrongVariant
	}
	if r.State != StatePlaying {
		return 0, ErrGameNotStarted
	}
	if r.Phase != PhaseAwaitingMove {
		return 0, ErrStaleEvent
	}
	p := r.PlayerByID(userID)
	if p == nil {
		return 0, ErrUnknownPlayer
	}
	if p.Symbol != r.CurrentTurn {
		return 0, ErrNotYourTurn
	}
	if cell < 0 || cell >= len(r.Board) {
		return 0, ErrInvalidCell
	}
	if r.Board[cell] != "" {
		return 0, ErrCellOccupied
	}

	// Uniform draw with replacement from the pool.
	qi := rng.Intn(len(r.Questions))
	r.pending = &pendingBinding{
		CellIndex:     cell,
		UserID:        userID,
		QuestionIndex: qi,
		BoundAt:       now,
	}
	r.Phase = PhaseAwaitingAnswer
	r.commit()
	return qi, nil
}

// answerMove resolves a pending move against a submitted answer. Correctness
// comes from the bound question's own answer key, never from the client.
func (r *Room) answerMove(userID string, cell int, answer string, now time.Time) (turnResolution, error) {
	if r.Variant != VariantTicTacToe {
		return turnResolution{}, ErrWrongVariant
	}
	if r.State != StatePlaying || r.Phase != PhaseAwaitingAnswer || r.pending == nil {
		return turnResolution{}, ErrNoPendingAnswer
	}
	if r.pending.UserID != userID || r.pending.CellIndex != cell {
		return turnResolution{}, ErrStaleEvent
	}

	q := r.Questions[r.pending.QuestionIndex]
	correct := q.IsCorrect(answer)

	p := r.PlayerByID(userID)
	p.Answered = append(p.Answered, AnsweredQuestion{
		QuestionIndex: r.pending.QuestionIndex,
		Answer:        answer,
		IsCorrect:     correct,
		TimeSpent:     now.Sub(r.pending.BoundAt),
	})

	return r.resolveTurn(p, correct), nil
}

// expirePendingAnswer treats a question timeout as an incorrect answer for
// the player holding the pending binding.
func (r *Room) expirePendingAnswer(now time.Time) turnResolution {
	p := r.PlayerByID(r.pending.UserID)
	p.Answered = append(p.Answered, AnsweredQuestion{
		QuestionIndex: r.pending.QuestionIndex,
		Answer:        "",
		IsCorrect:     false,
		TimeSpent:     r.Settings.TimePerQuestion,
	})
	return r.resolveTurn(p, false)
}

// expireTurn handles a turn window elapsing with no move chosen: the player
// on turn loses a heart and the turn passes, with no question bound.
func (r *Room) expireTurn() turnResolution {
	p := r.PlayerBySymbol(r.CurrentTurn)
	return r.resolveTurn(p, false)
}

// resolveTurn applies the outcome of one turn: placement and win/draw checks
// on a correct answer, heart loss otherwise. The turn symbol alternates on
// every resolution, and only on resolution.
func (r *Room) resolveTurn(p *Player, correct bool) turnResolution {
	res := turnResolution{UserID: p.UserID, Correct: correct}
	if r.pending != nil {
		res.CellIndex = r.pending.CellIndex
	} else {
		res.CellIndex = -1
	}

	if correct {
		cell := r.pending.CellIndex
		if r.Board[cell] != "" {
			// A pending binding can only exist for an empty cell.
			r.freeze("cell occupied while resolving pending move")
			return res
		}
		r.Board[cell] = p.Symbol
		res.Placed = true

		if r.winsOn(p.Symbol) {
			res.GameOver = true
			res.Winner = p.UserID
			r.endRound(p.UserID)
		} else if r.boardFull() {
			res.GameOver = true
			res.Draw = true
			r.endRound("")
		}
	} else {
		p.Hearts--
		if p.Hearts <= 0 {
			// Opponent wins immediately, empty cells or not.
			opp := r.PlayerBySymbol(otherSymbol(p.Symbol))
			res.GameOver = true
			res.Winner = opp.UserID
			r.endRound(opp.UserID)
		}
	}

	r.pending = nil
	if !res.GameOver {
		r.CurrentTurn = otherSymbol(r.CurrentTurn)
		r.Phase = PhaseAwaitingMove
	}
	r.commit()
	return res
}

func (r *Room) endRound(winner string) {
	r.Phase = PhaseRoundOver
	r.State = StateEnded
	r.Winner = winner
}

func (r *Room) winsOn(symbol string) bool {
	for _, line := range winLines {
		if r.Board[line[0]] == symbol && r.Board[line[1]] == symbol && r.Board[line[2]] == symbol {
			return true
		}
	}
	return false
}

func (r *Room) boardFull() bool {
	for _, c := range r.Board {
		if c == "" {
			return false
		}
	}
	return true
}
