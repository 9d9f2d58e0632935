package game

import (
	"math"
	"sort"
	"time"
)

// answerOutcome reports the result of one trivia answer intake.
type answerOutcome struct {
	QuestionIndex int
	Correct       bool
	Points        int
	BarrierMet    bool
}

// PlayerResult is one row of the final trivia ranking.
type PlayerResult struct {
	Rank      int           `json:"rank"`
	UserID    string        `json:"userId"`
	UserName  string        `json:"userName"`
	Score     int           `json:"score"`
	Correct   int           `json:"correctAnswers"`
	TimeSpent time.Duration `json:"timeSpent"`
}

// scoreFor awards points for a correct answer as a function of speed. A
// faster correct answer always scores more than a slower one; incorrect
// answers score zero.
func scoreFor(correct bool, elapsed, limit time.Duration) int {
	if !correct {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > limit {
		elapsed = limit
	}
	remaining := float64(limit-elapsed) / float64(limit)
	return 100 + int(math.Round(900*remaining))
}

// submitAnswer records a trivia answer exactly once per (player, question).
// A duplicate submission is rejected and changes nothing. Correctness and
// elapsed time are computed from server state only.
func (r *Room) submitAnswer(userID, answer string, now time.Time) (answerOutcome, error) {
	if r.Variant != VariantTrivia {
		return answerOutcome{}, ErrWrongVariant
	}
	if r.State == StateEnded {
		return answerOutcome{}, ErrGameEnded
	}
	if r.State != StatePlaying {
		return answerOutcome{}, ErrGameNotStarted
	}
	p := r.PlayerByID(userID)
	if p == nil {
		return answerOutcome{}, ErrUnknownPlayer
	}
	if p.HasAnswered(r.CurrentQuestionIndex) {
		return answerOutcome{}, ErrAlreadyAnswered
	}

	q := r.Questions[r.CurrentQuestionIndex]
	correct := q.IsCorrect(answer)
	elapsed := now.Sub(r.QuestionStart)
	if elapsed > r.Settings.TimePerQuestion {
		elapsed = r.Settings.TimePerQuestion
	}

	p.Answered = append(p.Answered, AnsweredQuestion{
		QuestionIndex: r.CurrentQuestionIndex,
		Answer:        answer,
		IsCorrect:     correct,
		TimeSpent:     elapsed,
	})
	p.Score += scoreFor(correct, elapsed, r.Settings.TimePerQuestion)
	r.commit()

	return answerOutcome{
		QuestionIndex: r.CurrentQuestionIndex,
		Correct:       correct,
		Points:        p.Score,
		BarrierMet:    r.barrierMet(),
	}, nil
}

// barrierMet reports whether every currently-connected player has answered
// the current question. Disconnected players never hold the barrier.
func (r *Room) barrierMet() bool {
	for _, p := range r.Players {
		if p.IsConnected && !p.HasAnswered(r.CurrentQuestionIndex) {
			return false
		}
	}
	return true
}

// questionCount is the number of questions this room will actually play.
func (r *Room) questionCount() int {
	n := r.Settings.TotalQuestions
	if n <= 0 || n > len(r.Questions) {
		n = len(r.Questions)
	}
	return n
}

// advanceQuestion moves to the next question, first recording a missed
// answer (incorrect, full time) for any connected player that never
// submitted one. Returns true when the question set is exhausted and the
// game has ended.
func (r *Room) advanceQuestion(now time.Time) bool {
	for _, p := range r.Players {
		if p.IsConnected && !p.HasAnswered(r.CurrentQuestionIndex) {
			p.Answered = append(p.Answered, AnsweredQuestion{
				QuestionIndex: r.CurrentQuestionIndex,
				Answer:        "",
				IsCorrect:     false,
				TimeSpent:     r.Settings.TimePerQuestion,
			})
		}
	}

	r.CurrentQuestionIndex++
	if r.CurrentQuestionIndex >= r.questionCount() {
		r.State = StateEnded
		r.commit()
		return true
	}
	r.QuestionStart = now
	r.commit()
	return false
}

// finalResults ranks players by descending score, ties broken by lower
// cumulative time spent.
func (r *Room) finalResults() []PlayerResult {
	results := make([]PlayerResult, 0, len(r.Players))
	for _, p := range r.Players {
		correct := 0
		for _, a := range p.Answered {
			if a.IsCorrect {
				correct++
			}
		}
		results = append(results, PlayerResult{
			UserID:    p.UserID,
			UserName:  p.UserName,
			Score:     p.Score,
			Correct:   correct,
			TimeSpent: p.TimeSpentTotal(),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].TimeSpent < results[j].TimeSpent
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
