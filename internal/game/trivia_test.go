package game

import (
	"testing"
	"time"
)

func newTriviaRoom(playerCount int) *Room {
	r := &Room{
		Code:    "QZ99",
		HostID:  "p1",
		Variant: VariantTrivia,
		State:   StatePlaying,
		Settings: Settings{
			MaxPlayers:      8,
			TimePerQuestion: 20 * time.Second,
			TotalQuestions:  3,
		},
		Questions:     testQuestions(3),
		QuestionStart: time.Unix(1000, 0),
	}
	names := []string{"Ana", "Ben", "Cleo", "Dev"}
	ids := []string{"p1", "p2", "p3", "p4"}
	for i := 0; i < playerCount; i++ {
		r.Players = append(r.Players, &Player{
			UserID:      ids[i],
			UserName:    names[i],
			IsConnected: true,
			IsHost:      i == 0,
		})
	}
	return r
}

func TestFasterCorrectAnswerScoresStrictlyMore(t *testing.T) {
	limit := 20 * time.Second

	fast := scoreFor(true, 2*time.Second, limit)
	slow := scoreFor(true, 15*time.Second, limit)
	if fast <= slow {
		t.Fatalf("expected faster answer to score more: fast=%d slow=%d", fast, slow)
	}
	if got := scoreFor(false, time.Second, limit); got != 0 {
		t.Fatalf("incorrect answer must score zero, got %d", got)
	}
	if atLimit := scoreFor(true, limit, limit); atLimit != 100 {
		t.Fatalf("correct answer at the limit should score the floor, got %d", atLimit)
	}
	// Elapsed beyond the limit clamps rather than going negative.
	if over := scoreFor(true, limit+time.Minute, limit); over != 100 {
		t.Fatalf("over-limit answer should clamp to the floor, got %d", over)
	}
}

func TestSubmitAnswerScoresExactlyOnce(t *testing.T) {
	r := newTriviaRoom(2)
	now := r.QuestionStart.Add(3 * time.Second)

	outcome, err := r.submitAnswer("p1", "a", now)
	if err != nil {
		t.Fatalf("submitAnswer: %v", err)
	}
	if !outcome.Correct {
		t.Fatal("expected a correct outcome")
	}
	score := r.PlayerByID("p1").Score
	if score == 0 {
		t.Fatal("expected a nonzero score for a correct answer")
	}

	// A resubmission for the same (player, question) is rejected and
	// changes nothing.
	if _, err := r.submitAnswer("p1", "b", now.Add(time.Second)); err != ErrAlreadyAnswered {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
	if r.PlayerByID("p1").Score != score {
		t.Fatalf("score changed on duplicate submission: %d -> %d", score, r.PlayerByID("p1").Score)
	}
	if len(r.PlayerByID("p1").Answered) != 1 {
		t.Fatalf("expected exactly one answer record, got %d", len(r.PlayerByID("p1").Answered))
	}
}

func TestDisconnectedPlayerNeverBlocksBarrier(t *testing.T) {
	r := newTriviaRoom(3)
	now := r.QuestionStart.Add(2 * time.Second)

	r.PlayerByID("p3").IsConnected = false

	if _, err := r.submitAnswer("p1", "a", now); err != nil {
		t.Fatalf("submitAnswer p1: %v", err)
	}
	outcome, err := r.submitAnswer("p2", "b", now)
	if err != nil {
		t.Fatalf("submitAnswer p2: %v", err)
	}
	if !outcome.BarrierMet {
		t.Fatal("barrier should be met once all connected players answered")
	}
}

func TestAdvanceRecordsMissForSilentConnectedPlayer(t *testing.T) {
	r := newTriviaRoom(2)
	now := r.QuestionStart.Add(2 * time.Second)

	if _, err := r.submitAnswer("p1", "a", now); err != nil {
		t.Fatalf("submitAnswer: %v", err)
	}
	r.advanceQuestion(r.QuestionStart.Add(r.Settings.TimePerQuestion))

	p2 := r.PlayerByID("p2")
	if len(p2.Answered) != 1 {
		t.Fatalf("expected a recorded miss, got %d records", len(p2.Answered))
	}
	miss := p2.Answered[0]
	if miss.IsCorrect {
		t.Fatal("a miss must be recorded as incorrect")
	}
	if miss.TimeSpent != r.Settings.TimePerQuestion {
		t.Fatalf("expected miss at the configured max time, got %v", miss.TimeSpent)
	}
	if r.CurrentQuestionIndex != 1 {
		t.Fatalf("expected question index 1, got %d", r.CurrentQuestionIndex)
	}
}

func TestGameEndsAfterFinalQuestion(t *testing.T) {
	r := newTriviaRoom(2)
	now := r.QuestionStart

	for i := 0; i < r.questionCount(); i++ {
		if done := r.advanceQuestion(now.Add(time.Duration(i) * time.Minute)); done != (i == r.questionCount()-1) {
			t.Fatalf("advanceQuestion(%d) returned %v", i, done)
		}
	}
	if r.State != StateEnded {
		t.Fatalf("expected ended state, got %q", r.State)
	}
}

func TestFinalRankingBreaksTiesByTimeSpent(t *testing.T) {
	r := newTriviaRoom(3)

	r.PlayerByID("p1").Score = 800
	r.PlayerByID("p1").Answered = []AnsweredQuestion{{QuestionIndex: 0, IsCorrect: true, TimeSpent: 9 * time.Second}}
	r.PlayerByID("p2").Score = 800
	r.PlayerByID("p2").Answered = []AnsweredQuestion{{QuestionIndex: 0, IsCorrect: true, TimeSpent: 4 * time.Second}}
	r.PlayerByID("p3").Score = 950
	r.PlayerByID("p3").Answered = []AnsweredQuestion{{QuestionIndex: 0, IsCorrect: true, TimeSpent: 2 * time.Second}}

	results := r.finalResults()

	want := []string{"p3", "p2", "p1"}
	for i, userID := range want {
		if results[i].UserID != userID {
			t.Fatalf("rank %d: expected %s, got %s", i+1, userID, results[i].UserID)
		}
		if results[i].Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, results[i].Rank)
		}
	}
}
