package game

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []ServerEvent
}

func (b *recordingBroadcaster) Broadcast(code string, e ServerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBroadcaster) SendToUser(code, userID string, e ServerEvent) {
	b.Broadcast(code, e)
}

func (b *recordingBroadcaster) byType(t EventType) []ServerEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []ServerEvent
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type captureSink struct {
	mu      sync.Mutex
	results []Result
}

func (s *captureSink) Record(ctx context.Context, result Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func newWaitingRoom(variant Variant) *Room {
	maxPlayers := 8
	if variant == VariantTicTacToe {
		maxPlayers = 2
	}
	return &Room{
		Code:    "GM42",
		HostID:  "p1",
		Variant: variant,
		State:   StateWaiting,
		Settings: Settings{
			MaxPlayers:      maxPlayers,
			TimePerTurn:     30 * time.Second,
			TimePerQuestion: 20 * time.Second,
			TotalQuestions:  2,
		},
		Questions: testQuestions(3),
		Phase:     PhaseAwaitingMove,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestActorTriviaFullGame(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &recordingBroadcaster{}
	sink := &captureSink{}
	a := newActor(newWaitingRoom(VariantTrivia), fc, rand.New(rand.NewSource(1)), rec, sink)
	defer a.Close()

	if _, err := a.Join("p1", "Ana", true, "c1"); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if _, err := a.Join("p2", "Ben", false, "c2"); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	if err := a.Start("p1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Question 0: both answer, barrier met, auto-advance.
	if err := a.SubmitAnswer("p1", "a"); err != nil {
		t.Fatalf("p1 answer: %v", err)
	}
	if err := a.SubmitAnswer("p2", "b"); err != nil {
		t.Fatalf("p2 answer: %v", err)
	}
	snap := a.Snapshot()
	if snap.QuestionIndex != 1 {
		t.Fatalf("expected auto-advance to question 1, got %d", snap.QuestionIndex)
	}

	// Question 1 is the last: answering it ends the game.
	if err := a.SubmitAnswer("p1", "a"); err != nil {
		t.Fatalf("p1 answer q1: %v", err)
	}
	if err := a.SubmitAnswer("p2", "a"); err != nil {
		t.Fatalf("p2 answer q1: %v", err)
	}

	snap = a.Snapshot()
	if snap.State != StateEnded {
		t.Fatalf("expected ended game, got %q", snap.State)
	}
	if got := len(rec.byType(EventGameEnded)); got != 1 {
		t.Fatalf("expected exactly one game_ended broadcast, got %d", got)
	}

	// Terminal summary reaches the sink exactly once.
	waitFor(t, "sink record", func() bool { return sink.count() == 1 })
	result := sink.results[0]
	if result.Results[0].UserID != "p1" {
		t.Fatalf("expected p1 ranked first, got %s", result.Results[0].UserID)
	}
}

func TestActorQuestionTimerAdvancesTrivia(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &recordingBroadcaster{}
	a := newActor(newWaitingRoom(VariantTrivia), fc, rand.New(rand.NewSource(1)), rec, NopSink{})
	defer a.Close()

	if _, err := a.Join("p1", "Ana", true, "c1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := a.Join("p2", "Ben", false, "c2"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := a.Start("p1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	fc.Advance(21 * time.Second)

	waitFor(t, "question to advance on timeout", func() bool {
		return a.Snapshot().QuestionIndex == 1
	})
	if got := a.Snapshot().State; got != StatePlaying {
		t.Fatalf("expected the game to continue after a timeout, got %q", got)
	}
}

func TestActorTurnTimeoutPassesTurn(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &recordingBroadcaster{}
	a := newActor(newWaitingRoom(VariantTicTacToe), fc, rand.New(rand.NewSource(1)), rec, NopSink{})
	defer a.Close()

	if _, err := a.Join("p1", "Ana", true, "c1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := a.Join("p2", "Ben", false, "c2"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := a.Start("p1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	fc.Advance(31 * time.Second)

	waitFor(t, "turn to pass on timeout", func() bool {
		snap := a.Snapshot()
		if snap.CurrentTurn != SymbolO {
			return false
		}
		for _, p := range snap.Players {
			if p.UserID == "p1" && p.Hearts == InitialHearts-1 {
				return true
			}
		}
		return false
	})
}

// newSyncActor builds an actor whose loop is driven by the test itself, so
// timer-versus-event interleavings can be pinned down exactly.
func newSyncActor(r *Room, clock clockwork.Clock) *Actor {
	return &Actor{
		room:        r,
		inbox:       make(chan command, 64),
		clock:       clock,
		rng:         rand.New(rand.NewSource(1)),
		broadcaster: &recordingBroadcaster{},
		sink:        NopSink{},
		lastActive:  clock.Now(),
		done:        make(chan struct{}),
	}
}

func do(a *Actor, cmd command) cmdReply {
	cmd.reply = make(chan cmdReply, 1)
	a.handle(cmd)
	return <-cmd.reply
}

func TestStaleTimerFiringIsDiscarded(t *testing.T) {
	fc := clockwork.NewFakeClock()
	a := newSyncActor(newWaitingRoom(VariantTicTacToe), fc)
	defer a.Close()

	do(a, command{kind: cmdJoin, userID: "p1", userName: "Ana", connectionID: "c1"})
	do(a, command{kind: cmdJoin, userID: "p2", userName: "Ben", connectionID: "c2"})
	if rep := do(a, command{kind: cmdStart, userID: "p1"}); rep.err != nil {
		t.Fatalf("start: %v", rep.err)
	}
	turnTimerGen := a.timerGen

	// The move replaces the turn timer with the question timer.
	if rep := do(a, command{kind: cmdMove, userID: "p1", cell: 4}); rep.err != nil {
		t.Fatalf("move: %v", rep.err)
	}
	heartsBefore := a.room.PlayerByID("p1").Hearts

	// The old firing arrives late; it must be inert.
	do(a, command{kind: cmdTimerExpired, timerGen: turnTimerGen})

	if a.room.Phase != PhaseAwaitingAnswer || a.room.pending == nil {
		t.Fatalf("stale timer disturbed the pending move: phase=%q", a.room.Phase)
	}
	if a.room.PlayerByID("p1").Hearts != heartsBefore {
		t.Fatal("stale timer cost a heart")
	}

	// A current firing resolves the pending question as incorrect.
	do(a, command{kind: cmdTimerExpired, timerGen: a.timerGen})
	if a.room.PlayerByID("p1").Hearts != heartsBefore-1 {
		t.Fatal("current timer firing should have resolved the pending answer")
	}
	if a.room.CurrentTurn != SymbolO {
		t.Fatalf("expected turn to pass to O, got %q", a.room.CurrentTurn)
	}
}

func TestQuestionTimerFiresDespitePartialAnswers(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := &recordingBroadcaster{}
	a := newActor(newWaitingRoom(VariantTrivia), fc, rand.New(rand.NewSource(1)), rec, NopSink{})
	defer a.Close()

	if _, err := a.Join("p1", "Ana", true, "c1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := a.Join("p2", "Ben", false, "c2"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := a.Start("p1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// One answer commits state but leaves the barrier unmet; the question
	// window keeps running for the silent player.
	if err := a.SubmitAnswer("p1", "a"); err != nil {
		t.Fatalf("p1 answer: %v", err)
	}

	fc.Advance(21 * time.Second)

	waitFor(t, "question to advance after a partial-answer timeout", func() bool {
		return a.Snapshot().QuestionIndex == 1
	})
	if got := a.Snapshot().State; got != StatePlaying {
		t.Fatalf("expected the game to continue, got %q", got)
	}
}

func TestTurnTimerSurvivesReconnect(t *testing.T) {
	fc := clockwork.NewFakeClock()
	a := newSyncActor(newWaitingRoom(VariantTicTacToe), fc)
	defer a.Close()

	do(a, command{kind: cmdJoin, userID: "p1", userName: "Ana", connectionID: "c1"})
	do(a, command{kind: cmdJoin, userID: "p2", userName: "Ben", connectionID: "c2"})
	do(a, command{kind: cmdStart, userID: "p1"})
	armedGen := a.timerGen

	// A disconnect and reconnect commit new state mid-turn but must not
	// disarm the running turn timer.
	do(a, command{kind: cmdDisconnect, userID: "p2", connectionID: "c2"})
	do(a, command{kind: cmdJoin, userID: "p2", userName: "Ben", connectionID: "c3"})
	if a.timerGen != armedGen {
		t.Fatalf("unrelated commits re-armed the timer: gen %d -> %d", armedGen, a.timerGen)
	}

	do(a, command{kind: cmdTimerExpired, timerGen: armedGen})

	if a.room.PlayerByID("p1").Hearts != InitialHearts-1 {
		t.Fatalf("turn timeout not honored after reconnect: hearts=%d", a.room.PlayerByID("p1").Hearts)
	}
	if a.room.CurrentTurn != SymbolO {
		t.Fatalf("expected turn to pass to O, got %q", a.room.CurrentTurn)
	}
}

func TestActorCapacityNeverExceeded(t *testing.T) {
	fc := clockwork.NewFakeClock()
	a := newSyncActor(newWaitingRoom(VariantTicTacToe), fc)
	defer a.Close()

	do(a, command{kind: cmdJoin, userID: "p1", userName: "Ana", connectionID: "c1"})
	do(a, command{kind: cmdJoin, userID: "p2", userName: "Ben", connectionID: "c2"})

	if rep := do(a, command{kind: cmdJoin, userID: "p3", userName: "Cleo", connectionID: "c3"}); rep.err != ErrRoomFull {
		t.Fatalf("expected ErrRoomFull, got %v", rep.err)
	}

	// A member leaving does not open the seat: the record is retained for
	// rejoin, and a stranger still cannot take it.
	do(a, command{kind: cmdDisconnect, userID: "p2", connectionID: "c2"})
	if rep := do(a, command{kind: cmdJoin, userID: "p3", userName: "Cleo", connectionID: "c3"}); rep.err != ErrRoomFull {
		t.Fatalf("expected ErrRoomFull after disconnect, got %v", rep.err)
	}

	// The original member reconnects with full state.
	rep := do(a, command{kind: cmdJoin, userID: "p2", userName: "Ben", connectionID: "c9"})
	if rep.err != nil {
		t.Fatalf("reconnect: %v", rep.err)
	}
	if a.room.ConnectedCount() > a.room.Settings.MaxPlayers {
		t.Fatal("connected players exceed maxPlayers")
	}
	if a.room.PlayerByID("p2").ConnectionID != "c9" {
		t.Fatal("reconnect did not replace the connection id")
	}
}

func TestReconnectionMidGameReturnsFullSnapshot(t *testing.T) {
	fc := clockwork.NewFakeClock()
	a := newSyncActor(newWaitingRoom(VariantTicTacToe), fc)
	defer a.Close()

	do(a, command{kind: cmdJoin, userID: "p1", userName: "Ana", connectionID: "c1"})
	do(a, command{kind: cmdJoin, userID: "p2", userName: "Ben", connectionID: "c2"})
	do(a, command{kind: cmdStart, userID: "p1"})
	do(a, command{kind: cmdMove, userID: "p1", cell: 4})
	do(a, command{kind: cmdMoveAnswer, userID: "p1", cell: 4, answer: "a"})

	do(a, command{kind: cmdDisconnect, userID: "p2", connectionID: "c2"})

	// A new user cannot join mid-game.
	if rep := do(a, command{kind: cmdJoin, userID: "px", userName: "Mallory", connectionID: "cx"}); rep.err != ErrGameAlreadyStarted {
		t.Fatalf("expected ErrGameAlreadyStarted, got %v", rep.err)
	}

	rep := do(a, command{kind: cmdJoin, userID: "p2", userName: "Ben", connectionID: "c3"})
	if rep.err != nil {
		t.Fatalf("reconnect: %v", rep.err)
	}
	if rep.snap.Grid[4] != SymbolX {
		t.Fatalf("snapshot missing board state, grid[4]=%q", rep.snap.Grid[4])
	}
	if rep.snap.CurrentTurn != SymbolO {
		t.Fatalf("snapshot missing turn state: %q", rep.snap.CurrentTurn)
	}
	if rep.snap.State != StatePlaying {
		t.Fatalf("expected playing state in snapshot, got %q", rep.snap.State)
	}
}

func TestDisconnectReleasesTriviaBarrier(t *testing.T) {
	fc := clockwork.NewFakeClock()
	a := newSyncActor(newWaitingRoom(VariantTrivia), fc)
	defer a.Close()

	do(a, command{kind: cmdJoin, userID: "p1", userName: "Ana", connectionID: "c1"})
	do(a, command{kind: cmdJoin, userID: "p2", userName: "Ben", connectionID: "c2"})
	do(a, command{kind: cmdJoin, userID: "p3", userName: "Cleo", connectionID: "c3"})
	do(a, command{kind: cmdStart, userID: "p1"})

	do(a, command{kind: cmdSubmitAnswer, userID: "p1", answer: "a"})
	do(a, command{kind: cmdSubmitAnswer, userID: "p2", answer: "a"})
	if a.room.CurrentQuestionIndex != 0 {
		t.Fatal("question advanced while a connected player had not answered")
	}

	// The last holdout disconnecting satisfies the barrier.
	do(a, command{kind: cmdDisconnect, userID: "p3", connectionID: "c3"})
	if a.room.CurrentQuestionIndex != 1 {
		t.Fatalf("expected advance to question 1, got %d", a.room.CurrentQuestionIndex)
	}
}

func TestHostOnlyActionsRejected(t *testing.T) {
	fc := clockwork.NewFakeClock()
	a := newSyncActor(newWaitingRoom(VariantTrivia), fc)
	defer a.Close()

	do(a, command{kind: cmdJoin, userID: "p1", userName: "Ana", connectionID: "c1"})
	do(a, command{kind: cmdJoin, userID: "p2", userName: "Ben", connectionID: "c2"})

	if rep := do(a, command{kind: cmdStart, userID: "p2"}); rep.err != ErrNotHost {
		t.Fatalf("expected ErrNotHost for start, got %v", rep.err)
	}
	do(a, command{kind: cmdStart, userID: "p1"})
	if rep := do(a, command{kind: cmdNextQuestion, userID: "p2"}); rep.err != ErrNotHost {
		t.Fatalf("expected ErrNotHost for next_question, got %v", rep.err)
	}
	if rep := do(a, command{kind: cmdNextQuestion, userID: "p1"}); rep.err != nil {
		t.Fatalf("host next_question: %v", rep.err)
	}
	if a.room.CurrentQuestionIndex != 1 {
		t.Fatalf("expected host-triggered advance, got index %d", a.room.CurrentQuestionIndex)
	}
}

func TestEarlyClientTimeoutClaimDiscarded(t *testing.T) {
	fc := clockwork.NewFakeClock()
	a := newSyncActor(newWaitingRoom(VariantTicTacToe), fc)
	defer a.Close()

	do(a, command{kind: cmdJoin, userID: "p1", userName: "Ana", connectionID: "c1"})
	do(a, command{kind: cmdJoin, userID: "p2", userName: "Ben", connectionID: "c2"})
	do(a, command{kind: cmdStart, userID: "p1"})

	// Claimed long before the server's own deadline.
	if rep := do(a, command{kind: cmdClientTimeout, userID: "p2"}); rep.err != ErrStaleEvent {
		t.Fatalf("expected ErrStaleEvent, got %v", rep.err)
	}
	if a.room.PlayerByID("p1").Hearts != InitialHearts {
		t.Fatal("early timeout claim cost a heart")
	}

	// Honored once the deadline truly passed.
	fc.Advance(31 * time.Second)
	if rep := do(a, command{kind: cmdClientTimeout, userID: "p2"}); rep.err != nil {
		t.Fatalf("late timeout claim: %v", rep.err)
	}
	if a.room.PlayerByID("p1").Hearts != InitialHearts-1 {
		t.Fatal("expected the on-turn player to lose a heart")
	}
}
