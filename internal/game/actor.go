package game

import (
	"context"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type cmdKind int

const (
	cmdJoin cmdKind = iota
	cmdDisconnect
	cmdStart
	cmdSubmitAnswer
	cmdNextQuestion
	cmdMove
	cmdMoveAnswer
	cmdClientTimeout
	cmdTimerExpired
	cmdSnapshot
	cmdStatus
)

type command struct {
	kind         cmdKind
	userID       string
	userName     string
	isHost       bool
	connectionID string
	answer       string
	cell         int
	timerGen     uint64
	reply        chan cmdReply
}

type cmdReply struct {
	snap   Snapshot
	status Status
	err    error
}

// Status is what the registry's reaper needs to decide teardown.
type Status struct {
	State      State
	Connected  int
	LastActive time.Time
	EndedAt    time.Time
}

// Result is the terminal summary handed to the results sink exactly once,
// when a room ends.
type Result struct {
	Code    string         `json:"gameCode"`
	Variant Variant        `json:"variant"`
	Winner  string         `json:"winner,omitempty"`
	Draw    bool           `json:"draw,omitempty"`
	Results []PlayerResult `json:"results"`
	EndedAt time.Time      `json:"endedAt"`
}

// ResultSink receives the terminal summary for durable storage. Called after
// commit, off the event loop.
type ResultSink interface {
	Record(ctx context.Context, result Result) error
}

// NopSink discards results.
type NopSink struct{}

func (NopSink) Record(context.Context, Result) error { return nil }

// Actor owns one room. Every mutating event funnels through its inbox and is
// validated, applied, and committed strictly one at a time; the first event
// admitted wins any contested resource and later events see the changed
// preconditions. Timer firings enter the same queue as synthetic events
// stamped with the generation of the arming that produced them; a firing from
// a superseded arming is discarded.
type Actor struct {
	room        *Room
	inbox       chan command
	clock       clockwork.Clock
	rng         *rand.Rand
	broadcaster Broadcaster
	sink        ResultSink

	timer       clockwork.Timer
	timerCancel chan struct{}
	// timerGen advances only when the timer is armed or cancelled, never on
	// unrelated commits: an answer that leaves the barrier unmet, or a
	// reconnect mid-turn, must not disarm the running window.
	timerGen   uint64
	deadline   time.Time
	lastActive time.Time

	done chan struct{}
}

func newActor(room *Room, clock clockwork.Clock, rng *rand.Rand, b Broadcaster, sink ResultSink) *Actor {
	a := &Actor{
		room:        room,
		inbox:       make(chan command, 64),
		clock:       clock,
		rng:         rng,
		broadcaster: b,
		sink:        sink,
		lastActive:  clock.Now(),
		done:        make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Actor) run() {
	for {
		select {
		case <-a.done:
			return
		case cmd := <-a.inbox:
			a.handle(cmd)
		}
	}
}

// Close stops the actor's event loop and any pending timer.
func (a *Actor) Close() {
	close(a.done)
}

func (a *Actor) send(cmd command) cmdReply {
	cmd.reply = make(chan cmdReply, 1)
	select {
	case a.inbox <- cmd:
	case <-a.done:
		return cmdReply{err: ErrRoomNotFound}
	}
	select {
	case rep := <-cmd.reply:
		return rep
	case <-a.done:
		return cmdReply{err: ErrRoomNotFound}
	}
}

// Join adds a new member or reconnects an existing one. Reconnection swaps
// the connection ID, flips the connected flag, and returns the full
// snapshot; score, hearts, and host role are untouched.
func (a *Actor) Join(userID, userName string, isHost bool, connectionID string) (Snapshot, error) {
	rep := a.send(command{kind: cmdJoin, userID: userID, userName: userName, isHost: isHost, connectionID: connectionID})
	return rep.snap, rep.err
}

// Disconnect marks a member as detached. The player record is retained so a
// later rejoin resumes with full state.
func (a *Actor) Disconnect(userID, connectionID string) {
	a.send(command{kind: cmdDisconnect, userID: userID, connectionID: connectionID})
}

// Start begins the game. Host-only, from the waiting state, with the
// variant's minimum player count present.
func (a *Actor) Start(userID string) error {
	return a.send(command{kind: cmdStart, userID: userID}).err
}

// SubmitAnswer records a trivia answer.
func (a *Actor) SubmitAnswer(userID, answer string) error {
	return a.send(command{kind: cmdSubmitAnswer, userID: userID, answer: answer}).err
}

// NextQuestion advances the trivia question at the host's request.
func (a *Actor) NextQuestion(userID string) error {
	return a.send(command{kind: cmdNextQuestion, userID: userID}).err
}

// RequestMove claims a tic-tac-toe cell, binding a question to it.
func (a *Actor) RequestMove(userID string, cell int) error {
	return a.send(command{kind: cmdMove, userID: userID, cell: cell}).err
}

// AnswerMove answers the question bound to a pending move.
func (a *Actor) AnswerMove(userID string, cell int, answer string) error {
	return a.send(command{kind: cmdMoveAnswer, userID: userID, cell: cell, answer: answer}).err
}

// ReportTimeout lets a client claim the current window elapsed. The claim is
// advisory: it is honored only if the server's own deadline has passed.
func (a *Actor) ReportTimeout(userID string) error {
	return a.send(command{kind: cmdClientTimeout, userID: userID}).err
}

// Snapshot returns the room's current authoritative state.
func (a *Actor) Snapshot() Snapshot {
	return a.send(command{kind: cmdSnapshot}).snap
}

// Status reports lifecycle data for the reaper.
func (a *Actor) Status() Status {
	return a.send(command{kind: cmdStatus}).status
}

func (a *Actor) handle(cmd command) {
	now := a.clock.Now()

	// Reads are always served, frozen or not.
	switch cmd.kind {
	case cmdSnapshot:
		cmd.reply <- cmdReply{snap: a.room.BuildSnapshot()}
		return
	case cmdStatus:
		cmd.reply <- cmdReply{status: Status{
			State:      a.room.State,
			Connected:  a.room.ConnectedCount(),
			LastActive: a.lastActive,
			EndedAt:    a.room.EndedAt,
		}}
		return
	}

	if a.room.frozen {
		cmd.reply <- cmdReply{err: ErrRoomFrozen}
		return
	}
	a.lastActive = now

	var rep cmdReply
	switch cmd.kind {
	case cmdJoin:
		rep = a.handleJoin(cmd, now)
	case cmdDisconnect:
		a.handleDisconnect(cmd, now)
	case cmdStart:
		rep.err = a.handleStart(cmd, now)
	case cmdSubmitAnswer:
		rep.err = a.handleSubmitAnswer(cmd, now)
	case cmdNextQuestion:
		rep.err = a.handleNextQuestion(cmd, now)
	case cmdMove:
		rep.err = a.handleMove(cmd, now)
	case cmdMoveAnswer:
		rep.err = a.handleMoveAnswer(cmd, now)
	case cmdClientTimeout:
		rep.err = a.handleClientTimeout(now)
	case cmdTimerExpired:
		a.handleTimerExpired(cmd.timerGen, now)
	}
	cmd.reply <- rep
}

func (a *Actor) handleJoin(cmd command, now time.Time) cmdReply {
	r := a.room

	if p := r.PlayerByID(cmd.userID); p != nil {
		// Reconnection.
		p.IsConnected = true
		p.ConnectionID = cmd.connectionID
		r.commit()
		log.Info().Str("game_code", r.Code).Str("user_id", cmd.userID).Msg("player reconnected")
		a.broadcastJoined(p.UserID, now)
		return cmdReply{snap: r.BuildSnapshot()}
	}

	if r.State != StateWaiting {
		return cmdReply{err: ErrGameAlreadyStarted}
	}
	if len(r.Players) >= r.Settings.MaxPlayers {
		return cmdReply{err: ErrRoomFull}
	}

	p := &Player{
		UserID:       cmd.userID,
		UserName:     cmd.userName,
		ConnectionID: cmd.connectionID,
		IsConnected:  true,
		IsHost:       cmd.userID == r.HostID,
	}
	r.Players = append(r.Players, p)
	r.commit()
	log.Info().
		Str("game_code", r.Code).
		Str("user_id", cmd.userID).
		Int("players", len(r.Players)).
		Msg("player joined")
	a.broadcastJoined(p.UserID, now)
	return cmdReply{snap: r.BuildSnapshot()}
}

func (a *Actor) broadcastJoined(userID string, now time.Time) {
	r := a.room
	a.broadcaster.Broadcast(r.Code, NewEvent(r.Code, EventPlayerJoined, now, PlayerJoinedPayload{
		UserID:  userID,
		Players: r.playerViews(),
	}))
}

func (a *Actor) handleDisconnect(cmd command, now time.Time) {
	r := a.room
	p := r.PlayerByID(cmd.userID)
	if p == nil {
		return
	}
	// A stale close from a superseded connection must not clobber a fresh
	// reconnect.
	if cmd.connectionID != "" && p.ConnectionID != cmd.connectionID {
		return
	}
	p.IsConnected = false
	r.commit()
	log.Info().Str("game_code", r.Code).Str("user_id", cmd.userID).Msg("player disconnected")
	a.broadcaster.Broadcast(r.Code, NewEvent(r.Code, EventPlayerLeft, now, PlayerLeftPayload{
		UserID:  cmd.userID,
		Players: r.playerViews(),
	}))

	// A departed player must not hold the trivia barrier.
	if r.Variant == VariantTrivia && r.State == StatePlaying && r.barrierMet() {
		a.advanceTrivia(now)
	}
}

func (a *Actor) handleStart(cmd command, now time.Time) error {
	r := a.room
	if cmd.userID != r.HostID {
		return ErrNotHost
	}
	if r.State != StateWaiting {
		return ErrGameAlreadyStarted
	}
	if len(r.Players) < r.minPlayers() {
		return ErrNotEnoughPlayers
	}

	r.State = StatePlaying
	switch r.Variant {
	case VariantTrivia:
		r.CurrentQuestionIndex = 0
		r.QuestionStart = now
	case VariantTicTacToe:
		r.assignSymbols()
		r.CurrentTurn = SymbolX
		r.Phase = PhaseAwaitingMove
		r.TurnStart = now
	}
	r.commit()
	log.Info().
		Str("game_code", r.Code).
		Str("variant", string(r.Variant)).
		Int("players", len(r.Players)).
		Msg("game started")

	a.broadcaster.Broadcast(r.Code, NewEvent(r.Code, EventGameStarted, now, GameStartedPayload{
		Variant:   r.Variant,
		StartedAt: now,
	}))
	switch r.Variant {
	case VariantTrivia:
		a.broadcastNewQuestion(now)
		a.scheduleTimer(r.Settings.TimePerQuestion)
	case VariantTicTacToe:
		a.broadcastTTTState(now)
		a.scheduleTimer(r.Settings.TimePerTurn)
	}
	return nil
}

func (a *Actor) handleSubmitAnswer(cmd command, now time.Time) error {
	r := a.room
	outcome, err := r.submitAnswer(cmd.userID, cmd.answer, now)
	if err != nil {
		return err
	}

	answered := 0
	for _, p := range r.Players {
		if p.HasAnswered(outcome.QuestionIndex) {
			answered++
		}
	}
	a.broadcaster.Broadcast(r.Code, NewEvent(r.Code, EventAnswerSubmitted, now, AnswerSubmittedPayload{
		UserID:        cmd.userID,
		QuestionIndex: outcome.QuestionIndex,
		Answered:      answered,
		Connected:     r.ConnectedCount(),
	}))

	if outcome.BarrierMet {
		a.advanceTrivia(now)
	}
	return nil
}

func (a *Actor) handleNextQuestion(cmd command, now time.Time) error {
	r := a.room
	if r.Variant != VariantTrivia {
		return ErrWrongVariant
	}
	if cmd.userID != r.HostID {
		return ErrNotHost
	}
	if r.State != StatePlaying {
		return ErrGameNotStarted
	}
	a.advanceTrivia(now)
	return nil
}

// advanceTrivia moves past the current question, ending the game when the
// set is exhausted.
func (a *Actor) advanceTrivia(now time.Time) {
	r := a.room
	if r.advanceQuestion(now) {
		a.endGame(now)
		return
	}
	a.broadcastNewQuestion(now)
	a.scheduleTimer(r.Settings.TimePerQuestion)
}

func (a *Actor) broadcastNewQuestion(now time.Time) {
	r := a.room
	q := r.Questions[r.CurrentQuestionIndex]
	a.broadcaster.Broadcast(r.Code, NewEvent(r.Code, EventNewQuestion, now, NewQuestionPayload{
		QuestionIndex:  r.CurrentQuestionIndex,
		TotalQuestions: r.questionCount(),
		Question:       QuestionView{Type: q.Type, Prompt: q.Prompt, Options: q.Options},
		StartTime:      r.QuestionStart,
		TimeLimitSec:   int(r.Settings.TimePerQuestion / time.Second),
	}))
}

func (a *Actor) handleMove(cmd command, now time.Time) error {
	r := a.room
	qi, err := r.requestMove(cmd.userID, cmd.cell, a.rng, now)
	if err != nil {
		return err
	}

	q := r.Questions[qi]
	a.broadcaster.Broadcast(r.Code, NewEvent(r.Code, EventTTTQuestion, now, TTTQuestionPayload{
		CellIndex:    cmd.cell,
		UserID:       cmd.userID,
		Question:     QuestionView{Type: q.Type, Prompt: q.Prompt, Options: q.Options},
		BoundAt:      now,
		TimeLimitSec: int(r.Settings.TimePerQuestion / time.Second),
	}))
	a.broadcastTTTState(now)
	a.scheduleTimer(r.Settings.TimePerQuestion)
	return nil
}

func (a *Actor) handleMoveAnswer(cmd command, now time.Time) error {
	res, err := a.room.answerMove(cmd.userID, cmd.cell, cmd.answer, now)
	if err != nil {
		return err
	}
	a.afterResolution(res, now)
	return nil
}

// handleClientTimeout honors a client's timeout claim only when the server's
// own deadline agrees; an early claim is discarded as stale.
func (a *Actor) handleClientTimeout(now time.Time) error {
	r := a.room
	if r.Variant != VariantTicTacToe || r.State != StatePlaying {
		return ErrStaleEvent
	}
	if a.deadline.IsZero() || now.Before(a.deadline) {
		return ErrStaleEvent
	}
	a.resolveTimeout(now)
	return nil
}

func (a *Actor) handleTimerExpired(gen uint64, now time.Time) {
	r := a.room
	if gen != a.timerGen {
		// The window this firing was armed for has been replaced or
		// cancelled since.
		log.Debug().
			Str("game_code", r.Code).
			Uint64("timer_gen", gen).
			Uint64("current_gen", a.timerGen).
			Msg("discarding stale timer")
		return
	}
	if r.State != StatePlaying {
		return
	}
	a.resolveTimeout(now)
}

func (a *Actor) resolveTimeout(now time.Time) {
	r := a.room
	switch r.Variant {
	case VariantTrivia:
		a.advanceTrivia(now)
	case VariantTicTacToe:
		var res turnResolution
		if r.Phase == PhaseAwaitingAnswer && r.pending != nil {
			res = r.expirePendingAnswer(now)
		} else {
			res = r.expireTurn()
		}
		a.afterResolution(res, now)
	}
}

func (a *Actor) afterResolution(res turnResolution, now time.Time) {
	r := a.room
	if r.frozen {
		a.cancelTimer()
		return
	}
	if res.GameOver {
		a.broadcastTTTState(now)
		a.broadcaster.Broadcast(r.Code, NewEvent(r.Code, EventTTTGameOver, now, TTTGameOverPayload{
			Winner: res.Winner,
			Draw:   res.Draw,
		}))
		a.endGame(now)
		return
	}
	r.TurnStart = now
	a.broadcastTTTState(now)
	a.scheduleTimer(r.Settings.TimePerTurn)
}

func (a *Actor) broadcastTTTState(now time.Time) {
	r := a.room
	hearts := make(map[string]int, len(r.Players))
	symbols := make(map[string]string, len(r.Players))
	for _, p := range r.Players {
		hearts[p.UserID] = p.Hearts
		symbols[p.UserID] = p.Symbol
	}
	limit := r.Settings.TimePerTurn
	start := r.TurnStart
	if r.Phase == PhaseAwaitingAnswer && r.pending != nil {
		limit = r.Settings.TimePerQuestion
		start = r.pending.BoundAt
	}
	a.broadcaster.Broadcast(r.Code, NewEvent(r.Code, EventTTTState, now, TTTStatePayload{
		Grid:         append([]string(nil), r.Board[:]...),
		CurrentTurn:  r.CurrentTurn,
		Phase:        r.Phase,
		Hearts:       hearts,
		Symbols:      symbols,
		TurnStart:    start,
		TimeLimitSec: int(limit / time.Second),
	}))
}

// endGame finalizes an ended room: cancels the timer, broadcasts the final
// ranking, and hands the terminal summary to the results sink once, off the
// event loop.
func (a *Actor) endGame(now time.Time) {
	r := a.room
	a.cancelTimer()
	r.State = StateEnded
	r.EndedAt = now

	results := r.finalResults()
	a.broadcaster.Broadcast(r.Code, NewEvent(r.Code, EventGameEnded, now, GameEndedPayload{
		Results: results,
		EndedAt: now,
	}))

	result := Result{
		Code:    r.Code,
		Variant: r.Variant,
		Winner:  r.Winner,
		Draw:    r.Variant == VariantTicTacToe && r.Winner == "",
		Results: results,
		EndedAt: now,
	}
	sink := a.sink
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sink.Record(ctx, result); err != nil {
			log.Error().Err(err).Str("game_code", result.Code).Msg("failed to record game result")
		}
	}()

	log.Info().
		Str("game_code", r.Code).
		Str("variant", string(r.Variant)).
		Str("winner", r.Winner).
		Msg("game ended")
}

// scheduleTimer arms the room's single timeout, replacing any previous one.
// The firing carries the generation of this arming.
func (a *Actor) scheduleTimer(d time.Duration) {
	a.cancelTimer()

	a.timerGen++
	gen := a.timerGen
	timer := a.clock.NewTimer(d)
	cancel := make(chan struct{})
	a.timer = timer
	a.timerCancel = cancel
	a.deadline = a.clock.Now().Add(d)

	go func() {
		select {
		case <-timer.Chan():
			select {
			case a.inbox <- command{kind: cmdTimerExpired, timerGen: gen, reply: make(chan cmdReply, 1)}:
			case <-a.done:
			}
		case <-cancel:
			stopAndDrainTimer(timer)
		case <-a.done:
			stopAndDrainTimer(timer)
		}
	}()
}

func (a *Actor) cancelTimer() {
	// A firing already queued from the old arming must find a mismatch.
	a.timerGen++
	if a.timerCancel != nil {
		close(a.timerCancel)
		a.timerCancel = nil
		a.timer = nil
	}
	a.deadline = time.Time{}
}

// stopAndDrainTimer stops a timer and drains its channel so the waiting
// goroutine never leaks, per the time.Timer.Stop contract.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
