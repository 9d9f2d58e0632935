package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Frostie0/braina-game-server/internal/questions"
)

// codeAlphabet omits characters that read ambiguously on a shared screen.
const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 4
)

// RegistryConfig carries lifecycle policy for rooms.
type RegistryConfig struct {
	// EmptyRoomGrace is how long a room may sit with zero connected
	// players before it is reaped.
	EmptyRoomGrace time.Duration
	// EndedRoomGrace is how long an ended room is kept around so clients
	// can fetch the final state.
	EndedRoomGrace time.Duration
	// ReapInterval is how often the reaper scans.
	ReapInterval time.Duration
	// DefaultSettings fills in unset room settings.
	DefaultSettings Settings
}

// DefaultRegistryConfig returns the standard lifecycle policy.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		EmptyRoomGrace: 2 * time.Minute,
		EndedRoomGrace: time.Minute,
		ReapInterval:   30 * time.Second,
		DefaultSettings: Settings{
			MaxPlayers:      8,
			TimePerTurn:     30 * time.Second,
			TimePerQuestion: 20 * time.Second,
		},
	}
}

// Registry maps room codes to their actors. It is the only process-wide
// mutable state; it guards creation and lookup, while each room's state is
// touched solely by that room's actor.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Actor

	config      RegistryConfig
	clock       clockwork.Clock
	rng         *rand.Rand
	broadcaster Broadcaster
	sink        ResultSink

	done     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry and starts its reaper.
func NewRegistry(config RegistryConfig, clock clockwork.Clock, broadcaster Broadcaster, sink ResultSink) *Registry {
	reg := &Registry{
		rooms:       make(map[string]*Actor),
		config:      config,
		clock:       clock,
		rng:         rand.New(rand.NewSource(clock.Now().UnixNano())),
		broadcaster: broadcaster,
		sink:        sink,
		done:        make(chan struct{}),
	}
	go reg.reapLoop()
	return reg
}

// Close tears down the registry and every active room.
func (reg *Registry) Close() {
	reg.stopOnce.Do(func() { close(reg.done) })

	reg.mu.Lock()
	defer reg.mu.Unlock()
	for code, actor := range reg.rooms {
		actor.Close()
		delete(reg.rooms, code)
	}
}

// CreateRoom builds a room with a code unique among active rooms and returns
// the code. The question list comes from the content collaborator and is
// immutable from here on.
func (reg *Registry) CreateRoom(hostID string, variant Variant, settings Settings, qs []questions.Question) (string, error) {
	if err := questions.Validate(qs); err != nil {
		return "", fmt.Errorf("rejecting question set: %w", err)
	}

	defaults := reg.config.DefaultSettings
	if settings.MaxPlayers <= 0 {
		settings.MaxPlayers = defaults.MaxPlayers
	}
	if settings.TimePerTurn <= 0 {
		settings.TimePerTurn = defaults.TimePerTurn
	}
	if settings.TimePerQuestion <= 0 {
		settings.TimePerQuestion = defaults.TimePerQuestion
	}
	if variant == VariantTicTacToe {
		// Exactly two seats; spectators reconnect as themselves only.
		settings.MaxPlayers = 2
	}
	if settings.TotalQuestions <= 0 || settings.TotalQuestions > len(qs) {
		settings.TotalQuestions = len(qs)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	code, err := reg.uniqueCode()
	if err != nil {
		return "", err
	}

	room := &Room{
		Code:      code,
		HostID:    hostID,
		Variant:   variant,
		State:     StateWaiting,
		Settings:  settings,
		Questions: qs,
		CreatedAt: reg.clock.Now(),
	}
	if variant == VariantTicTacToe {
		room.Phase = PhaseAwaitingMove
	}

	reg.rooms[code] = newActor(room, reg.clock, rand.New(rand.NewSource(reg.rng.Int63())), reg.broadcaster, reg.sink)
	log.Info().
		Str("game_code", code).
		Str("host_id", hostID).
		Str("variant", string(variant)).
		Msg("room created")
	return code, nil
}

// uniqueCode draws codes until one is free. Caller holds reg.mu.
func (reg *Registry) uniqueCode() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		buf := make([]byte, codeLength)
		for i := range buf {
			buf[i] = codeAlphabet[reg.rng.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique room code")
}

// Lookup returns the actor for a room code.
func (reg *Registry) Lookup(code string) (*Actor, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	actor, ok := reg.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return actor, nil
}

// RoomCount reports the number of active rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

func (reg *Registry) reapLoop() {
	ticker := reg.clock.NewTicker(reg.config.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-reg.done:
			return
		case <-ticker.Chan():
			reg.reap()
		}
	}
}

// reap tears down rooms that sat empty past the grace period, or ended ones
// past theirs. Policy, not correctness: a reaped room simply no longer
// accepts rejoins.
func (reg *Registry) reap() {
	now := reg.clock.Now()

	reg.mu.RLock()
	candidates := make(map[string]*Actor, len(reg.rooms))
	for code, actor := range reg.rooms {
		candidates[code] = actor
	}
	reg.mu.RUnlock()

	for code, actor := range candidates {
		st := actor.Status()
		expired := false
		switch {
		case st.State == StateEnded && !st.EndedAt.IsZero():
			expired = now.Sub(st.EndedAt) > reg.config.EndedRoomGrace
		case st.Connected == 0:
			expired = now.Sub(st.LastActive) > reg.config.EmptyRoomGrace
		}
		if !expired {
			continue
		}

		reg.mu.Lock()
		if current, ok := reg.rooms[code]; ok && current == actor {
			delete(reg.rooms, code)
			actor.Close()
			log.Info().
				Str("game_code", code).
				Str("state", string(st.State)).
				Msg("room reaped")
		}
		reg.mu.Unlock()
	}
}
