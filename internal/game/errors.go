package game

import "errors"

// Domain errors surfaced to the offending client only. They never reach the
// rest of the room: one player's bad input cannot disturb the others.
var (
	// Not-found / capacity / permission.
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrNotHost            = errors.New("only the host may do that")

	// Validation: malformed, duplicate, or out-of-turn events.
	ErrGameNotStarted   = errors.New("game has not started")
	ErrGameEnded        = errors.New("game has ended")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrUnknownPlayer    = errors.New("player is not a member of this room")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrInvalidCell      = errors.New("cell index out of range")
	ErrNoPendingAnswer  = errors.New("no question is awaiting an answer")
	ErrAlreadyAnswered  = errors.New("answer already recorded for this question")
	ErrWrongVariant     = errors.New("event does not apply to this game variant")

	// Authority conflicts: the event references state that has since moved
	// on. Discarded silently.
	ErrStaleEvent = errors.New("event is stale")

	// A room that detected an internal inconsistency stops accepting
	// events rather than continue from a corrupt state.
	ErrRoomFrozen = errors.New("room is frozen")
)
