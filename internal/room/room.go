package room

import (
	"fmt"
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/protocol"
)

const DefaultCapacity = 2

// Room is a named group of at most Capacity members which may host one game.
type Room struct {
	name     string
	capacity int

	mu      sync.Mutex
	members memberList
	game    *entity.Game
}

func New(name string) *Room {
	return &Room{
		name:     name,
		capacity: DefaultCapacity,
		members:  newMemberList(),
	}
}

func (that *Room) Name() string {
	return that.name
}

func (that *Room) Capacity() int {
	return that.capacity
}

// Admission is the result of admitting a member into a room.
type Admission struct {
	// Superseded is the previous transport of the same identity; the caller closes it.
	Superseded Member
	Count      int
	// Started is set when this admission filled the room and started a game.
	Started *entity.GameStatus
}

// Join adds member, replacing a stale transport of the same identity in place.
func (that *Room) Join(member Member) (Member, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.join(member)
}

func (that *Room) join(member Member) (Member, error) {
	if !that.members.contains(member.Identity().ID) && that.members.len() >= that.capacity {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomFull, that.name)
	}

	return that.members.put(member), nil
}

// Admit joins member and starts a game if the room became full, as one step.
func (that *Room) Admit(member Member) (Admission, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	superseded, err := that.join(member)
	if err != nil {
		return Admission{}, err
	}

	admission := Admission{
		Superseded: superseded,
		Count:      that.members.len(),
	}

	if that.members.len() == that.capacity && that.game == nil {
		status, err := that.startGame()
		if err != nil {
			return Admission{}, err
		}
		admission.Started = &status
	}

	return admission, nil
}

// Leave removes member if it is still the registered transport for its identity.
// A running game is discarded without a winner.
func (that *Room) Leave(member Member) (left, forfeited bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.members.remove(member) {
		return false, false
	}

	if that.game != nil {
		that.game = nil
		return true, true
	}

	return true, false
}

func (that *Room) StartGame() (entity.GameStatus, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.startGame()
}

func (that *Room) startGame() (entity.GameStatus, error) {
	if that.game != nil {
		return entity.GameStatus{}, apperror.ErrGameIsRunning
	}

	if that.members.len() < that.capacity {
		return entity.GameStatus{}, apperror.ErrNotEnoughPlayers
	}

	game, err := entity.NewGameFor(that.members.identities())
	if err != nil {
		return entity.GameStatus{}, fmt.Errorf("failed to start game in %s: %w", that.name, err)
	}

	that.game = game

	return game.Status(), nil
}

// MoveResult describes an applied move.
type MoveResult struct {
	Outcome entity.Outcome
	Status  entity.GameStatus
}

func (that MoveResult) Finished() bool {
	return that.Status.IsOver()
}

// MakeMove applies a move to the running game. A finished game is discarded
// before the lock is released.
func (that *Room) MakeMove(x, y int, actor entity.Identity) (MoveResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.game == nil {
		return MoveResult{}, apperror.ErrGameIsNotStarted
	}

	outcome := that.game.MakeMove(x, y, actor.ID)
	if outcome == entity.OutcomeGameEnded {
		return MoveResult{Outcome: outcome}, apperror.ErrGameFinished
	}

	if err := outcome.Err(); err != nil {
		return MoveResult{Outcome: outcome}, err
	}

	result := MoveResult{
		Outcome: outcome,
		Status:  that.game.Status(),
	}

	if result.Finished() {
		that.game = nil
	}

	return result, nil
}

// GameStatus returns a snapshot of the running game, if any.
func (that *Room) GameStatus() (entity.GameStatus, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.game == nil {
		return entity.GameStatus{}, false
	}

	return that.game.Status(), true
}

func (that *Room) Count() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.members.len()
}

func (that *Room) Contains(id string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.members.contains(id)
}

// CanAdmit reports whether the identity would be admitted right now.
func (that *Room) CanAdmit(id string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.members.contains(id) || that.members.len() < that.capacity
}

func (that *Room) Members() []Member {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.members.snapshot()
}

func (that *Room) Broadcast(envelope protocol.Envelope) error {
	return Broadcast(that.Members(), envelope)
}

// Evict empties the room, discarding any game, and returns the former members.
func (that *Room) Evict() []Member {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.game = nil

	return that.members.clear()
}
