package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
)

const (
	BoardSize = 3

	StatusOngoing = "ongoing"
	StatusWon     = "won"
	StatusDraw    = "draw"

	// DrawWinner is reported as the winner of a game that ended in a draw.
	DrawWinner = "draw"
)

// Mark is the content of a board cell: empty or the slot number of a player.
type Mark int8

const (
	EmptyCell Mark = 0
	PlayerOne Mark = 1
	PlayerTwo Mark = 2
)

func (that Mark) Opponent() Mark {
	if that == PlayerOne {
		return PlayerTwo
	}
	return PlayerOne
}

type cell struct{ x, y int }

var winLines = [8][BoardSize]cell{
	// rows
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	// columns
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	// diagonals
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Board is a fixed 3x3 grid indexed as board[x][y].
type Board [BoardSize][BoardSize]Mark

func InBounds(x, y int) bool {
	return x >= 0 && x < BoardSize && y >= 0 && y < BoardSize
}

func (that *Board) At(x, y int) Mark {
	return that[x][y]
}

func (that *Board) IsFull() bool {
	for _, row := range that {
		for _, mark := range row {
			if mark == EmptyCell {
				return false
			}
		}
	}
	return true
}

// HasLine reports whether any row, column or diagonal is filled with mark.
func (that *Board) HasLine(mark Mark) bool {
	for _, line := range winLines {
		if that[line[0].x][line[0].y] == mark &&
			that[line[1].x][line[1].y] == mark &&
			that[line[2].x][line[2].y] == mark {
			return true
		}
	}
	return false
}

// Outcome is the result code of a single MakeMove call.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNotYourTurn
	OutcomeOutOfBounds
	OutcomeCellOccupied
	OutcomeGameEnded
)

func (that Outcome) String() string {
	switch that {
	case OutcomeApplied:
		return "applied"
	case OutcomeNotYourTurn:
		return "not_your_turn"
	case OutcomeOutOfBounds:
		return "out_of_bounds"
	case OutcomeCellOccupied:
		return "cell_occupied"
	case OutcomeGameEnded:
		return "game_ended"
	default:
		return fmt.Sprintf("outcome(%d)", int(that))
	}
}

// Err maps a rejected outcome to its sentinel error, nil for the others.
func (that Outcome) Err() error {
	switch that {
	case OutcomeNotYourTurn:
		return apperror.ErrNotYourTurn
	case OutcomeOutOfBounds:
		return apperror.ErrOutOfBounds
	case OutcomeCellOccupied:
		return apperror.ErrCellOccupied
	default:
		return nil
	}
}

// Game is the state machine of one 3x3 match between two identities.
// It is not safe for concurrent use; the owning room serializes access.
type Game struct {
	board   Board
	players [2]Identity
	turn    Mark
	status  string
	winner  Mark
}

func NewGame(first, second Identity) *Game {
	return &Game{
		players: [2]Identity{first, second},
		turn:    PlayerOne,
		status:  StatusOngoing,
	}
}

// NewGameFor seats the given identities in order.
func NewGameFor(players []Identity) (*Game, error) {
	if len(players) != 2 {
		return nil, fmt.Errorf("%w: got %d", apperror.ErrNotEnoughPlayers, len(players))
	}

	return NewGame(players[0], players[1]), nil
}

// MakeMove validates the whole move before touching the board, so a rejected
// move never changes the board or the turn.
func (that *Game) MakeMove(x, y int, actorID string) Outcome {
	if that.IsOver() {
		return OutcomeGameEnded
	}

	if that.Player(that.turn).ID != actorID {
		return OutcomeNotYourTurn
	}

	if !InBounds(x, y) {
		return OutcomeOutOfBounds
	}

	if that.board[x][y] != EmptyCell {
		return OutcomeCellOccupied
	}

	that.board[x][y] = that.turn
	that.turn = that.turn.Opponent()
	that.evaluate()

	return OutcomeApplied
}

func (that *Game) evaluate() {
	for _, mark := range []Mark{PlayerOne, PlayerTwo} {
		if that.board.HasLine(mark) {
			that.winner = mark
			that.status = StatusWon
			return
		}
	}

	if that.board.IsFull() {
		that.status = StatusDraw
	}
}

func (that *Game) Player(mark Mark) Identity {
	if mark == PlayerTwo {
		return that.players[1]
	}
	return that.players[0]
}

func (that *Game) Board() Board {
	return that.board
}

func (that *Game) CurrentTurn() Mark {
	return that.turn
}

func (that *Game) IsOver() bool {
	return that.status != StatusOngoing
}

func (that *Game) IsDraw() bool {
	return that.status == StatusDraw
}

// Winner returns the winning identity, if any.
func (that *Game) Winner() (Identity, bool) {
	if that.status != StatusWon {
		return Identity{}, false
	}
	return that.Player(that.winner), true
}

func (that *Game) Status() GameStatus {
	status := GameStatus{
		Board:         that.board,
		Turn:          that.turn,
		CurrentPlayer: that.Player(that.turn),
		Players:       that.players,
		State:         that.status,
	}

	if winner, ok := that.Winner(); ok {
		status.Winner = &winner
	}

	return status
}

// GameStatus is an immutable snapshot of a game.
type GameStatus struct {
	Board         Board
	Turn          Mark
	CurrentPlayer Identity
	Players       [2]Identity
	State         string
	Winner        *Identity
}

func (that GameStatus) IsOver() bool {
	return that.State != StatusOngoing
}

func (that GameStatus) IsDraw() bool {
	return that.State == StatusDraw
}

// WinnerName is the winner's display name, DrawWinner for a draw, or empty while running.
func (that GameStatus) WinnerName() string {
	switch {
	case that.Winner != nil:
		return that.Winner.Name()
	case that.IsDraw():
		return DrawWinner
	default:
		return ""
	}
}
