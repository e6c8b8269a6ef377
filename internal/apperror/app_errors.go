package apperror

import "errors"

// game
var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game did not start yet")
	ErrGameIsRunning    = errors.New("game is already running")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrOutOfBounds      = errors.New("incorrect coordinates")
	ErrCellOccupied     = errors.New("you can not fill this cell")
	ErrNotEnoughPlayers = errors.New("this game requires 2 players")
)

// rooms
var (
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrRoomNotFound      = errors.New("room does not exist")
	ErrRoomFull          = errors.New("room is full")
	ErrEmptyRoomName     = errors.New("room name is required")
	ErrInvalidRoomName   = errors.New("room name must not contain '/' or be '.' or '..'")
)

// sessions
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidToken    = errors.New("invalid session token")
)

// connections
var (
	ErrProtocolViolation = errors.New("event type is missing")
	ErrConnectionClosed  = errors.New("connection is closed")
	ErrSendBufferFull    = errors.New("send buffer is full")
	ErrEmptyMessage      = errors.New("message is empty")
)
