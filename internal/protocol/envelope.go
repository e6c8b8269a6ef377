package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const timestampLayout = "15:04:05"

var now = time.Now

// Envelope is the outbound wire unit.
type Envelope struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

// Request is the inbound wire unit; Data is decoded by the handler that owns the tag.
type Request struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Decode parses a frame. A frame without an event tag is a protocol violation.
func Decode(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrProtocolViolation, err)
	}

	if strings.TrimSpace(req.EventType) == "" {
		return nil, apperror.ErrProtocolViolation
	}

	return &req, nil
}

// DecodeData unmarshals the data of a request; absent data leaves v untouched.
func DecodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	return nil
}

type options struct {
	data    map[string]any
	message string
	sender  *entity.Identity
}

type Option func(*options)

// WithData replaces the default sender/timestamp payload.
func WithData(data map[string]any) Option {
	return func(o *options) {
		o.data = data
	}
}

func WithMessage(message string) Option {
	return func(o *options) {
		o.message = message
	}
}

// WithSender attributes the envelope to a client.
func WithSender(identity entity.Identity) Option {
	return func(o *options) {
		o.sender = &identity
	}
}

// BuildResponse builds an outbound envelope. Without explicit data the payload
// carries the server as sender and the current time.
func BuildResponse(eventType string, opts ...Option) Envelope {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	data := make(map[string]any, len(o.data)+3)
	if len(o.data) == 0 {
		data["sender"] = ServerSender
		data["timestamp"] = now().Format(timestampLayout)
	}

	for key, value := range o.data {
		data[key] = value
	}

	if o.message != "" {
		data["message"] = o.message
	}

	if o.sender != nil {
		data["sender"] = o.sender.Name()
	}

	return Envelope{
		EventType: eventType,
		Data:      data,
	}
}

func ChatMessage(message string, opts ...Option) Envelope {
	return BuildResponse(EventChatMessage, append(opts, WithMessage(message))...)
}

func GameLog(message string) Envelope {
	return BuildResponse(EventGameLog, WithMessage(message))
}

func ConnectionOpen() Envelope {
	return BuildResponse(EventConnectionOpen, WithMessage("Client connected"))
}

func ConnectionClose(reason string) Envelope {
	return BuildResponse(EventConnectionClose, WithMessage(reason))
}

func RoomList(names []string) Envelope {
	if names == nil {
		names = []string{}
	}

	return BuildResponse(EventGetAllRooms, WithData(map[string]any{"rooms": names}))
}

func ClientsCount(count int) Envelope {
	return BuildResponse(EventGetClientsCount, WithData(map[string]any{"count": strconv.Itoa(count)}))
}

// GameUpdate serializes a game snapshot; winner is null while the game runs.
func GameUpdate(status entity.GameStatus) Envelope {
	var winner any
	if name := status.WinnerName(); name != "" {
		winner = name
	}

	return BuildResponse(EventGameUpdate, WithData(map[string]any{
		"board":          status.Board,
		"turn":           int(status.Turn),
		"current_player": status.CurrentPlayer.Name(),
		"winner":         winner,
		"is_over":        status.IsOver(),
	}))
}
