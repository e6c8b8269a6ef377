package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/protocol"
)

var errHandlerPanic = errors.New("handler panicked")

type handlerFunc func(ctx context.Context, client *Client, data json.RawMessage) error

// dispatch routes one frame. Only protocol violations are returned; the
// connection must be closed after one.
func (that *Server) dispatch(ctx context.Context, client *Client, handlers map[string]handlerFunc, raw []byte) error {
	log := client.logger.With("method", "dispatch")

	req, err := protocol.Decode(raw)
	if err != nil {
		log.Warn("protocol violation", "error", err)
		return err
	}

	handler, ok := handlers[req.EventType]
	if !ok {
		log.Debug("unroutable event dropped", "event_type", req.EventType)
		return nil
	}

	if err = invoke(ctx, handler, client, req.Data); err != nil {
		log.Warn("handler failed", "event_type", req.EventType, "error", err)

		if sendErr := client.Send(protocol.ChatMessage(notice(err))); sendErr != nil {
			log.Debug("failed to report handler error", "error", sendErr)
		}
	}

	return nil
}

func invoke(ctx context.Context, handler handlerFunc, client *Client, data json.RawMessage) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", errHandlerPanic, recovered)
		}
	}()

	return handler(ctx, client, data)
}

// notice turns an error into text shown to the client.
func notice(err error) string {
	if errors.Is(err, errHandlerPanic) {
		return "Something went wrong"
	}

	return capitalize(err.Error())
}

func capitalize(text string) string {
	first, size := utf8.DecodeRuneInString(text)
	if first == utf8.RuneError {
		return text
	}

	return string(unicode.ToUpper(first)) + text[size:]
}
