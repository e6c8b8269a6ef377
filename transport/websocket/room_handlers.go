package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/room"
)

const roomUnavailable = "Room does not exist or this room is full"

func (that *Server) serveRoom(ctx context.Context, w http.ResponseWriter, r *http.Request, name string) {
	log := that.logger.With("method", "serveRoom", "room", name)

	client, ok := that.upgrade(ctx, w, r)
	if !ok {
		return
	}

	joined, ok := that.rooms.Get(name)
	if !ok {
		log.Info("room not found")
		that.reject(client, roomUnavailable)
		return
	}

	admission, err := joined.Admit(client)
	if err != nil {
		log.Info("room refused client", "client", client.Identity().ID, "error", err)
		that.reject(client, roomUnavailable)
		return
	}

	client.room = joined

	if admission.Superseded != nil {
		_ = admission.Superseded.Close()
	}

	clientName := client.Identity().Name()

	that.broadcastRoom(joined, protocol.BuildResponse(protocol.EventJoinRoom,
		protocol.WithMessage(fmt.Sprintf("Client %s connected to %s", clientName, joined.Name()))))
	_ = client.Send(protocol.ClientsCount(admission.Count))

	if admission.Started != nil {
		log.Info("game started")
		that.broadcastRoom(joined, protocol.ChatMessage("Game is starting"))
		that.broadcastRoom(joined, protocol.GameUpdate(*admission.Started))
	}

	that.serve(ctx, client, that.roomHandlers)

	left, forfeited := joined.Leave(client)
	if !left {
		return
	}

	if forfeited {
		log.Info("game aborted", "client", client.Identity().ID)
	}

	if joined.Count() > 0 {
		that.broadcastRoom(joined, protocol.ChatMessage(clientName+" disconnected"))
	}
}

func (that *Server) broadcastRoom(target *room.Room, envelope protocol.Envelope) {
	if err := target.Broadcast(envelope); err != nil {
		that.logger.Debug("room broadcast partially failed", "room", target.Name(), "event_type", envelope.EventType, "error", err)
	}
}

func (that *Server) handleRoomChat(_ context.Context, client *Client, raw json.RawMessage) error {
	var data protocol.ChatMessageData
	if err := protocol.DecodeData(raw, &data); err != nil {
		return err
	}

	if strings.TrimSpace(data.Message) == "" {
		return apperror.ErrEmptyMessage
	}

	that.broadcastRoom(client.room, protocol.ChatMessage(data.Message, protocol.WithSender(client.Identity())))

	return nil
}

func (that *Server) handleMakeMove(_ context.Context, client *Client, raw json.RawMessage) error {
	log := client.logger.With("method", "handleMakeMove")

	var data protocol.MoveData
	if err := protocol.DecodeData(raw, &data); err != nil {
		return err
	}

	x, y, err := data.Coordinates()
	if err != nil {
		return err
	}

	actor := client.Identity()

	result, err := client.room.MakeMove(x, y, actor)
	switch {
	case errors.Is(err, apperror.ErrGameIsNotStarted):
		return client.Send(protocol.ChatMessage("Game did not start yet"))
	case err != nil:
		log.Debug("move rejected", "outcome", result.Outcome.String(), "x", x, "y", y)
		return client.Send(protocol.GameLog(notice(err)))
	}

	that.broadcastRoom(client.room, protocol.GameLog(fmt.Sprintf("%s player made a move [%d:%d]", actor.Name(), x, y)))
	that.broadcastRoom(client.room, protocol.GameUpdate(result.Status))

	if result.Finished() {
		log.Info("game finished", "winner", result.Status.WinnerName())
		that.broadcastRoom(client.room, protocol.BuildResponse(protocol.EventGameFinished, protocol.WithMessage(finishedMessage(result.Status))))
	}

	return nil
}

func finishedMessage(status entity.GameStatus) string {
	if status.IsDraw() {
		return "Game is finished, it's a draw"
	}

	return "Game is finished, the winner is " + status.WinnerName()
}

func (that *Server) handleClientsCount(_ context.Context, client *Client, _ json.RawMessage) error {
	return client.Send(protocol.ClientsCount(client.room.Count()))
}

func (that *Server) handleGameStatus(_ context.Context, client *Client, _ json.RawMessage) error {
	status, ok := client.room.GameStatus()
	if !ok {
		return client.Send(protocol.ChatMessage("Game did not start yet"))
	}

	return client.Send(protocol.GameUpdate(status))
}
