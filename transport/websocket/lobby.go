package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/protocol"
)

func (that *Server) serveLobby(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	client, ok := that.upgrade(ctx, w, r)
	if !ok {
		return
	}

	if superseded := that.lobby.Add(client); superseded != nil {
		_ = superseded.Close()
	}

	_ = client.Send(protocol.ConnectionOpen())
	_ = client.Send(protocol.RoomList(that.rooms.ListNames()))

	that.broadcastLobby(protocol.ChatMessage(client.Identity().Name() + " connected"))

	that.serve(ctx, client, that.lobbyHandlers)

	that.lobby.Remove(client)
}

func (that *Server) broadcastLobby(envelope protocol.Envelope) {
	if err := that.lobby.Broadcast(envelope); err != nil {
		that.logger.Debug("lobby broadcast partially failed", "event_type", envelope.EventType, "error", err)
	}
}

func (that *Server) handleLobbyChat(_ context.Context, client *Client, raw json.RawMessage) error {
	var data protocol.ChatMessageData
	if err := protocol.DecodeData(raw, &data); err != nil {
		return err
	}

	if strings.TrimSpace(data.Message) == "" {
		return apperror.ErrEmptyMessage
	}

	that.broadcastLobby(protocol.ChatMessage(data.Message, protocol.WithSender(client.Identity())))

	return nil
}

func (that *Server) handleCreateRoom(_ context.Context, client *Client, raw json.RawMessage) error {
	log := client.logger.With("method", "handleCreateRoom")

	var data protocol.CreateRoomData
	if err := protocol.DecodeData(raw, &data); err != nil {
		return err
	}

	if _, err := that.rooms.Create(data.Name); err != nil {
		log.Info("room not created", "room", data.Name, "error", err)
		return client.Send(protocol.BuildResponse(protocol.EventCreateRoomFailed, protocol.WithMessage(createRoomFailure(data.Name, err))))
	}

	log.Info("room created", "room", data.Name)

	if err := client.Send(protocol.BuildResponse(protocol.EventCreateRoomSuccess, protocol.WithMessage(fmt.Sprintf("Room %s created", data.Name)))); err != nil {
		log.Debug("failed to confirm room creation", "error", err)
	}

	that.broadcastRooms()

	return nil
}

func createRoomFailure(name string, err error) string {
	switch {
	case errors.Is(err, apperror.ErrRoomAlreadyExists):
		return fmt.Sprintf("Room %s already exists", name)
	case errors.Is(err, apperror.ErrEmptyRoomName):
		return "Room name is required"
	case errors.Is(err, apperror.ErrInvalidRoomName):
		return notice(apperror.ErrInvalidRoomName)
	default:
		return notice(err)
	}
}

func (that *Server) handleSetName(ctx context.Context, client *Client, raw json.RawMessage) error {
	var data protocol.SetNameData
	if err := protocol.DecodeData(raw, &data); err != nil {
		return err
	}

	identity, err := that.resolver.Rename(ctx, client.sessionID, data.Name)
	if err != nil {
		return fmt.Errorf("failed to set name: %w", err)
	}

	return client.Send(protocol.ChatMessage("Your name is now " + identity.Name()))
}
