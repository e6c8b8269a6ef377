package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
)

type roomAdmin interface {
	ListRooms() []string
	RemoveRoom(name string) error
}

type roomHandlers struct {
	logger *slog.Logger
	rooms  roomAdmin
}

func newRoomHandlers(logger *slog.Logger, rooms roomAdmin) *roomHandlers {
	return &roomHandlers{
		logger: logger,
		rooms:  rooms,
	}
}

type roomListResponse struct {
	Rooms []string `json:"rooms"`
}

func (that *roomHandlers) ListRooms(w http.ResponseWriter, _ *http.Request) {
	names := that.rooms.ListRooms()
	if names == nil {
		names = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(roomListResponse{Rooms: names}); err != nil {
		that.logger.Error("failed to encode room list", "error", err)
	}
}

func (that *roomHandlers) RemoveRoom(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "RemoveRoom")

	name := mux.Vars(r)["name"]

	err := that.rooms.RemoveRoom(name)
	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		http.Error(w, "room not found", http.StatusNotFound)
		return
	case err != nil:
		log.Error("failed to remove room", "room", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	log.Info("room removed", "room", name)
	w.WriteHeader(http.StatusNoContent)
}
