package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger *slog.Logger
	rooms  roomAdmin
}

func New(logger *slog.Logger, rooms roomAdmin) *Server {
	return &Server{
		logger: logger.With("component", "rest"),
		rooms:  rooms,
	}
}

func (that *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/ping", NewPingHandler().PingHandler).Methods(http.MethodGet)

	roomHandlers := newRoomHandlers(that.logger, that.rooms)
	router.HandleFunc("/rooms", roomHandlers.ListRooms).Methods(http.MethodGet)
	router.HandleFunc("/rooms/{name}", roomHandlers.RemoveRoom).Methods(http.MethodDelete)

	return router
}

// Start - starts HTTP server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
