package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/room"
)

const shutdownTimeout = 5 * time.Second

const (
	defaultCookieName     = "user_session"
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 4096
	defaultSendBuffer     = 64
)

type identityResolver interface {
	Resolve(ctx context.Context, sessionID string) (entity.Identity, error)
	Rename(ctx context.Context, sessionID, displayName string) (entity.Identity, error)
}

type tokenSigner interface {
	Issue(sessionID string) (string, error)
	Parse(token string) (string, error)
}

type Options struct {
	CookieName     string
	SessionTTL     time.Duration
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func OptionsFromConfig(conf *config.Config) Options {
	return Options{
		CookieName:     conf.Session.CookieName,
		SessionTTL:     conf.Session.TTL,
		WriteWait:      conf.Websocket.WriteWait,
		PongWait:       conf.Websocket.PongWait,
		MaxMessageSize: conf.Websocket.MaxMessageSize,
		SendBuffer:     conf.Websocket.SendBuffer,
	}
}

func (that Options) withDefaults() Options {
	if that.CookieName == "" {
		that.CookieName = defaultCookieName
	}
	if that.WriteWait <= 0 {
		that.WriteWait = defaultWriteWait
	}
	if that.PongWait <= 0 {
		that.PongWait = defaultPongWait
	}
	if that.MaxMessageSize <= 0 {
		that.MaxMessageSize = defaultMaxMessageSize
	}
	if that.SendBuffer <= 0 {
		that.SendBuffer = defaultSendBuffer
	}

	return that
}

// PingPeriod must stay below PongWait.
func (that Options) PingPeriod() time.Duration {
	return that.PongWait * 9 / 10
}

type Server struct {
	logger   *slog.Logger
	options  Options
	resolver identityResolver
	signer   tokenSigner
	upgrader websocket.Upgrader

	newSessionID func() (string, error)

	rooms *room.Registry
	lobby *room.ClientSet

	lobbyHandlers map[string]handlerFunc
	roomHandlers  map[string]handlerFunc
}

func New(logger *slog.Logger, resolver identityResolver, signer tokenSigner, rooms *room.Registry, options Options) *Server {
	server := &Server{
		logger:   logger.With("component", "websocket"),
		options:  options.withDefaults(),
		resolver: resolver,
		signer:   signer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		rooms:        rooms,
		lobby:        room.NewClientSet(),
		newSessionID: pkg.GenerateNewSessionID,
	}

	server.lobbyHandlers = map[string]handlerFunc{
		protocol.EventChatMessage: server.handleLobbyChat,
		protocol.EventCreateRoom:  server.handleCreateRoom,
		protocol.EventSetName:     server.handleSetName,
	}

	server.roomHandlers = map[string]handlerFunc{
		protocol.EventChatMessage:     server.handleRoomChat,
		protocol.EventMakeMove:        server.handleMakeMove,
		protocol.EventGetClientsCount: server.handleClientsCount,
		protocol.EventSendGameStatus:  server.handleGameStatus,
	}

	return server
}

// Handler routes /ws to the lobby and /ws/{room} to a room. ctx bounds every connection.
func (that *Server) Handler(ctx context.Context) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveLobby(ctx, w, r)
	})

	router.HandleFunc("/ws/{room}", func(w http.ResponseWriter, r *http.Request) {
		that.serveRoom(ctx, w, r, mux.Vars(r)["room"])
	})

	return router
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	log := that.logger.With("method", "Start")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown server", "error", err)
		}

		that.closeAll()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// closeAll closes every hijacked connection, which Shutdown leaves alone.
func (that *Server) closeAll() {
	if err := that.lobby.Close(); err != nil {
		that.logger.Warn("failed to close lobby connections", "error", err)
	}

	for _, name := range that.rooms.ListNames() {
		if r, ok := that.rooms.Get(name); ok {
			for _, member := range r.Evict() {
				_ = member.Close()
			}
		}
	}
}

// upgrade resolves the session and upgrades the connection. The returned client
// has its write pump running.
func (that *Server) upgrade(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Client, bool) {
	log := that.logger.With("method", "upgrade")

	sessionID, header, err := that.sessionID(r)
	if err != nil {
		log.Error("failed to issue session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}

	conn, err := that.upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Warn("failed to upgrade connection", "error", err)
		return nil, false
	}

	identity, err := that.resolver.Resolve(ctx, sessionID)

	client := newClient(conn, that.logger, that.options, sessionID, identity)
	go client.writePump()

	if err != nil {
		log.Error("failed to resolve identity", "error", err)
		that.reject(client, "Could not resolve session")
		return nil, false
	}

	log.Debug("connection established", "client", identity.ID, "path", r.URL.Path)

	return client, true
}

// reject sends a close notice and tears the connection down.
func (that *Server) reject(client *Client, reason string) {
	_ = client.Send(protocol.ConnectionClose(reason))
	_ = client.Close()
	client.wait()
}

// serve runs the read loop of client until it ends, then stops its write pump.
func (that *Server) serve(ctx context.Context, client *Client, handlers map[string]handlerFunc) {
	log := client.logger.With("method", "serve")

	err := client.readLoop(func(raw []byte) error {
		return that.dispatch(ctx, client, handlers, raw)
	})

	switch {
	case errors.Is(err, apperror.ErrProtocolViolation):
		_ = client.Send(protocol.ConnectionClose(notice(err)))
	case err != nil:
		log.Debug("read loop ended", "error", err)
	}

	_ = client.Close()
	client.wait()
}

// RemoveRoom drops a room, closes its members and refreshes the lobby.
func (that *Server) RemoveRoom(name string) error {
	removed, err := that.rooms.Remove(name)
	if err != nil {
		return err
	}

	for _, member := range removed.Evict() {
		_ = member.Send(protocol.ConnectionClose(fmt.Sprintf("Room %s was removed", name)))
		_ = member.Close()
	}

	that.broadcastRooms()

	return nil
}

func (that *Server) ListRooms() []string {
	return that.rooms.ListNames()
}

func (that *Server) broadcastRooms() {
	if err := that.lobby.Broadcast(protocol.RoomList(that.rooms.ListNames())); err != nil {
		that.logger.Debug("room list not delivered to every lobby client", "error", err)
	}
}
