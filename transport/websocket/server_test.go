package websocket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/room"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/session"
)

const (
	readTimeout   = 2 * time.Second
	silenceWindow = 300 * time.Millisecond
)

type testEnv struct {
	server   *Server
	http     *httptest.Server
	signer   *session.Signer
	resolver *session.Resolver
	rooms    *room.Registry
}

type inbound struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := session.NewResolver(session.NewMemoryStore())
	signer := session.NewSigner("test-secret", time.Hour)
	rooms := room.NewRegistry()

	server := New(logger, resolver, signer, rooms, Options{})
	srv := httptest.NewServer(server.Handler(ctx))
	t.Cleanup(srv.Close)

	return &testEnv{
		server:   server,
		http:     srv,
		signer:   signer,
		resolver: resolver,
		rooms:    rooms,
	}
}

// named binds a display name to a fresh session and returns its id.
func (that *testEnv) named(t *testing.T, sessionID, name string) string {
	t.Helper()

	_, err := that.resolver.Rename(context.Background(), sessionID, name)
	require.NoError(t, err)

	return sessionID
}

func (that *testEnv) dial(t *testing.T, path, sessionID string) (*websocket.Conn, *http.Response) {
	t.Helper()

	header := http.Header{}
	if sessionID != "" {
		token, err := that.signer.Issue(sessionID)
		require.NoError(t, err)
		header.Set("Cookie", defaultCookieName+"="+token)
	}

	url := "ws" + strings.TrimPrefix(that.http.URL, "http") + path

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn, resp
}

func readNext(t *testing.T, conn *websocket.Conn) inbound {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))

	var message inbound
	require.NoError(t, conn.ReadJSON(&message))

	return message
}

// readUntil skips messages until one with eventType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) inbound {
	t.Helper()

	for {
		message := readNext(t, conn)
		if message.EventType == eventType {
			return message
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, eventType string, data any) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(map[string]any{"event_type": eventType, "data": data}))
}

func requireClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			return
		}
	}
}

// requireSilent asserts that nothing arrives on conn for a short while.
// The connection cannot be read again afterwards.
func requireSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(silenceWindow)))

	_, raw, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message: %s", raw)

	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

// joinPair seats alice then bob in alpha and drains the start notices.
func joinPair(t *testing.T, env *testEnv) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	_, err := env.rooms.Create("alpha")
	require.NoError(t, err)

	alice, _ := env.dial(t, "/ws/alpha", env.named(t, "alice-session", "alice"))
	count := readUntil(t, alice, protocol.EventGetClientsCount)
	require.Equal(t, "1", count.Data["count"])

	bob, _ := env.dial(t, "/ws/alpha", env.named(t, "bob-session", "bob"))

	for _, conn := range []*websocket.Conn{alice, bob} {
		starting := readUntil(t, conn, protocol.EventChatMessage)
		require.Equal(t, "Game is starting", starting.Data["message"])

		update := readUntil(t, conn, protocol.EventGameUpdate)
		require.Equal(t, "alice", update.Data["current_player"])
	}

	return alice, bob
}

func TestLobby(t *testing.T) {
	t.Run("Connecting opens the session and announces the client", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.rooms.Create("alpha")
		require.NoError(t, err)

		// When: a client without a cookie connects
		conn, resp := env.dial(t, "/ws", "")

		// Then: a signed session cookie is issued
		var issued *http.Cookie
		for _, cookie := range resp.Cookies() {
			if cookie.Name == defaultCookieName {
				issued = cookie
			}
		}
		require.NotNil(t, issued)
		_, err = env.signer.Parse(issued.Value)
		require.NoError(t, err)

		// And: the client is greeted with the room list and a connect notice
		assert.Equal(t, protocol.EventConnectionOpen, readNext(t, conn).EventType)

		rooms := readNext(t, conn)
		assert.Equal(t, protocol.EventGetAllRooms, rooms.EventType)
		assert.Equal(t, []any{"alpha"}, rooms.Data["rooms"])

		joined := readNext(t, conn)
		assert.Equal(t, protocol.EventChatMessage, joined.EventType)
		assert.True(t, strings.HasSuffix(joined.Data["message"].(string), " connected"))
		assert.Equal(t, protocol.ServerSender, joined.Data["sender"])
	})

	t.Run("Creating a room notifies the lobby and duplicates fail", func(t *testing.T) {
		env := newTestEnv(t)

		// Given: two lobby clients
		alice, _ := env.dial(t, "/ws", env.named(t, "alice-session", "alice"))
		readUntil(t, alice, protocol.EventChatMessage)
		bob, _ := env.dial(t, "/ws", env.named(t, "bob-session", "bob"))
		readUntil(t, bob, protocol.EventChatMessage)

		// When: alice creates a room
		send(t, alice, protocol.EventCreateRoom, map[string]any{"name": "alpha"})

		// Then: alice gets a confirmation and everybody gets the new room list
		created := readUntil(t, alice, protocol.EventCreateRoomSuccess)
		assert.Equal(t, "Room alpha created", created.Data["message"])

		list := readUntil(t, bob, protocol.EventGetAllRooms)
		assert.Equal(t, []any{"alpha"}, list.Data["rooms"])

		// When: bob tries the same name
		send(t, bob, protocol.EventCreateRoom, map[string]any{"name": "alpha"})

		// Then: bob alone is told it exists and the registry is unchanged
		failed := readUntil(t, bob, protocol.EventCreateRoomFailed)
		assert.Equal(t, "Room alpha already exists", failed.Data["message"])
		assert.Equal(t, []string{"alpha"}, env.rooms.ListNames())
	})

	t.Run("Blank room names are refused", func(t *testing.T) {
		env := newTestEnv(t)
		conn, _ := env.dial(t, "/ws", "")

		send(t, conn, protocol.EventCreateRoom, map[string]any{"name": " "})

		failed := readUntil(t, conn, protocol.EventCreateRoomFailed)
		assert.Equal(t, "Room name is required", failed.Data["message"])
	})

	t.Run("Chat is broadcast with the sender name", func(t *testing.T) {
		env := newTestEnv(t)
		alice, _ := env.dial(t, "/ws", env.named(t, "alice-session", "alice"))
		readUntil(t, alice, protocol.EventChatMessage)

		send(t, alice, protocol.EventChatMessage, map[string]any{"message": "hello"})

		message := readUntil(t, alice, protocol.EventChatMessage)
		assert.Equal(t, "hello", message.Data["message"])
		assert.Equal(t, "alice", message.Data["sender"])
	})

	t.Run("Blank chat is refused to the sender only", func(t *testing.T) {
		env := newTestEnv(t)

		// Given: two lobby clients with every greeting drained
		alice, _ := env.dial(t, "/ws", env.named(t, "alice-session", "alice"))
		readUntil(t, alice, protocol.EventChatMessage)
		bob, _ := env.dial(t, "/ws", env.named(t, "bob-session", "bob"))
		readUntil(t, bob, protocol.EventChatMessage)
		joined := readNext(t, alice)
		require.Equal(t, "bob connected", joined.Data["message"])

		// When: alice sends an empty message
		send(t, alice, protocol.EventChatMessage, map[string]any{"message": "  "})

		// Then: alice is told and bob hears nothing
		reply := readNext(t, alice)
		assert.Equal(t, protocol.EventChatMessage, reply.EventType)
		assert.Equal(t, "Message is empty", reply.Data["message"])
		assert.Equal(t, protocol.ServerSender, reply.Data["sender"])
		requireSilent(t, bob)
	})

	t.Run("A session id failure refuses the upgrade", func(t *testing.T) {
		// Given: the id source fails
		env := newTestEnv(t)
		env.server.newSessionID = func() (string, error) { return "", errors.New("no entropy") }

		// When: a client without a cookie connects
		url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"
		conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if conn != nil {
			_ = conn.Close()
		}

		// Then: the handshake fails with a server error and nobody joins the lobby
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Zero(t, env.server.lobby.Len())
	})

	t.Run("Set name persists for the next connection", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.rooms.Create("alpha")
		require.NoError(t, err)

		conn, _ := env.dial(t, "/ws", "carol-session")
		readUntil(t, conn, protocol.EventChatMessage)

		send(t, conn, protocol.EventSetName, map[string]any{"name": "carol"})
		reply := readUntil(t, conn, protocol.EventChatMessage)
		assert.Equal(t, "Your name is now carol", reply.Data["message"])

		roomConn, _ := env.dial(t, "/ws/alpha", "carol-session")
		joined := readUntil(t, roomConn, protocol.EventJoinRoom)
		assert.Equal(t, "Client carol connected to alpha", joined.Data["message"])
	})

	t.Run("A second lobby connection supersedes the first", func(t *testing.T) {
		env := newTestEnv(t)

		stale, _ := env.dial(t, "/ws", "alice-session")
		readUntil(t, stale, protocol.EventChatMessage)

		fresh, _ := env.dial(t, "/ws", "alice-session")
		readUntil(t, fresh, protocol.EventConnectionOpen)

		requireClosed(t, stale)
		require.Eventually(t, func() bool { return env.server.lobby.Len() == 1 }, readTimeout, 10*time.Millisecond)
	})
}

func TestProtocol(t *testing.T) {
	t.Run("A frame without an event type closes the connection", func(t *testing.T) {
		env := newTestEnv(t)
		conn, _ := env.dial(t, "/ws", "")
		readUntil(t, conn, protocol.EventChatMessage)

		require.NoError(t, conn.WriteJSON(map[string]any{"data": map[string]any{}}))

		readUntil(t, conn, protocol.EventConnectionClose)
		requireClosed(t, conn)
		require.Eventually(t, func() bool { return env.server.lobby.Len() == 0 }, readTimeout, 10*time.Millisecond)
	})

	t.Run("Unknown events are dropped without a reply", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.rooms.Create("alpha")
		require.NoError(t, err)

		conn, _ := env.dial(t, "/ws/alpha", "")
		readUntil(t, conn, protocol.EventGetClientsCount)

		send(t, conn, "dance", map[string]any{})
		send(t, conn, protocol.EventGetClientsCount, map[string]any{})

		next := readNext(t, conn)
		assert.Equal(t, protocol.EventGetClientsCount, next.EventType)
		assert.Equal(t, "1", next.Data["count"])
	})

	t.Run("Bad payloads are reported to the sender only", func(t *testing.T) {
		// Given: a room with a running game
		env := newTestEnv(t)
		alice, bob := joinPair(t, env)

		// When: alice sends coordinates that are not numbers
		send(t, alice, protocol.EventMakeMove, map[string]any{"x": "left", "y": 1})

		// Then: alice gets the reason and bob hears nothing
		notice := readNext(t, alice)
		assert.Equal(t, protocol.EventChatMessage, notice.EventType)
		assert.Contains(t, notice.Data["message"], "coordinate")
		requireSilent(t, bob)
	})
}

func TestRoom(t *testing.T) {
	t.Run("Joining announces the client and reports the count", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.rooms.Create("alpha")
		require.NoError(t, err)

		alice, _ := env.dial(t, "/ws/alpha", env.named(t, "alice-session", "alice"))

		joined := readNext(t, alice)
		assert.Equal(t, protocol.EventJoinRoom, joined.EventType)
		assert.Equal(t, "Client alice connected to alpha", joined.Data["message"])

		count := readNext(t, alice)
		assert.Equal(t, protocol.EventGetClientsCount, count.EventType)
		assert.Equal(t, map[string]any{"count": "1"}, count.Data)
	})

	t.Run("Moving before the game starts is refused", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.rooms.Create("alpha")
		require.NoError(t, err)

		alice, _ := env.dial(t, "/ws/alpha", "")
		readUntil(t, alice, protocol.EventGetClientsCount)

		send(t, alice, protocol.EventMakeMove, map[string]any{"x": 0, "y": 0})

		notice := readUntil(t, alice, protocol.EventChatMessage)
		assert.Equal(t, "Game did not start yet", notice.Data["message"])

		send(t, alice, protocol.EventSendGameStatus, nil)
		notice = readUntil(t, alice, protocol.EventChatMessage)
		assert.Equal(t, "Game did not start yet", notice.Data["message"])
	})

	t.Run("A full game ends with the winner announced", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := joinPair(t, env)

		// When: bob moves out of turn
		send(t, bob, protocol.EventMakeMove, map[string]any{"x": 1, "y": 1})

		// Then: only bob is told and the board is untouched
		rejected := readUntil(t, bob, protocol.EventGameLog)
		assert.Equal(t, "It's not your turn", rejected.Data["message"])

		// When: alice makes the first move
		send(t, alice, protocol.EventMakeMove, map[string]any{"x": 0, "y": 0})

		// Then: the next thing alice sees is her own move, not bob's rejection
		first := readNext(t, alice)
		assert.Equal(t, protocol.EventGameLog, first.EventType)
		assert.Equal(t, "alice player made a move [0:0]", first.Data["message"])
		readUntil(t, alice, protocol.EventGameUpdate)
		readUntil(t, bob, protocol.EventGameUpdate)

		// When: the players alternate until alice completes row 0
		moves := []struct {
			conn *websocket.Conn
			x, y any
		}{
			{bob, "2", "2"}, {alice, 0, 1}, {bob, 2, 1}, {alice, 0, 2},
		}
		for _, move := range moves {
			send(t, move.conn, protocol.EventMakeMove, map[string]any{"x": move.x, "y": move.y})
			readUntil(t, alice, protocol.EventGameUpdate)
			readUntil(t, bob, protocol.EventGameUpdate)
		}

		// Then: both players see the result and the game is discarded
		for _, conn := range []*websocket.Conn{alice, bob} {
			finished := readUntil(t, conn, protocol.EventGameFinished)
			assert.Equal(t, "Game is finished, the winner is alice", finished.Data["message"])
		}

		alpha, ok := env.rooms.Get("alpha")
		require.True(t, ok)
		_, running := alpha.GameStatus()
		assert.False(t, running)
	})

	t.Run("Moves are logged and the status can be requested", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := joinPair(t, env)

		send(t, alice, protocol.EventMakeMove, map[string]any{"x": 1, "y": 2})

		logged := readUntil(t, bob, protocol.EventGameLog)
		assert.Equal(t, "alice player made a move [1:2]", logged.Data["message"])

		update := readUntil(t, bob, protocol.EventGameUpdate)
		assert.Equal(t, []any{
			[]any{float64(0), float64(0), float64(0)},
			[]any{float64(0), float64(0), float64(1)},
			[]any{float64(0), float64(0), float64(0)},
		}, update.Data["board"])
		assert.Equal(t, "bob", update.Data["current_player"])
		assert.Nil(t, update.Data["winner"])

		send(t, bob, protocol.EventSendGameStatus, map[string]any{})
		status := readUntil(t, bob, protocol.EventGameUpdate)
		assert.Equal(t, update.Data["board"], status.Data["board"])
	})

	t.Run("An out of bounds move is reported to the mover only", func(t *testing.T) {
		// Given: a started game
		env := newTestEnv(t)
		alice, bob := joinPair(t, env)

		// When: alice plays outside the board
		send(t, alice, protocol.EventMakeMove, map[string]any{"x": 5, "y": 5})

		// Then: alice alone gets the reason
		rejected := readNext(t, alice)
		assert.Equal(t, protocol.EventGameLog, rejected.EventType)
		assert.Equal(t, "Incorrect coordinates", rejected.Data["message"])

		// And: the game is unchanged
		send(t, alice, protocol.EventSendGameStatus, map[string]any{})
		status := readNext(t, alice)
		assert.Equal(t, protocol.EventGameUpdate, status.EventType)
		assert.Equal(t, []any{
			[]any{float64(0), float64(0), float64(0)},
			[]any{float64(0), float64(0), float64(0)},
			[]any{float64(0), float64(0), float64(0)},
		}, status.Data["board"])
		assert.Equal(t, float64(1), status.Data["turn"])
		assert.Equal(t, "alice", status.Data["current_player"])

		requireSilent(t, bob)
	})

	t.Run("Blank room chat is refused to the sender only", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := joinPair(t, env)

		send(t, bob, protocol.EventChatMessage, map[string]any{})

		reply := readNext(t, bob)
		assert.Equal(t, "Message is empty", reply.Data["message"])
		requireSilent(t, alice)
	})

	t.Run("A third identity is turned away", func(t *testing.T) {
		env := newTestEnv(t)
		joinPair(t, env)

		carol, _ := env.dial(t, "/ws/alpha", "carol-session")

		closing := readNext(t, carol)
		assert.Equal(t, protocol.EventConnectionClose, closing.EventType)
		assert.Equal(t, roomUnavailable, closing.Data["message"])
		requireClosed(t, carol)

		alpha, _ := env.rooms.Get("alpha")
		assert.Equal(t, 2, alpha.Count())
	})

	t.Run("A missing room is turned away", func(t *testing.T) {
		env := newTestEnv(t)

		conn, _ := env.dial(t, "/ws/nowhere", "")

		closing := readNext(t, conn)
		assert.Equal(t, protocol.EventConnectionClose, closing.EventType)
		assert.Equal(t, roomUnavailable, closing.Data["message"])
		requireClosed(t, conn)
	})

	t.Run("Disconnecting mid game forfeits it", func(t *testing.T) {
		env := newTestEnv(t)
		alice, bob := joinPair(t, env)

		// When: bob drops
		require.NoError(t, bob.Close())

		// Then: alice is told and the game is gone without a winner
		notice := readUntil(t, alice, protocol.EventChatMessage)
		assert.Equal(t, "bob disconnected", notice.Data["message"])

		alpha, _ := env.rooms.Get("alpha")
		require.Eventually(t, func() bool {
			_, running := alpha.GameStatus()
			return !running && alpha.Count() == 1
		}, readTimeout, 10*time.Millisecond)
	})

	t.Run("Reconnecting supersedes the stale transport without forfeiting", func(t *testing.T) {
		env := newTestEnv(t)
		stale, _ := joinPair(t, env)

		// When: alice reconnects with the same session
		fresh, _ := env.dial(t, "/ws/alpha", "alice-session")
		count := readUntil(t, fresh, protocol.EventGetClientsCount)
		assert.Equal(t, "2", count.Data["count"])

		// Then: the stale transport is closed and its cleanup changes nothing
		requireClosed(t, stale)

		alpha, _ := env.rooms.Get("alpha")
		require.Never(t, func() bool {
			_, running := alpha.GameStatus()
			return !running || alpha.Count() != 2
		}, 200*time.Millisecond, 10*time.Millisecond)

		send(t, fresh, protocol.EventMakeMove, map[string]any{"x": 0, "y": 0})
		update := readUntil(t, fresh, protocol.EventGameUpdate)
		assert.Equal(t, "bob", update.Data["current_player"])
	})

	t.Run("Removing a room closes its members and refreshes the lobby", func(t *testing.T) {
		env := newTestEnv(t)
		lobby, _ := env.dial(t, "/ws", "")
		readUntil(t, lobby, protocol.EventChatMessage)

		alice, _ := joinPair(t, env)

		require.NoError(t, env.server.RemoveRoom("alpha"))

		closing := readUntil(t, alice, protocol.EventConnectionClose)
		assert.Equal(t, "Room alpha was removed", closing.Data["message"])
		requireClosed(t, alice)

		list := readUntil(t, lobby, protocol.EventGetAllRooms)
		assert.Equal(t, []any{}, list.Data["rooms"])
		assert.Empty(t, env.server.ListRooms())
	})
}

func TestOptions(t *testing.T) {
	options := Options{PongWait: 10 * time.Second}.withDefaults()

	assert.Equal(t, 9*time.Second, options.PingPeriod())
	assert.Equal(t, defaultCookieName, options.CookieName)
	assert.Equal(t, defaultSendBuffer, options.SendBuffer)
}

func TestNotice(t *testing.T) {
	assert.Equal(t, "It's not your turn", notice(apperror.ErrNotYourTurn))
	assert.Equal(t, "Something went wrong", notice(errHandlerPanic))
}
