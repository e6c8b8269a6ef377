package protocol

// Inbound event tags.
const (
	EventChatMessage     = "chat_message"
	EventCreateRoom      = "create_room"
	EventSetName         = "set_name"
	EventMakeMove        = "make_move"
	EventGetClientsCount = "get_clients_count"
	EventSendGameStatus  = "send_game_status"
)

// Outbound event tags.
const (
	EventConnectionOpen   = "connection_open"
	EventConnectionClose  = "connection_close"
	EventGetAllRooms      = "get_all_rooms"
	EventCreateRoomFailed = "create_room_failed"
	EventJoinRoom         = "join_room"
	EventGameUpdate       = "game_update"
	EventGameLog          = "game_log"
	EventGameFinished     = "game_finished"
)

// EventCreateRoomSuccess shares its tag with the create_room request.
const EventCreateRoomSuccess = EventCreateRoom

// ServerSender is the sender of every envelope not attributed to a client.
const ServerSender = "Server"
