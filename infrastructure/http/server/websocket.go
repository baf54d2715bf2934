package server

import (
	"encoding/json"
	"net/http"
	"time"

	"problem-map/auth"
	"problem-map/domain/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Frame events
const (
	joinChat = "join_chat"
	joinMap  = "join_map"
	leave    = "leave"
	left     = "left"
)

var websocketUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type clientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type roomData struct {
	ChatID string `json:"chat_id"`
	Room   string `json:"room"`
}

type serverFrame struct {
	Event    string `json:"event"`
	Room     string `json:"room,omitempty"`
	Revision uint64 `json:"revision,omitempty"`
	Data     any    `json:"data"`
}

func errorFrame(message string) serverFrame {
	return serverFrame{Event: string(event.Failure), Data: errorResponse{Error: message}}
}

func notificationFrame(n event.Notification) serverFrame {
	return serverFrame{Event: string(n.Name), Room: string(n.Room), Revision: n.Revision, Data: n.Payload}
}

// roomRevisions remembers the newest snapshot pushed per room, so a notification
// still queued in the sink from before a join is not sent after the join reply.
type roomRevisions map[event.Room]uint64

func (r roomRevisions) advance(n event.Notification) bool {
	if n.Revision <= r[n.Room] {
		return false
	}
	r[n.Room] = n.Revision
	return true
}

// serveWebsocket registers a dedicated Sink for the connection and pushes every
// snapshot of the rooms it joined. The connection is its only writer: replies
// and notifications are serialized by the loop below.
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	socket, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Problem initiating websocket", "error", err)
		return
	}
	defer socket.Close()

	userID, _ := auth.UserIDFromContext(r.Context())
	participantID := uuid.NewString()
	sink := NewWebsocketSink(s.log, s.connectionBufferSize)
	defer s.chatService.Disconnect(participantID)
	s.log.Debug("Websocket connected", "user_id", userID, "participant_id", participantID)

	// Ping/pong lets the server notice when the client goes away.
	_ = socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	done := make(chan struct{})
	defer close(done)
	frames := receiveFrames(socket, done)
	revisions := roomRevisions{}

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := socket.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
				s.log.Debug("Failed to write ping", "participant_id", participantID, "error", err)
				return
			}
		case raw, ok := <-frames:
			if !ok {
				s.log.Debug("Websocket disconnected", "participant_id", participantID)
				return
			}
			if err := s.write(socket, s.handleFrame(participantID, sink, revisions, raw)); err != nil {
				return
			}
		case n := <-sink.ConnectedUserEvent:
			if !revisions.advance(n) {
				s.log.Debug("Outdated snapshot dropped", "participant_id", participantID,
					"room", string(n.Room), "revision", n.Revision)
				continue
			}
			if err := s.write(socket, notificationFrame(n)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleFrame(participantID string, sink *Sink, revisions roomRevisions, raw []byte) serverFrame {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return errorFrame("malformed frame")
	}
	var data roomData
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return errorFrame("malformed data")
		}
	}

	switch frame.Event {
	case joinChat:
		if data.ChatID == "" {
			return errorFrame("chat_id is required")
		}
		return s.join(participantID, event.ChatRoom(data.ChatID), sink, revisions)
	case joinMap:
		return s.join(participantID, event.MapRoom, sink, revisions)
	case leave:
		if data.Room == "" {
			return errorFrame("room is required")
		}
		s.chatService.LeaveRoom(participantID, event.Room(data.Room))
		delete(revisions, event.Room(data.Room))
		return serverFrame{Event: left, Room: data.Room}
	default:
		return errorFrame("unknown event " + frame.Event)
	}
}

func (s *Server) join(participantID string, room event.Room, sink *Sink, revisions roomRevisions) serverFrame {
	n := s.chatService.JoinRoom(participantID, room, sink)
	revisions[room] = max(revisions[room], n.Revision)
	return notificationFrame(n)
}

func (s *Server) write(socket *websocket.Conn, frame serverFrame) error {
	_ = socket.SetWriteDeadline(time.Now().Add(writeWait))
	if err := socket.WriteJSON(frame); err != nil {
		s.log.Debug("Failed to push frame", "event", frame.Event, "error", err)
		return err
	}
	return nil
}

// receiveFrames reads until the socket fails, which also happens once the
// handler closes it.
func receiveFrames(socket *websocket.Conn, done <-chan struct{}) <-chan []byte {
	frames := make(chan []byte)
	go func() {
		defer close(frames)
		for {
			_, raw, err := socket.ReadMessage()
			if err != nil {
				return
			}
			select {
			case frames <- raw:
			case <-done:
				return
			}
		}
	}()
	return frames
}
