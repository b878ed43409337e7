package transport

import (
	"sync"

	"github.com/gorilla/websocket"
)

// wsSocket adapts a gorilla connection to the Socket interface.
//
// gorilla supports one concurrent reader and one concurrent writer; the
// write mutex serialises WriteJSON calls from the connection loop and from
// live Start/Stop subscribe calls.
type wsSocket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewSocket wraps an open gorilla connection as a Socket.
func NewSocket(conn *websocket.Conn) Socket {
	return &wsSocket{conn: conn}
}

// ReadMessage returns the next text frame. Non-text frames (binary, and any
// control frames the library surfaces) are skipped.
func (s *wsSocket) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (s *wsSocket) WriteJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *wsSocket) Close() error {
	return s.conn.Close()
}
