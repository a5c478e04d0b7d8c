package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"terramorph.dev/internal/protocol"
)

// JoinRequest is handed to the host loop when a replica connects. The host
// answers on Resp and thereafter broadcasts flush output to Out.
type JoinRequest struct {
	Name          string
	WantFullState bool
	Out           chan []byte
	Resp          chan JoinResponse
}

type JoinResponse struct {
	ReplicaID string
	Welcome   protocol.WelcomeMsg
	FullState json.RawMessage // empty when the replica regenerates from seed
}

// Server accepts passive replicas over websocket. It assumes the underlying
// connection is reliable and ordered; there is no retry logic here.
type Server struct {
	join  chan<- JoinRequest
	leave chan<- string
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(join chan<- JoinRequest, leave chan<- string, logger *log.Logger) *Server {
	return &Server{
		join:  join,
		leave: leave,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		replicaID, out := s.handshake(conn)
		if replicaID == "" {
			return
		}

		done := make(chan struct{})

		// Writer goroutine: replicas receive everything the host flushes.
		go func() {
			defer close(done)
			for b := range out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		// Reader loop: replicas are passive, anything they send is ignored.
		// The read keeps ping/pong alive and detects disconnects.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		s.leave <- replicaID
		<-done
	}
}

func (s *Server) handshake(conn *websocket.Conn) (replicaID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	if hello.ReplicaName == "" {
		hello.ReplicaName = "replica"
	}

	out = make(chan []byte, 256)
	respCh := make(chan JoinResponse, 1)
	s.join <- JoinRequest{
		Name:          hello.ReplicaName,
		WantFullState: hello.WantFullState,
		Out:           out,
		Resp:          respCh,
	}
	resp := <-respCh

	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", nil
	}
	if len(resp.FullState) > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, resp.FullState); err != nil {
			return "", nil
		}
	}

	return resp.ReplicaID, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
