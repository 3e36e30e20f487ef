package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/tuning"
	"minefield.gg/internal/sim/world"
)

// outQueue bounds the per-session send queue. The world resyncs a session
// whose queue overflows.
const outQueue = 4096

type Server struct {
	world  *world.World
	log    *log.Logger
	limits tuning.RateLimits

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	s := &Server{
		world:  w,
		log:    logger,
		limits: tuning.Defaults().RateLimits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

// SetRateLimits replaces the per-session limits for new connections.
func (s *Server) SetRateLimits(l tuning.RateLimits) { s.limits = l }

func newLimiter(perSec float64, burst int) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

type session struct {
	playerID string
	out      chan []byte
	actions  *rate.Limiter
	queries  *rate.Limiter
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(64 * 1024)

		sess := s.handshake(conn)
		if sess == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sess.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if env, code, reason := s.decode(sess, msg); code != "" {
				s.reject(sess, code, reason)
			} else {
				select {
				case s.world.Inbox() <- env:
				default:
					s.reject(sess, protocol.ErrWorldBusy, "world inbox full")
				}
			}
		}

		// Cleanup.
		s.world.Leave() <- world.LeaveRequest{PlayerID: sess.playerID, Out: sess.out}
	}
}

// decode validates one client message and turns it into a world request. A
// non-empty code means the message was rejected.
func (s *Server) decode(sess *session, msg []byte) (world.ActionEnvelope, string, string) {
	base, err := protocol.ValidateClient(msg)
	if err != nil {
		return world.ActionEnvelope{}, protocol.ErrBadRequest, err.Error()
	}
	env := world.ActionEnvelope{PlayerID: sess.playerID, Type: base.Type}
	switch base.Type {
	case protocol.TypeClick, protocol.TypeDoubleClick, protocol.TypeFlag, protocol.TypeUnflag:
		if !sess.actions.Allow() {
			return env, protocol.ErrRateLimit, "too many actions"
		}
		var a protocol.ActionMsg
		if err := json.Unmarshal(msg, &a); err != nil {
			return env, protocol.ErrBadRequest, err.Error()
		}
		env.X, env.Y = a.X, a.Y
	case protocol.TypeQuery:
		if !sess.queries.Allow() {
			return env, protocol.ErrRateLimit, "too many queries"
		}
		var q protocol.QueryMsg
		if err := json.Unmarshal(msg, &q); err != nil {
			return env, protocol.ErrBadRequest, err.Error()
		}
		env.X, env.Y, env.W, env.H = q.X, q.Y, q.W, q.H
	default:
		return env, protocol.ErrBadRequest, "unexpected " + base.Type
	}
	return env, "", ""
}

func (s *Server) reject(sess *session, code, reason string) {
	b, err := json.Marshal(protocol.NewError(code, reason))
	if err != nil {
		return
	}
	select {
	case sess.out <- b:
	default:
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.ValidateClient(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrProtoBadRequest, "expected HELLO"))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrProtoVersion, "want protocol_version "+protocol.Version))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}

	out := make(chan []byte, outQueue)
	respCh := make(chan world.JoinResponse, 1)

	// Optional: resume an existing player (reconnect).
	if token := strings.TrimSpace(hello.ResumeToken); token != "" {
		s.world.Attach() <- world.AttachRequest{
			ResumeToken: token,
			Name:        hello.Name,
			Encodings:   hello.Capabilities.Encodings,
			Out:         out,
			Resp:        respCh,
		}
	} else {
		s.world.Join() <- world.JoinRequest{
			Name:      hello.Name,
			Encodings: hello.Capabilities.Encodings,
			Out:       out,
			Resp:      respCh,
		}
	}

	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-time.After(10 * time.Second):
		_ = writeJSON(conn, protocol.NewError(protocol.ErrWorldBusy, "join timed out"))
		// The world may still complete the join; detach it when it does.
		go func() {
			if r := <-respCh; r.Welcome.PlayerID != "" {
				s.world.Leave() <- world.LeaveRequest{PlayerID: r.Welcome.PlayerID, Out: out}
			}
		}()
		return nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- world.LeaveRequest{PlayerID: resp.Welcome.PlayerID, Out: out}
		return nil
	}
	if s.log != nil {
		s.log.Printf("player connected id=%s name=%q encoding=%s", resp.Welcome.PlayerID, hello.Name, resp.Welcome.Encoding)
	}

	return &session{
		playerID: resp.Welcome.PlayerID,
		out:      out,
		actions:  newLimiter(s.limits.ActionsPerSec, s.limits.ActionBurst),
		queries:  newLimiter(s.limits.QueriesPerSec, s.limits.QueryBurst),
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
