package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/mirror"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "player name")
		encoding = flag.String("encoding", "ZSTD", "preferred CHUNK/RECT encoding")
		every    = flag.Duration("every", 500*time.Millisecond, "delay between actions")
		x        = flag.Int("x", -32, "view left")
		y        = flag.Int("y", -32, "view top")
		size     = flag.Int("size", 64, "view edge in tiles")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "move selection seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            *name,
		Capabilities: protocol.HelloCapabilities{
			Encodings: []string{*encoding, "RAW"},
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	// Reader goroutine; the replica is only touched by the loop below.
	inbound := make(chan []byte, 1024)
	go func() {
		defer close(inbound)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			inbound <- msg
		}
	}()

	var (
		replica  *mirror.Replica
		playerID string
		view     = geom.RectFromSize(geom.Pos{X: *x, Y: *y}, *size, *size)
		plan     = &planner{rng: rand.New(rand.NewSource(*seed)), view: view}
		ticker   = time.NewTicker(*every)
	)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case msg, ok := <-inbound:
			if !ok {
				logger.Printf("connection closed")
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeWelcome:
				var w protocol.WelcomeMsg
				if err := json.Unmarshal(msg, &w); err != nil {
					continue
				}
				playerID = w.PlayerID
				replica = mirror.NewReplica(0)
				logger.Printf("WELCOME player_id=%s encoding=%s mines_per_chunk=%d boundary_r=%d",
					w.PlayerID, w.Encoding, w.WorldParams.MinesPerChunk, w.WorldParams.BoundaryR)
				_ = conn.WriteJSON(protocol.QueryMsg{Type: protocol.TypeQuery, X: view.Min.X, Y: view.Min.Y, W: view.Width(), H: view.Height()})
			case protocol.TypeError:
				var e protocol.ErrorMsg
				if json.Unmarshal(msg, &e) == nil {
					logger.Printf("ERROR code=%s message=%s", e.Code, e.Message)
				}
			default:
				if replica == nil {
					continue
				}
				res, err := replica.Apply(msg)
				if err != nil {
					logger.Printf("apply %s: %v", base.Type, err)
					continue
				}
				if res.Fatal {
					if p, ok := replica.Player(playerID); ok && p.DeadUntilMS > 0 {
						logger.Printf("hit a mine; deaths=%d points=%d", p.Deaths, p.Points)
					}
				}
			}
		case <-ticker.C:
			if replica == nil {
				continue
			}
			if p, ok := replica.Player(playerID); ok && p.DeadUntilMS > time.Now().UnixMilli() {
				continue
			}
			m, ok := plan.next(replica)
			if !ok {
				continue
			}
			if err := conn.WriteJSON(protocol.ActionMsg{Type: m.Type, X: m.At.X, Y: m.At.Y}); err != nil {
				logger.Printf("send %s: %v", m.Type, err)
				return
			}
		}
	}
}
