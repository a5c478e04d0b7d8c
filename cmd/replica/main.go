package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"terramorph.dev/internal/protocol"
	"terramorph.dev/internal/sim/terrain"
	"terramorph.dev/internal/sim/world"
)

// logRebuilder stands in for the renderer: it logs each chunk the host asked
// us to re-mesh.
type logRebuilder struct {
	log *log.Logger
	n   int
}

func (l *logRebuilder) RebuildChunk(ci terrain.ChunkIndex) {
	l.n++
	l.log.Printf("rebuild chunk (%d,%d) [total %d]", ci.CX, ci.CZ, l.n)
}

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name      = flag.String("name", "replica", "replica name")
		fullState = flag.Bool("full_state", false, "request a full state dump instead of regenerating from seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[replica] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ReplicaName:     *name,
		WantFullState:   *fullState,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var rep *world.Replica
	rebuilder := &logRebuilder{log: logger}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			logger.Fatalf("protocol violation: %v", err)
		}

		if base.Type == protocol.TypeWelcome {
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				logger.Fatalf("bad WELCOME: %v", err)
			}
			rep = world.NewReplica(world.Config{
				ID:             w.WorldParams.WorldID,
				Seed:           w.WorldParams.Seed,
				ChunkWidth:     w.WorldParams.ChunkWidth,
				ChunkCount:     w.WorldParams.ChunkCount,
				StepHeight:     w.WorldParams.StepHeight,
				WaterLevel:     w.WorldParams.WaterLevel,
				PlateauRegion:  w.WorldParams.PlateauRegion,
				PlateauSteps:   w.WorldParams.PlateauSteps,
				ForestPermille: w.WorldParams.ForestPermille,
				SwampPermille:  w.WorldParams.SwampPermille,
				RockPermille:   w.WorldParams.RockPermille,
			}, rebuilder)
			logger.Printf("WELCOME id=%s world=%s seed=%d digest=%s",
				w.ReplicaID, w.WorldParams.WorldID, w.WorldParams.Seed, rep.Field().Digest()[:12])
			continue
		}

		if rep == nil {
			logger.Fatalf("message before WELCOME: %s", base.Type)
		}
		if err := rep.Apply(msg); err != nil {
			// Protocol violations mean a corrupted stream; there is no
			// recovery short of a resync.
			logger.Fatalf("apply %s: %v", base.Type, err)
		}
	}
}
