package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"terramorph.dev/internal/persistence/indexdb"
	jsonllog "terramorph.dev/internal/persistence/log"
	"terramorph.dev/internal/persistence/snapshot"
	"terramorph.dev/internal/protocol"
	"terramorph.dev/internal/sim/settlement"
	"terramorph.dev/internal/sim/terrain"
	"terramorph.dev/internal/sim/tuning"
	"terramorph.dev/internal/sim/world"
	"terramorph.dev/internal/transport/ws"
)

type command struct {
	run  func() error
	resp chan error
}

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[host] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
	_ = os.MkdirAll(worldDir, 0o755)

	var h *world.Host
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot %s: %v", snapshotToLoad, err)
		}
		h, err = world.FromSnapshot(snap)
		if err != nil {
			logger.Fatalf("resume snapshot: %v", err)
		}
		logger.Printf("resumed %s from %s (flush_seq=%d)", tune.WorldID, snapshotToLoad, h.FlushSeq())
	} else {
		h = world.NewHost(hostConfig(tune, *seed))
		logger.Printf("fresh world %s seed=%d", tune.WorldID, *seed)
	}
	h.SetLogger(logger)

	flushLog := jsonllog.NewFlushLogger(worldDir)
	defer flushLog.Close()
	mutationLog := jsonllog.NewMutationLogger(worldDir)
	defer mutationLog.Close()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		h.SetFlushLogger(multiFlushLogger{flushLog, idx})
		h.SetMutationLogger(multiMutationLogger{mutationLog, idx})
	} else {
		h.SetFlushLogger(flushLog)
		h.SetMutationLogger(mutationLog)
	}

	joinCh := make(chan ws.JoinRequest)
	leaveCh := make(chan string)
	cmdCh := make(chan command)
	stopCh := make(chan struct{})

	wsServer := ws.NewServer(joinCh, leaveCh, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsServer.Handler())
	mux.HandleFunc("/v1/mutate", commandHandler(cmdCh, stopCh, func(body []byte) func() error {
		return func() error {
			var req struct {
				Targets [][2]int `json:"targets"`
				Raise   bool     `json:"raise"`
			}
			if err := json.Unmarshal(body, &req); err != nil {
				return err
			}
			region := make([]terrain.Location, len(req.Targets))
			for i, t := range req.Targets {
				region[i] = terrain.Location{X: t[0], Z: t[1]}
			}
			return h.ApplyMutation(region, req.Raise)
		}
	}))
	mux.HandleFunc("/v1/settlement/found", commandHandler(cmdCh, stopCh, func(body []byte) func() error {
		return func() error {
			var req struct {
				X       int    `json:"x"`
				Z       int    `json:"z"`
				Faction string `json:"faction"`
			}
			if err := json.Unmarshal(body, &req); err != nil {
				return err
			}
			_, err := h.FoundSettlement(terrain.Location{X: req.X, Z: req.Z}, req.Faction)
			return err
		}
	}))
	mux.HandleFunc("/v1/settlement/damage", commandHandler(cmdCh, stopCh, func(body []byte) func() error {
		return func() error {
			var req struct {
				ID     string `json:"id"`
				Amount int32  `json:"amount"`
			}
			if err := json.Unmarshal(body, &req); err != nil {
				return err
			}
			return h.DamageSettlement(terrain.SettlementID(req.ID), req.Amount)
		}
	}))
	mux.HandleFunc("/v1/settlement/attack", commandHandler(cmdCh, stopCh, func(body []byte) func() error {
		return func() error {
			var req struct {
				ID    string `json:"id"`
				Under bool   `json:"under"`
			}
			if err := json.Unmarshal(body, &req); err != nil {
				return err
			}
			return h.SetUnderAttack(terrain.SettlementID(req.ID), req.Under)
		}
	}))
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	httpServer := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	go hostLoop(h, tune, worldDir, idx, logger, joinCh, leaveCh, cmdCh, stopCh)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Printf("shutting down")
	close(stopCh)
	_ = httpServer.Close()

	// Final snapshot on the way out.
	path := snapshotPath(worldDir, h.FlushSeq())
	if err := snapshot.WriteSnapshot(path, h.Snapshot()); err != nil {
		logger.Printf("final snapshot: %v", err)
	} else {
		logger.Printf("final snapshot written to %s", path)
	}
}

// hostLoop is the single control flow that owns all world state. Joins,
// leaves and commands are serialized here; each command is applied to
// completion, flushed, and broadcast before the next one starts.
func hostLoop(h *world.Host, tune tuning.Tuning, worldDir string, idx *indexdb.SQLiteIndex, logger *log.Logger, joinCh chan ws.JoinRequest, leaveCh chan string, cmdCh chan command, stopCh chan struct{}) {
	clients := map[string]chan []byte{}
	nextReplica := 0
	flushesSinceSnapshot := 0

	broadcast := func() {
		for _, b := range h.DrainOutbound() {
			for id, out := range clients {
				select {
				case out <- b:
				default:
					// Slow replica: drop the connection rather than the diff.
					logger.Printf("replica %s too slow, dropping", id)
					close(out)
					delete(clients, id)
				}
			}
		}
	}

	for {
		select {
		case <-stopCh:
			for _, out := range clients {
				close(out)
			}
			return

		case req := <-joinCh:
			nextReplica++
			id := fmt.Sprintf("R%d", nextReplica)
			clients[id] = req.Out
			resp := ws.JoinResponse{
				ReplicaID: id,
				Welcome: protocol.WelcomeMsg{
					Type:            protocol.TypeWelcome,
					ProtocolVersion: protocol.Version,
					ReplicaID:       id,
					WorldParams:     h.WorldParams(),
				},
			}
			if req.WantFullState {
				if b, err := json.Marshal(h.ExportState()); err == nil {
					resp.FullState = b
				}
			}
			req.Resp <- resp
			logger.Printf("replica %s (%s) joined", id, req.Name)

		case id := <-leaveCh:
			if out, ok := clients[id]; ok {
				close(out)
				delete(clients, id)
				logger.Printf("replica %s left", id)
			}

		case cmd := <-cmdCh:
			err := cmd.run()
			if err == nil {
				h.Flush()
				broadcast()
				flushesSinceSnapshot++
				if tune.SnapshotEveryFlushes > 0 && flushesSinceSnapshot >= tune.SnapshotEveryFlushes {
					flushesSinceSnapshot = 0
					snap := h.Snapshot()
					path := snapshotPath(worldDir, snap.Header.FlushSeq)
					if werr := snapshot.WriteSnapshot(path, snap); werr != nil {
						logger.Printf("snapshot: %v", werr)
					} else if idx != nil {
						idx.RecordSnapshot(path, snap)
					}
				}
			}
			cmd.resp <- err
		}
	}
}

func commandHandler(cmdCh chan command, stopCh chan struct{}, build func(body []byte) func() error) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(rw, "POST only", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, 1<<20))
		if err != nil {
			writeCommandError(rw, http.StatusBadRequest, protocol.ErrProtoBadRequest, err)
			return
		}
		cmd := command{run: build(body), resp: make(chan error, 1)}
		select {
		case cmdCh <- cmd:
		case <-stopCh:
			// The loop has exited; nobody will pick this command up.
			http.Error(rw, "shutting down", http.StatusServiceUnavailable)
			return
		}
		if err := <-cmd.resp; err != nil {
			code := world.ErrorCode(err)
			if code == "" || !protocol.IsKnownCode(code) {
				code = protocol.ErrInternal
			}
			status := http.StatusBadRequest
			if code == protocol.ErrInternal {
				status = http.StatusInternalServerError
			}
			writeCommandError(rw, status, code, err)
			return
		}
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	}
}

func writeCommandError(rw http.ResponseWriter, status int, code string, err error) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{code, err.Error()})
}

func hostConfig(t tuning.Tuning, seed int64) world.Config {
	cfg := world.Config{
		ID:             t.WorldID,
		Seed:           seed,
		ChunkWidth:     t.ChunkWidth,
		ChunkCount:     t.ChunkCount,
		StepHeight:     t.StepHeight,
		WaterLevel:     t.WaterLevel,
		PlateauRegion:  t.PlateauRegion,
		PlateauSteps:   t.PlateauSteps,
		ForestPermille: t.ForestPermille,
		SwampPermille:  t.SwampPermille,
		RockPermille:   t.RockPermille,
	}
	var health settlement.HealthTable
	for i := 0; i < len(health) && i < len(t.TierHealth); i++ {
		health[i] = t.TierHealth[i]
	}
	cfg.TierHealth = health
	return cfg
}

func snapshotPath(worldDir string, flushSeq uint64) string {
	return filepath.Join(worldDir, "snapshots", fmt.Sprintf("snap-%012d-%s.zst", flushSeq, time.Now().UTC().Format("20060102T150405")))
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".zst") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}

// multiFlushLogger fans flush entries out to JSONL and the sqlite index.
type multiFlushLogger struct {
	jsonl *jsonllog.FlushLogger
	idx   *indexdb.SQLiteIndex
}

func (m multiFlushLogger) WriteFlush(e world.FlushLogEntry) error {
	_ = m.idx.WriteFlush(e)
	return m.jsonl.WriteFlush(e)
}

type multiMutationLogger struct {
	jsonl *jsonllog.MutationLogger
	idx   *indexdb.SQLiteIndex
}

func (m multiMutationLogger) WriteMutation(e world.MutationLogEntry) error {
	_ = m.idx.WriteMutation(e)
	return m.jsonl.WriteMutation(e)
}
