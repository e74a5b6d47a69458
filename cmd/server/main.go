package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cowboys.arena/internal/game"
	persistlog "cowboys.arena/internal/persistence/log"
	"cowboys.arena/internal/persistence/snapshot"
	"cowboys.arena/internal/sim/grid"
	"cowboys.arena/internal/sim/tuning"
	"cowboys.arena/internal/team"
	"cowboys.arena/internal/transport/api"
	"cowboys.arena/internal/transport/observer"
	"cowboys.arena/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		schemaDir  = flag.String("schemas", "./schemas", "json schema directory (program uploads are validated when present)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model (sub-turns, stats, snapshots, audit)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
		autostart  = flag.Bool("autostart", false, "start the turn timer right away")
		obsLocal   = flag.Bool("observer_loopback_only", false, "serve the map stream to local viewers only")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if len(tune.Teams) == 0 {
		logger.Fatalf("tuning %s lists no teams", tp)
	}

	saveDir := filepath.Join(*dataDir, "saves")
	teams, err := team.NewRegistry(filepath.Join(*dataDir, "teams"), tune.Teams,
		log.New(os.Stdout, "[team] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("load teams: %v", err)
	}

	// Create the board (fresh or resumed from snapshot).
	gcfg := tune.GridConfig()
	gcfg.Logger = log.New(os.Stdout, "[grid] ", log.LstdFlags|log.Lmicroseconds)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		if snapshotToLoad, err = snapshot.Latest(saveDir); err != nil {
			logger.Fatalf("list snapshots: %v", err)
		}
	}
	var g *grid.Grid
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot %s: %v", snapshotToLoad, err)
		}
		if g, err = grid.NewBlank(gcfg); err != nil {
			logger.Fatalf("grid: %v", err)
		}
		if err := g.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot %s: %v", snapshotToLoad, err)
		}
		logger.Printf("resumed from %s (turn %d, bullet sub-turn %d)", snapshotToLoad, snap.TurnIdx, snap.BulletSubturn)
	} else {
		if g, err = grid.New(gcfg); err != nil {
			logger.Fatalf("new game: %v", err)
		}
		logger.Printf("new game %dx%d, %d teams, seed %d", tune.Width, tune.Height, len(tune.Teams), tune.Seed)
	}

	// Optional: read-model index backend (does not affect the game).
	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	resultLog := persistlog.NewResultLogger(*dataDir)
	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer resultLog.Close()
	defer auditLog.Close()

	gm, err := game.New(game.Config{
		Tuning:     tune,
		SaveDir:    saveDir,
		ArchiveDir: filepath.Join(*dataDir, "archives"),
		Logger:     log.New(os.Stdout, "[game] ", log.LstdFlags|log.Lmicroseconds),
	}, g, teams)
	if err != nil {
		logger.Fatalf("game: %v", err)
	}
	gm.SetResultSink(resultLog)
	if idx != nil {
		gm.SetIndex(idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	obsSrv := observer.NewServer(gm, teams.Logins(), log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))
	obsSrv.LoopbackOnly = *obsLocal
	gm.AddListener(obsSrv)
	wsSrv := ws.NewServer(gm, logger)
	gm.AddListener(wsSrv)

	var saveSchema *jsonschema.Schema
	if s, err := jsonschema.Compile(filepath.Join(*schemaDir, "save_program.schema.json")); err != nil {
		logger.Printf("program upload schema not loaded: %v", err)
	} else {
		saveSchema = s
	}
	apiSrv := api.NewServer(api.Config{
		Org:        tune.Org,
		Timer:      tune.Timer,
		SaveSchema: saveSchema,
		Logger:     logger,
		Context:    ctx,
	}, gm)
	if idx != nil {
		apiSrv.SetAuditor(multiAuditLogger{a: auditLog, b: idx})
	} else {
		apiSrv.SetAuditor(auditLog)
	}

	apiMux := http.NewServeMux()
	apiSrv.Register(apiMux)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		st := gm.Status()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP cowboys_turn Current game turn.\n")
		fmt.Fprintf(rw, "# TYPE cowboys_turn gauge\n")
		fmt.Fprintf(rw, "cowboys_turn %d\n", st.Turn)

		fmt.Fprintf(rw, "# HELP cowboys_bullet_subturn Bullet sub-turns played in the current turn.\n")
		fmt.Fprintf(rw, "# TYPE cowboys_bullet_subturn gauge\n")
		fmt.Fprintf(rw, "cowboys_bullet_subturn %d\n", st.BulletSubturn)

		fmt.Fprintf(rw, "# HELP cowboys_timer_running Whether the turn timer runs.\n")
		fmt.Fprintf(rw, "# TYPE cowboys_timer_running gauge\n")
		fmt.Fprintf(rw, "cowboys_timer_running %d\n", boolInt(st.TimerRunning))

		fmt.Fprintf(rw, "# HELP cowboys_team_points Points per team.\n")
		fmt.Fprintf(rw, "# TYPE cowboys_team_points gauge\n")
		for _, ts := range gm.Statistics().Teams {
			fmt.Fprintf(rw, "cowboys_team_points{team=%q} %d\n", ts.Team, ts.Points)
		}

		fmt.Fprintf(rw, "# HELP cowboys_observers Connected map viewers.\n")
		fmt.Fprintf(rw, "# TYPE cowboys_observers gauge\n")
		fmt.Fprintf(rw, "cowboys_observers %d\n", obsSrv.Clients())

		fmt.Fprintf(rw, "# HELP cowboys_observer_dropped_total Messages dropped for slow viewers.\n")
		fmt.Fprintf(rw, "# TYPE cowboys_observer_dropped_total counter\n")
		fmt.Fprintf(rw, "cowboys_observer_dropped_total %d\n", obsSrv.Drops())

		if idx != nil {
			qs := idx.Stats()
			fmt.Fprintf(rw, "# HELP cowboys_index_dropped_total Rows the index writer dropped.\n")
			fmt.Fprintf(rw, "# TYPE cowboys_index_dropped_total counter\n")
			fmt.Fprintf(rw, "cowboys_index_dropped_total{kind=%q} %d\n", "subturn", qs.DropSubturnTotal)
			fmt.Fprintf(rw, "cowboys_index_dropped_total{kind=%q} %d\n", "stats", qs.DropStatsTotal)
			fmt.Fprintf(rw, "cowboys_index_dropped_total{kind=%q} %d\n", "snapshot", qs.DropSnapshotTotal)
			fmt.Fprintf(rw, "cowboys_index_dropped_total{kind=%q} %d\n", "audit", qs.DropAuditTotal)
			fmt.Fprintf(rw, "# HELP cowboys_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE cowboys_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "cowboys_index_queue_depth %d\n", qs.QueueDepth)
		}
	})
	mux.Handle("/api/", api.Timeout(apiMux, 10*time.Second))
	mux.HandleFunc("/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obsSrv.WSHandler())
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	if envBool("CA_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	if *autostart {
		if err := gm.StartTimer(ctx, tune.Timer); err != nil {
			logger.Fatalf("start timer: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		gm.Close()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	gm.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
