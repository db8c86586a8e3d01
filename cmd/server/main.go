package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Ianatiant/ianclaims/internal/persistence/archive"
	"github.com/Ianatiant/ianclaims/internal/persistence/indexdb"
	auditlog "github.com/Ianatiant/ianclaims/internal/persistence/log"
	"github.com/Ianatiant/ianclaims/internal/persistence/r2s3"
	"github.com/Ianatiant/ianclaims/internal/persistence/snapshot"
	"github.com/Ianatiant/ianclaims/internal/sim/land"
	"github.com/Ianatiant/ianclaims/internal/sim/tuning"
	"github.com/Ianatiant/ianclaims/internal/transport/observer"
	"github.com/Ianatiant/ianclaims/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite audit/snapshot index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	auditJSONL := auditlog.NewAuditLogger(*dataDir)
	defer auditJSONL.Close()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
	}

	store := snapshot.NewFileStore(filepath.Join(*dataDir, "claims.zst"))
	names := land.NewNameCache(filepath.Join(*dataDir, "name_cache.json"))
	if err := names.Load(); err != nil {
		logger.Printf("load name cache: %v", err)
	}

	hub := ws.NewHub(tune.Admins)
	economy := newWallet(tune.StartingBalance)

	audits := multiAudit{auditJSONL}
	if idx != nil {
		audits = append(audits, idx)
	}

	// Offsite mirroring is on when the R2/S3 credentials are all set.
	var mirror *r2s3.Mirror
	if ep := os.Getenv("R2_ENDPOINT"); ep != "" {
		client, err := r2s3.New(ep, os.Getenv("R2_BUCKET"), os.Getenv("R2_ACCESS_KEY_ID"), os.Getenv("R2_SECRET_ACCESS_KEY"))
		if err != nil {
			logger.Fatalf("r2 mirror: %v", err)
		}
		mirror = r2s3.NewMirror(client, *dataDir, os.Getenv("R2_PREFIX"), 1, 256, 25*time.Millisecond, logger)
		defer mirror.Close()
	}

	recStore := &recordingStore{
		inner:        store,
		idx:          idx,
		mirror:       mirror,
		log:          logger,
		dataDir:      *dataDir,
		archiveEvery: uint64(tune.ArchiveEveryTicks),
		archiveKeep:  tune.ArchiveKeep,
	}
	reg := land.NewRegistry(land.RegistryDeps{
		Dir:      hub,
		Economy:  economy,
		Notifier: hub,
		Audit:    audits,
		Store:    recStore,
		Log:      logger,
		Names:    names,
		Sizes:    tune.AllowedSizes,
	})
	recStore.tick = reg.Tick

	if st, ok, err := store.Load(); err != nil {
		logger.Fatalf("load claims: %v", err)
	} else if ok {
		reg.LoadState(st)
		logger.Printf("loaded %d claims, %d sales from %s", len(st.Claims), len(st.Sales), store.Path())
	}

	presence := land.NewPresenceTracker(reg, hub, hub, tune.PresenceThresholdSq)
	loop := &land.Loop{
		Reg:                reg,
		Presence:           presence,
		Log:                logger,
		TickRateHz:         tune.TickRateHz,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		NameFlushTicks:     tune.NameCacheFlushTicks,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("loop: %v", err)
		}
	}()

	wsServer := ws.NewServer(reg, hub, presence, tune.TickRateHz, logger)
	obs := observer.NewServer(reg, hub, tune.TickRateHz, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsServer.Handler())
	mux.HandleFunc("/admin/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", obs.WSHandler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on %s (claims loaded: %d)", *addr, reg.ClaimCount())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}

	// Flush state on the way out; the final snapshot goes offsite too.
	reg.Persist()
	if err := reg.FlushNameCache(); err != nil {
		logger.Printf("flush name cache: %v", err)
	}
	mirror.Enqueue(store.Path())
	logger.Printf("shutdown complete (save failures: %d)", reg.SaveFailures())
}

// multiAudit fans one audit entry out to every sink.
type multiAudit []land.AuditLogger

func (m multiAudit) WriteAudit(e land.AuditEntry) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.WriteAudit(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// recordingStore persists through the snapshot file store, records snapshot
// metadata in the sqlite index, and on the archive cadence copies the live
// document into data/archives (offsite-mirrored when a mirror is set).
type recordingStore struct {
	inner   *snapshot.FileStore
	idx     *indexdb.SQLiteIndex
	mirror  *r2s3.Mirror
	log     *log.Logger
	dataDir string

	archiveEvery uint64
	archiveKeep  int

	tick            func() uint64
	lastArchiveTick atomic.Uint64
}

func (s *recordingStore) SaveState(st land.StateV1) error {
	if err := s.inner.SaveState(st); err != nil {
		return err
	}
	if s.tick == nil {
		return nil
	}
	tick := s.tick()
	if s.idx != nil {
		s.idx.RecordSnapshot(s.inner.Path(), tick, st)
	}
	if s.archiveEvery > 0 && tick-s.lastArchiveTick.Load() >= s.archiveEvery {
		s.lastArchiveTick.Store(tick)
		dst, err := archive.ArchiveSnapshot(s.dataDir, s.inner.Path(), tick, len(st.Claims), len(st.Sales))
		if err != nil {
			s.log.Printf("archive snapshot: %v", err)
			return nil
		}
		if err := archive.Prune(s.dataDir, s.archiveKeep); err != nil {
			s.log.Printf("prune archives: %v", err)
		}
		s.mirror.Enqueue(dst)
	}
	return nil
}
