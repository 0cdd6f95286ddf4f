package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/libmcu/ocpp-go/internal/circuitbreaker"
	"github.com/libmcu/ocpp-go/internal/config"
	"github.com/libmcu/ocpp-go/internal/engine"
	"github.com/libmcu/ocpp-go/internal/events"
	"github.com/libmcu/ocpp-go/internal/idgen"
	"github.com/libmcu/ocpp-go/internal/metrics"
	"github.com/libmcu/ocpp-go/internal/ocppmsg"
	"github.com/libmcu/ocpp-go/internal/snapshotstore"
	"github.com/libmcu/ocpp-go/internal/transport"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on process environment")
	}

	cfg := config.Get()
	cpID := cfg.ChargePoint.ID
	if cpID == "" {
		log.Fatal("chargepoint: CP_ID / charge_point.id is required")
	}

	ids := idgen.New()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	bus := events.NewEventBus()

	store, err := buildSnapshotStore(cfg)
	if err != nil {
		log.Fatalf("chargepoint: snapshot store: %v", err)
	}

	breaker := circuitbreaker.NewCentralSystemBreaker()

	wsOpts := []transport.Option{
		transport.WithDialTimeout(time.Duration(cfg.Central.ConnectTimeoutSec) * time.Second),
	}
	if cfg.Central.BasicAuthUser != "" {
		wsOpts = append(wsOpts, transport.WithBasicAuth(cfg.Central.BasicAuthUser, cfg.Central.BasicAuthPassword))
	}
	client := transport.NewClient(cfg.Central.URL, cpID, wsOpts...)

	connectCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Central.ConnectTimeoutSec)*time.Second)
	_, err = breaker.Execute(func() (interface{}, error) {
		return nil, client.Connect(connectCtx)
	})
	cancel()
	if err != nil {
		slog.Warn("initial connect to Central System failed, will retry from the run loop", "error", err)
	}

	bridge := events.NewOCPPBridge(bus, cpID)
	eng := engine.New(cfg.Pool.Capacity, systemClock{}, cfg, ids, client, bridge.Callback, m, slog.Default())

	if buf, err := store.Load(context.Background()); err != nil {
		slog.Warn("snapshot restore failed, starting from an empty engine", "error", err)
	} else if buf != nil {
		if err := eng.RestoreSnapshot(buf); err != nil {
			slog.Warn("snapshot restore rejected, starting from an empty engine", "error", err)
		} else {
			slog.Info("restored engine state from snapshot", "pending", eng.CountPendingRequests())
		}
	}

	if _, err := eng.PushRequest(ocppmsg.BootNotification, bootNotificationPayload(cfg), false); err != nil {
		slog.Error("failed to enqueue BootNotification", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	runReconnectLoop(shutdownCtx, client, breaker, m)
	runEngineLoop(shutdownCtx, eng, m, time.Duration(cfg.Snapshot.IntervalSec)*time.Second, store)

	server := buildMetricsServer(cfg, reg, bus)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("received shutdown signal, shutting down gracefully")
		shutdownCancel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSec)*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
		_ = client.Close()
	}()

	slog.Info("chargepoint starting", "id", cpID, "central_url", cfg.Central.URL, "metrics_addr", cfg.Server.MetricsAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("metrics server failed: %v", err)
	}
	slog.Info("chargepoint stopped")
}

// buildSnapshotStore wires a snapshotstore.Store per config.Snapshot.Backend.
func buildSnapshotStore(cfg *config.Config) (snapshotstore.Store, error) {
	switch cfg.Snapshot.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Snapshot.RedisAddr})
		return snapshotstore.NewRedisStore(snapshotstore.NewRedisClientAdapter(rdb), cfg.Snapshot.RedisKey), nil
	default:
		return snapshotstore.NewFileStore(cfg.Snapshot.Path, cfg.Snapshot.EncryptionKey)
	}
}

// runReconnectLoop watches the transport for drops and reconnects through
// the circuit breaker, backing off on repeated failures.
func runReconnectLoop(ctx context.Context, client *transport.Client, breaker *circuitbreaker.CircuitBreaker, m *metrics.Metrics) {
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if breaker.State() == circuitbreaker.StateOpen {
					continue
				}
				if client.Connected() {
					continue
				}
				m.ReconnectTotal.Inc()
				_, err := breaker.Execute(func() (interface{}, error) {
					connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
					defer cancel()
					return nil, client.Connect(connectCtx)
				})
				if err != nil {
					slog.Warn("reconnect attempt failed", "error", err)
				} else {
					slog.Info("reconnected to Central System")
				}
			}
		}
	}()
}

// runEngineLoop drives Step on a fixed tick and periodically persists a
// snapshot, matching the teacher's ticker-driven background worker shape.
func runEngineLoop(ctx context.Context, eng *engine.Engine, m *metrics.Metrics, snapshotEvery time.Duration, store snapshotstore.Store) {
	go func() {
		stepTicker := time.NewTicker(250 * time.Millisecond)
		defer stepTicker.Stop()

		var snapshotTicker *time.Ticker
		var snapshotChan <-chan time.Time
		if snapshotEvery > 0 {
			snapshotTicker = time.NewTicker(snapshotEvery)
			defer snapshotTicker.Stop()
			snapshotChan = snapshotTicker.C
		}

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-stepTicker.C:
				eng.Step(now)
				m.ObserveQueueDepths(eng.ReadyCount(), eng.WaitCount(), eng.TimerCount())
			case <-snapshotChan:
				start := time.Now()
				buf, err := eng.SaveSnapshot()
				m.SnapshotDuration.Observe(time.Since(start).Seconds())
				if err != nil {
					slog.Warn("snapshot save failed", "error", err)
					continue
				}
				if err := store.Save(ctx, buf); err != nil {
					slog.Warn("snapshot persist failed", "error", err)
				}
			}
		}
	}()
}

func buildMetricsServer(cfg *config.Config, reg *prometheus.Registry, bus *events.EventBus) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "ocpp-chargepoint"})
	}).Methods("GET")
	router.HandleFunc("/events/stream", sseHandler(bus)).Methods("GET")

	return &http.Server{
		Addr:         cfg.Server.MetricsAddr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}
}

// sseHandler streams every published CloudEvent as an SSE frame until the
// client disconnects.
func sseHandler(bus *events.EventBus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				frame, err := ev.SSEFormat()
				if err != nil {
					continue
				}
				w.Write(frame)
				flusher.Flush()
			}
		}
	}
}

func bootNotificationPayload(cfg *config.Config) []byte {
	payload, _ := json.Marshal(map[string]string{
		"chargePointVendor": cfg.ChargePoint.Vendor,
		"chargePointModel":  cfg.ChargePoint.Model,
	})
	return payload
}
