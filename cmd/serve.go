package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/autoscale-sim/autoscale-sim/sim"
	"github.com/autoscale-sim/autoscale-sim/sim/cluster"
	"github.com/autoscale-sim/autoscale-sim/sim/workload"
)

const (
	metricsNamespace = "autoscale_sim"
	maxConfigBytes   = 1 << 20
	wsSendBuffer     = 16
	wsWriteTimeout   = 5 * time.Second
)

var (
	// CLI flags for serve
	listenAddr    string        // HTTP listen address
	serveInterval time.Duration // Wall-clock time between ticks
)

// serveCmd runs the simulation on the real clock behind an HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation continuously and expose it over HTTP, websocket and Prometheus",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadRuntimeConfig(configPath, scenarioName, pattern)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if serveInterval <= 0 {
			logrus.Fatalf("--interval must be positive, got %s", serveInterval)
		}

		simCtx := sim.NewSimulationContext(seed, nil)
		fleet := cluster.NewFleetSimulator(cluster.FleetConfig{
			InitialPods:    initialPods,
			PodPrefix:      podPrefix,
			ApplyDecisions: applyDecisions,
		}, simCtx, cfg.PodResources)
		server := NewServer(cfg, fleet, prometheus.NewRegistry())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		httpServer := &http.Server{Addr: listenAddr, Handler: server.Handler()}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Close()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logrus.Warnf("http shutdown: %v", err)
			}
		}()
		go server.Loop(ctx, serveInterval)

		logrus.Infof("Serving run %s on %s, tick every %s", simCtx.ID(), listenAddr, serveInterval)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("http server: %v", err)
		}
		logrus.Info("Server stopped.")
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 5*time.Second, "Wall-clock time between ticks")
}

// serverMetrics are the Prometheus series updated after every tick.
type serverMetrics struct {
	ticks           prometheus.Counter
	podErrors       prometheus.Counter
	currentReplicas prometheus.Gauge
	desiredReplicas prometheus.Gauge
	targetUsers     prometheus.Gauge
	activeUsers     prometheus.Gauge
	fleetCPU        prometheus.Gauge
	fleetMemory     prometheus.Gauge
	podCPU          *prometheus.GaugeVec
	podMemory       *prometheus.GaugeVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)
	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: subsystem, Name: name, Help: help,
		})
	}
	return &serverMetrics{
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "ticks_total", Help: "Simulation ticks executed.",
		}),
		podErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "pod", Name: "errors_total", Help: "Pod records computed from invalid limits.",
		}),
		currentReplicas: gauge("replicas", "current", "Pods in the simulated deployment."),
		desiredReplicas: gauge("replicas", "desired", "Replica count recommended by the last tick."),
		targetUsers:     gauge("users", "target", "User count asked for by the load pattern."),
		activeUsers:     gauge("users", "active", "Users assigned to pods in the last tick."),
		fleetCPU:        gauge("fleet", "cpu_percent", "Mean pod CPU utilization."),
		fleetMemory:     gauge("fleet", "memory_percent", "Mean pod memory utilization."),
		podCPU: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "pod", Name: "cpu_percent", Help: "Pod CPU utilization.",
		}, []string{"pod"}),
		podMemory: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "pod", Name: "memory_percent", Help: "Pod memory utilization.",
		}, []string{"pod"}),
	}
}

func (m *serverMetrics) observe(report cluster.TickReport) {
	m.ticks.Inc()
	m.podErrors.Add(float64(len(report.Errors)))
	m.currentReplicas.Set(float64(report.CurrentReplicas))
	m.desiredReplicas.Set(float64(report.DesiredReplicas))
	m.targetUsers.Set(float64(report.TargetUsers))
	m.activeUsers.Set(float64(report.Fleet.TotalUsers))
	m.fleetCPU.Set(report.Fleet.CPU)
	m.fleetMemory.Set(report.Fleet.Memory)
	m.podCPU.Reset()
	m.podMemory.Reset()
	for _, p := range report.Pods {
		m.podCPU.WithLabelValues(p.PodName).Set(p.CPU)
		m.podMemory.WithLabelValues(p.PodName).Set(p.Memory)
	}
}

// hub fans tick reports out to websocket clients. Slow clients are dropped.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logrus.Warnf("dropping slow websocket client %s", c.conn.RemoteAddr())
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// Server exposes a FleetSimulator over HTTP. The runtime config can be
// replaced at any time; each tick reads the config current at its start.
type Server struct {
	mu       sync.RWMutex
	cfg      *sim.RuntimeConfig
	fleet    *cluster.FleetSimulator
	registry *prometheus.Registry
	metrics  *serverMetrics
	hub      *hub
	upgrader websocket.Upgrader
}

// NewServer creates a Server. Metrics are registered on reg.
func NewServer(cfg *sim.RuntimeConfig, fleet *cluster.FleetSimulator, reg *prometheus.Registry) *Server {
	return &Server{
		cfg:      cfg,
		fleet:    fleet,
		registry: reg,
		metrics:  newServerMetrics(reg),
		hub:      newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Config returns the runtime config in effect.
func (s *Server) Config() *sim.RuntimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig replaces the runtime config used by subsequent ticks.
func (s *Server) SetConfig(cfg *sim.RuntimeConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Tick runs one fleet step, updates the metrics and pushes the report to
// websocket clients.
func (s *Server) Tick() cluster.TickReport {
	report := s.fleet.Step(s.Config())
	s.metrics.observe(report)
	msg, err := json.Marshal(report)
	if err != nil {
		logrus.Errorf("encoding tick report: %v", err)
		return report
	}
	s.hub.broadcast(msg)
	return report
}

// Loop ticks every interval on the fleet's clock until ctx is done.
func (s *Server) Loop(ctx context.Context, interval time.Duration) {
	ticker := s.fleet.Context().Clock().NewTicker(interval)
	defer ticker.Stop()
	s.Tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Tick()
		}
	}
}

// Close disconnects every websocket client.
func (s *Server) Close() {
	s.hub.closeAll()
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("POST /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/load", s.handleLoad)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

type stateResponse struct {
	RunID    string              `json:"runId"`
	Replicas int                 `json:"replicas"`
	Pods     []sim.Pod           `json:"pods"`
	Users    int                 `json:"users"`
	Config   *sim.RuntimeConfig  `json:"config"`
	Latest   *cluster.TickReport `json:"latest,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{
		RunID:    s.fleet.Context().ID(),
		Replicas: s.fleet.Replicas(),
		Pods:     s.fleet.Pods(),
		Users:    len(s.fleet.Context().Users()),
		Config:   s.Config(),
	}
	if latest, ok := s.fleet.Latest(); ok {
		resp.Latest = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.fleet.Reset()
	logrus.Info("simulation reset over HTTP")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	cfg, err := sim.ParseRuntimeConfig(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.SetConfig(cfg)
	logrus.Infof("runtime config replaced: pattern=%s", cfg.DefaultLoadProfile.Pattern)
	writeJSON(w, http.StatusOK, cfg)
}

type loadResponse struct {
	Pattern string  `json:"pattern"`
	Time    float64 `json:"time"`
	Users   int     `json:"users"`
}

// handleLoad evaluates a load pattern without touching the simulation.
// The random pattern draws from a fresh stream of the run's seed, so a probe
// is repeatable.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config()
	profile := cfg.DefaultLoadProfile
	q := r.URL.Query()
	if p := q.Get("pattern"); p != "" {
		profile.Pattern = p
	}
	t := float64(s.fleet.Context().Clock().Now().UnixNano()) / float64(time.Second)
	if raw := q.Get("time"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		t = parsed
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(s.fleet.Context().Seed())).ForSubsystem(sim.SubsystemLoad)
	writeJSON(w, http.StatusOK, loadResponse{
		Pattern: profile.Pattern,
		Time:    t,
		Users:   workload.GenerateLoad(profile.Pattern, t, profile, rng),
	})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("websocket upgrade: %v", err)
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	s.hub.add(client)

	// reader: detects close and discards client messages
	go func() {
		defer s.hub.remove(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		for msg := range client.send {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.hub.remove(client)
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
