// gdp-node is the GDP packet router/switch daemon: a userspace data plane
// that parses a name-addressed datagram format carried over UDP/IPv4/
// Ethernet, looks up next-hop information by 256-bit flat name, rewrites
// forwarding headers, and emits the packet -- or, in the RIB role, answers
// name->address queries.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/gdp-router/internal/aead"
	"github.com/dantte-lp/gdp-router/internal/config"
	"github.com/dantte-lp/gdp-router/internal/gdp"
	"github.com/dantte-lp/gdp-router/internal/gdpmetrics"
	"github.com/dantte-lp/gdp-router/internal/netio"
	"github.com/dantte-lp/gdp-router/internal/pipeline"
	"github.com/dantte-lp/gdp-router/internal/rib"
	"github.com/dantte-lp/gdp-router/internal/routes"
	"github.com/dantte-lp/gdp-router/internal/store"
	"github.com/dantte-lp/gdp-router/internal/switchplane"
	appversion "github.com/dantte-lp/gdp-router/internal/version"
)

// shutdownTimeout bounds how long the metrics HTTP server is given to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLogger(cfg.Log, logLevel)

	logger.Info("gdp-node starting",
		slog.String("version", appversion.Version),
		slog.String("role", cfg.Role),
		slog.String("routes_file", cfg.RoutesFile),
	)

	if err := runNode(cfg, logger); err != nil {
		logger.Error("gdp-node exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("gdp-node stopped")
	return 0
}

// runNode wires the store, port queue, pipeline, and ambient services
// together and runs them under an errgroup with a signal-aware context,
// following the same supervision idiom the teacher's cmd/gobfd/main.go
// uses for its worker goroutines.
func runNode(cfg *config.Config, logger *slog.Logger) error {
	routesFile, err := routes.Load(cfg.RoutesFile)
	if err != nil {
		return fmt.Errorf("load routes file: %w", err)
	}

	st := store.New()
	if err := routesFile.Bootstrap(st); err != nil {
		return fmt.Errorf("bootstrap routes: %w", err)
	}

	cipher, err := cfg.AEAD.Cipher()
	if err != nil {
		return fmt.Errorf("build AEAD cipher: %w", err)
	}

	reg := prometheus.NewRegistry()
	collector := gdpmetrics.NewCollector(reg)

	self := nodeIdentity(cfg, routesFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runExpiry(gCtx, st, logger)
	})

	g.Go(func() error {
		return serveMetrics(gCtx, cfg.Metrics, reg, logger)
	})

	portName, err := startRoleWorker(gCtx, g, cfg, self, st, cipher, collector, logger)
	if err != nil {
		return err
	}

	notifyReady(logger, portName)

	err = g.Wait()
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startRoleWorker opens the port named for this node's role and starts the
// poll-mode worker that drives the corresponding pipeline. Returns the
// port name actually opened, for logging.
func startRoleWorker(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	self switchplane.Identity,
	st *store.Store,
	cipher *aead.Cipher,
	collector *gdpmetrics.Collector,
	logger *slog.Logger,
) (string, error) {
	switch cfg.Role {
	case "switch":
		port, err := openPort(cfg.Ports.Switch, cipher, collector, logger)
		if err != nil {
			return "", err
		}
		g.Go(func() error {
			defer port.Close()
			return runSwitchWorker(ctx, port, st, self, collector, logger)
		})
		return cfg.Ports.Switch, nil

	case "rib":
		port, err := openPort(cfg.Ports.RIB, cipher, collector, logger)
		if err != nil {
			return "", err
		}
		g.Go(func() error {
			defer port.Close()
			return runRIBWorker(ctx, port, st, collector, logger)
		})
		return cfg.Ports.RIB, nil

	default:
		return "", fmt.Errorf("unknown role %q", cfg.Role)
	}
}

// runSwitchWorker polls port for batches and drives them through
// SwitchPipeline until ctx is cancelled (spec §5: "one poll-mode worker per
// port queue; strictly sequential pipeline within a worker").
func runSwitchWorker(
	ctx context.Context,
	port netio.Port,
	st *store.Store,
	self switchplane.Identity,
	collector *gdpmetrics.Collector,
	logger *slog.Logger,
) error {
	rtt := newRibRoundTripTracker()

	for {
		batch, err := port.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("switch worker %s: poll: %w", port.Name(), err)
		}

		processSwitchBatch(batch, port, st, self, rtt, collector, logger)
	}
}

// ribRoundTripTracker correlates a switch's outgoing RibGet queries with
// their later RibReply arrivals so their latency can be observed via
// gdpmetrics.Collector.ObserveRibRoundTrip. It is only ever touched from
// the single worker goroutine that owns it, so it needs no locking.
type ribRoundTripTracker struct {
	pending map[gdp.Name]time.Time
}

func newRibRoundTripTracker() *ribRoundTripTracker {
	return &ribRoundTripTracker{pending: make(map[gdp.Name]time.Time)}
}

// recordQuery notes that a RibGet for name was just sent.
func (t *ribRoundTripTracker) recordQuery(name gdp.Name) {
	t.pending[name] = time.Now()
}

// observeReply reports the elapsed time since the matching recordQuery, if
// one is pending, and forgets it. A reply with no pending query (late
// arrival for an already-resolved miss, or a reply never requested) is
// silently ignored.
func (t *ribRoundTripTracker) observeReply(name gdp.Name, collector *gdpmetrics.Collector) {
	sent, ok := t.pending[name]
	if !ok {
		return
	}
	delete(t.pending, name)
	collector.ObserveRibRoundTrip(time.Since(sent).Seconds())
}

// processSwitchBatch runs one batch through SwitchPipeline and sends the
// result. A recover() guard converts any unexpected panic into a logged,
// counted drop of the whole batch rather than taking the worker goroutine
// down with it -- belt-and-suspenders beyond the pipeline operators' own
// error handling, since a port queue must keep polling even if one batch's
// processing hits a bug.
func processSwitchBatch(batch []*gdp.Packet, port netio.Port, st *store.Store, self switchplane.Identity, rtt *ribRoundTripTracker, collector *gdpmetrics.Collector, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered panic processing switch batch",
				slog.String("port", port.Name()), slog.Any("panic", r), slog.Int("batch_size", len(batch)))
			for range batch {
				collector.IncDropped(port.Name())
			}
		}
	}()

	for _, pkt := range batch {
		collector.IncPacket(pkt.Action(), port.Name())
		// SwitchPipeline consumes and releases a RibReply packet as part of
		// installing its binding, so its key must be read before the pipeline
		// runs.
		if pkt.Action() == gdp.ActionRibReply {
			rtt.observeReply(pkt.Dst(), collector)
		}
	}

	out := switchplane.SwitchPipeline(pipeline.Of(batch), st, self, gdp.RIBEndpoint, logger)
	collector.SetStoreSize(st.Len())
	if dropped := out.Dropped(); dropped > 0 {
		for range make([]struct{}, dropped) {
			collector.IncDropped(port.Name())
		}
	}

	for _, pkt := range out.Items() {
		if pkt.Action() == gdp.ActionRibGet {
			rtt.recordQuery(pkt.Dst())
		}
	}

	if err := port.Send(out.Items()); err != nil {
		logger.Warn("switch worker send error", slog.String("port", port.Name()), slog.String("error", err.Error()))
	}
}

// runRIBWorker polls the RIB-facing port and answers RibGet queries via
// rib.Pipeline until ctx is cancelled.
func runRIBWorker(
	ctx context.Context,
	port netio.Port,
	st *store.Store,
	collector *gdpmetrics.Collector,
	logger *slog.Logger,
) error {
	for {
		batch, err := port.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rib worker %s: poll: %w", port.Name(), err)
		}

		processRIBBatch(batch, port, st, collector, logger)
	}
}

// processRIBBatch runs one batch through rib.Pipeline and sends the
// result, with the same recover() guard processSwitchBatch uses.
func processRIBBatch(batch []*gdp.Packet, port netio.Port, st *store.Store, collector *gdpmetrics.Collector, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered panic processing rib batch",
				slog.String("port", port.Name()), slog.Any("panic", r), slog.Int("batch_size", len(batch)))
			for range batch {
				collector.IncDropped(port.Name())
			}
		}
	}()

	for _, pkt := range batch {
		collector.IncPacket(pkt.Action(), port.Name())
	}

	out := rib.Pipeline(pipeline.Of(batch), st, logger)
	if dropped := out.Dropped(); dropped > 0 {
		for range make([]struct{}, dropped) {
			collector.IncDropped(port.Name())
		}
	}

	if err := port.Send(out.Items()); err != nil {
		logger.Warn("rib worker send error", slog.String("port", port.Name()), slog.String("error", err.Error()))
	}
}

// runExpiry drives the store's 1 Hz active-expiry sweep until ctx is
// cancelled.
func runExpiry(ctx context.Context, st *store.Store, logger *slog.Logger) error {
	if err := st.RunActiveExpire(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("active expiry: %w", err)
	}
	return nil
}

// serveMetrics runs the Prometheus metrics HTTP server until ctx is
// cancelled, then drains it within shutdownTimeout.
func serveMetrics(ctx context.Context, cfg config.MetricsConfig, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

// notifyReady sends READY=1 to systemd, indicating the daemon has completed
// initialization and opened its port queue.
func notifyReady(logger *slog.Logger, portName string) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY", slog.String("port", portName))
	}
}

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// openPort opens the named network interface as a raw Ethernet port queue.
func openPort(ifName string, cipher *aead.Cipher, collector *gdpmetrics.Collector, logger *slog.Logger) (netio.Port, error) {
	port, err := netio.NewRawEthernetPort(ifName, ifName, cipher, collector, logger)
	if err != nil {
		return nil, fmt.Errorf("open port %s: %w", ifName, err)
	}
	return port, nil
}

// nodeIdentity derives this node's switch-role identity from its position
// in the static routes file: cfg.GDPIndex selects which route entry is this
// node's own name and forwarding address, so no separate identity field
// is needed. The node's Ethernet address is derived deterministically
// from its name, mirroring the fixed, name-keyed MAC the RIB's well-known
// endpoint uses (gdp.RIBMAC).
func nodeIdentity(cfg *config.Config, rf *routes.File) switchplane.Identity {
	if int(cfg.GDPIndex) >= len(rf.Routes) {
		return switchplane.Identity{}
	}

	entry := rf.Routes[cfg.GDPIndex]

	name, err := gdp.ParseName(entry.Name)
	if err != nil {
		return switchplane.Identity{}
	}

	addr, err := netip.ParseAddr(entry.Addr)
	if err != nil {
		return switchplane.Identity{}
	}

	return switchplane.Identity{
		Name: name,
		Endpoint: gdp.Endpoint{
			MAC:  macFromName(name),
			IP:   addr,
			Port: gdp.RIBPort,
		},
	}
}

// macFromName derives a locally-administered unicast Ethernet address from
// the first 5 bytes of a GDP name, the same 0x02 locally-administered
// prefix gdp.RIBMAC uses.
func macFromName(name gdp.Name) gdp.MACAddr {
	var mac gdp.MACAddr
	mac[0] = 0x02
	copy(mac[1:], name[:5])
	return mac
}

// newLogger creates a structured logger using a shared LevelVar.
func newLogger(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
