package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/blockmap/featureflag"
	blockmaphttp "github.com/aukilabs/blockmap/http"
	"github.com/aukilabs/blockmap/models"
	"github.com/aukilabs/blockmap/modules"
	"github.com/aukilabs/blockmap/modules/lines"
	"github.com/aukilabs/blockmap/modules/objects"
	"github.com/aukilabs/blockmap/smoketest"
	bwebsocket "github.com/aukilabs/blockmap/websocket"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Blockmap version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "blockmap_info",
		Help:        "Blockmap information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"BLOCKMAP_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"BLOCKMAP_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"BLOCKMAP_PUBLIC_ENDPOINT"      help:"The public endpoint where this Blockmap server is reachable."`
	LogLevel           string        `cli:""        env:"BLOCKMAP_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"BLOCKMAP_LOG_INDENT"           help:"Indent logs."`
	MapsFile           string        `cli:""        env:"BLOCKMAP_MAPS_FILE"            help:"JSON file that defines the maps to load. A single default map is loaded when empty."`
	CellSize           int           `cli:""        env:"BLOCKMAP_CELL_SIZE"            help:"The cell size of maps that do not define one."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"BLOCKMAP_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	LogSummaryInterval time.Duration `cli:",hidden" env:"BLOCKMAP_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	Events             eventsConfig  `cli:",hidden" env:"-"                             help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"BLOCKMAP_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                             help:"Show version."`
	Help               bool          `cli:""        env:"-"                             help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"BLOCKMAP_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Events are not pushed when empty."`
	FlushInterval time.Duration `cli:",hidden" env:"BLOCKMAP_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"BLOCKMAP_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"BLOCKMAP_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		CellSize:           128,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Blockmap server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "blockmap",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	var maps models.MapStore
	if err := loadMaps(ctx, &maps, conf); err != nil {
		logs.Fatal(errors.New("loading maps failed").Wrap(err))
	}
	defer func() {
		for _, name := range maps.Names() {
			maps.Unload(context.Background(), name)
		}
	}()

	featureFlags := featureflag.New(conf.FeatureFlags)

	readinessCheck := func() bool {
		return maps.Len() != 0
	}

	var service http.ServeMux
	service.Handle("/health", blockmaphttp.HandleWithCORS(http.HandlerFunc(blockmaphttp.HandleHealthCheck)))
	service.Handle("/ready", blockmaphttp.HandleWithCORS(blockmaphttp.HandleReadyCheck(readinessCheck)))
	service.Handle("/version", blockmaphttp.HandleWithCORS(blockmaphttp.HandleVersion(version)))
	service.Handle("/maps", blockmaphttp.HandleWithCORS(blockmaphttp.HandleMaps(&maps)))
	service.Handle("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Blockmap %s", version),
	}))

	service.Handle("/", blockmaphttp.HandleWithCORS(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var rh bwebsocket.Handler = &bwebsocket.RealtimeHandler{
				ClientIdleTimeout: conf.ClientIdleTimeout,
				Maps:              &maps,
				Modules: []modules.Module{
					&objects.Module{FeatureFlags: featureFlags},
					&lines.Module{FeatureFlags: featureFlags},
				},
				FeatureFlags: featureFlags,
			}
			h := bwebsocket.HandlerWithLogs(rh, conf.LogSummaryInterval)
			h = bwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			bwebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", blockmaphttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", blockmaphttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("maps", maps.Names()).
		WithTag("feature_flags", featureFlags.List()).
		Info("starting blockmap server")

	blockmaphttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			blockmaphttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func loadMaps(ctx context.Context, maps *models.MapStore, conf config) error {
	cellSize := float64(conf.CellSize)
	defs := []models.MapDef{models.DefaultMapDef(cellSize)}

	if conf.MapsFile != "" {
		var err error
		if defs, err = models.LoadMapDefs(conf.MapsFile, cellSize); err != nil {
			return err
		}
	}

	for _, def := range defs {
		if _, err := maps.Load(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.CellSize <= 0 {
		return errors.New("cell size must be greater than zero").
			WithTag("cell_size", conf.CellSize)
	}

	if conf.ClientIdleTimeout <= 0 {
		return errors.New("client idle timeout must be greater than zero").
			WithTag("client_idle_timeout", conf.ClientIdleTimeout)
	}
	return nil
}
