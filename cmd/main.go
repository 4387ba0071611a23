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
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/hagall-spatial/featureflag"
	spatialhttp "github.com/aukilabs/hagall-spatial/http"
	"github.com/aukilabs/hagall-spatial/models"
	"github.com/aukilabs/hagall-spatial/modules"
	"github.com/aukilabs/hagall-spatial/modules/dagaz"
	"github.com/aukilabs/hagall-spatial/quadtree"
	hwebsocket "github.com/aukilabs/hagall-spatial/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The server version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "hagall_spatial_info",
		Help:        "Hagall spatial information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"HAGALL_SPATIAL_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"HAGALL_SPATIAL_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"HAGALL_SPATIAL_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	LogLevel           string        `cli:""        env:"HAGALL_SPATIAL_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"HAGALL_SPATIAL_LOG_INDENT"           help:"Indent logs."`
	NodeCapacity       int           `cli:""        env:"HAGALL_SPATIAL_NODE_CAPACITY"        help:"The number of entities a quadtree node holds before it is split."`
	WorldBounds        string        `cli:""        env:"HAGALL_SPATIAL_WORLD_BOUNDS"         help:"The bounds of the default space, formatted as x,y,width,height."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"HAGALL_SPATIAL_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	LogSummaryInterval time.Duration `cli:",hidden" env:"HAGALL_SPATIAL_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	Events             eventsConfig  `cli:",hidden" env:"-"                                   help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"HAGALL_SPATIAL_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                                   help:"Show version."`
	Help               bool          `cli:""        env:"-"                                   help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"HAGALL_SPATIAL_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"HAGALL_SPATIAL_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"HAGALL_SPATIAL_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"HAGALL_SPATIAL_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		NodeCapacity:       quadtree.DefaultCapacity,
		WorldBounds:        "-500,-500,1000,1000",
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
		Help("Starts Hagall spatial server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	worldBounds, err := parseBounds(conf.WorldBounds)
	if err != nil {
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
			SDKType:          "hagall-spatial",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	var spaces models.SpaceStore
	defaultSpace := models.NewSpace(spaces.NewID(), models.SpaceOptions{
		Name:            "default",
		Bounds:          worldBounds,
		NodeCapacity:    conf.NodeCapacity,
		Strict:          featureFlags.IsSet(featureflag.FlagStrictBounds),
		VerifiedRemoval: featureFlags.IsSet(featureflag.FlagVerifiedRemoval),
	})
	if err := spaces.Add(ctx, defaultSpace); err != nil {
		logs.Fatal(errors.New("adding default space failed").Wrap(err))
	}

	spaceHandler := spatialhttp.SpaceHandler{
		Spaces:       &spaces,
		NodeCapacity: conf.NodeCapacity,
		FeatureFlags: featureFlags,
	}

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}

	service := http.NewServeMux()
	spaceHandler.Register(service)
	service.HandleFunc("GET /health", spatialhttp.HandleHealthCheck)
	service.HandleFunc("GET /ready", spatialhttp.HandleReadyCheck(readinessCheck))
	service.HandleFunc("GET /version", spatialhttp.HandleVersion(version))

	service.Handle("GET /spaces/{id}/ws", websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var spaceModules []modules.Module
			featureFlags.IfNotSet(featureflag.FlagDisableDagaz, func() {
				spaceModules = append(spaceModules, &dagaz.Module{})
			})

			var rh hwebsocket.Handler = &hwebsocket.RealtimeHandler{
				ClientIdleTimeout: conf.ClientIdleTimeout,
				Spaces:            &spaces,
				Modules:           spaceModules,
			}
			h := hwebsocket.HandlerWithLogs(rh, conf.LogSummaryInterval)
			h = hwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			hwebsocket.Handle(ctx, conn, h)
		},
	})

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	admin := http.NewServeMux()
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", spatialhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", spatialhttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("node_capacity", conf.NodeCapacity).
		WithTag("world_bounds", worldBounds.String()).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting hagall spatial server")

	spatialhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(
			spatialhttp.HandleWithCORS(service),
			spatialhttp.MetricsPathFormatter,
		)},
		&http.Server{Addr: conf.AdminAddr, Handler: admin},
	)
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.NodeCapacity < 1 {
		return errors.New("node capacity must be greater than zero").
			WithTag("node_capacity", conf.NodeCapacity)
	}

	if _, err := parseBounds(conf.WorldBounds); err != nil {
		return err
	}
	return nil
}

// parseBounds parses a rectangle formatted as x,y,width,height.
func parseBounds(s string) (quadtree.Rect, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return quadtree.Rect{}, errors.New("world bounds must be formatted as x,y,width,height").
			WithTag("world_bounds", s)
	}

	var values [4]float32
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return quadtree.Rect{}, errors.New("invalid world bounds").
				WithTag("world_bounds", s).
				Wrap(err)
		}
		values[i] = float32(v)
	}

	bounds := quadtree.NewRect(values[0], values[1], values[2], values[3])
	if bounds.Empty() {
		return quadtree.Rect{}, errors.New("world bounds have no area").
			WithTag("world_bounds", s)
	}
	return bounds, nil
}
