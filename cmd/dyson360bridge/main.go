// Dyson 360 Eye bridge
//
// This is the main entry point for the bridge. It connects to the robot's
// on-board MQTT broker, keeps a live model of its state and exposes the
// robot to a home-automation host as an accessory over HTTP and WebSocket.
//
// Usage:
//
//	dyson360bridge                         run the bridge
//	dyson360bridge token [flags] <subject> print an API access token
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/dyson360-bridge/internal/accessory"
	"github.com/nerrad567/dyson360-bridge/internal/api"
	"github.com/nerrad567/dyson360-bridge/internal/auth"
	"github.com/nerrad567/dyson360-bridge/internal/history"
	"github.com/nerrad567/dyson360-bridge/internal/infrastructure/config"
	"github.com/nerrad567/dyson360-bridge/internal/infrastructure/database"
	"github.com/nerrad567/dyson360-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/dyson360-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/dyson360-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/dyson360-bridge/internal/metrics"
	"github.com/nerrad567/dyson360-bridge/internal/telemetry"
	"github.com/nerrad567/dyson360-bridge/internal/vacuum"
	"github.com/nerrad567/dyson360-bridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// pruneInterval is how often expired state history is deleted.
const pruneInterval = 24 * time.Hour

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the bridge lifecycle, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup wiring is linear
	log := logging.Default()
	log.Info("starting Dyson 360 bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// State history (optional)
	var db *database.DB
	var historyRepo history.Repository
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", db.Path())

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		historyRepo = history.NewSQLiteRepository(db.DB)
	} else {
		log.Info("state history disabled")
	}

	// Telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Robot transport and session
	mqttClient := mqtt.New(cfg.Device, cfg.MQTT)
	mqttClient.SetLogger(log.Component("mqtt"))
	defer func() {
		log.Info("disconnecting from robot")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	session := vacuum.NewSession(vacuum.Options{
		Username:       cfg.Device.Username,
		Transport:      &mqttTransport{client: mqttClient},
		Logger:         log.Component("vacuum"),
		QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
		CommandTimeout: cfg.GetCommandTimeout(),
	})

	// Telemetry worker. It gets its own context so it can drain after the
	// session stops producing.
	recorderOpts := telemetry.Options{
		DeviceID: cfg.Device.Username,
		History:  historyRepo,
		Logger:   log.Component("telemetry"),
	}
	if influxClient != nil {
		recorderOpts.Points = influxClient
	}
	recorder := telemetry.NewRecorder(recorderOpts)
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	var recorderWG sync.WaitGroup
	recorderWG.Add(1)
	go func() {
		defer recorderWG.Done()
		recorder.Run(recorderCtx)
	}()
	defer func() {
		stopRecorder()
		recorderWG.Wait()
	}()
	session.AddListener(recorder.Observe)

	collector := metrics.New(version, mqttClient.IsConnected)
	session.AddListener(collector.Observe)

	acc := accessory.New(accessory.Information{
		Name:         cfg.Device.Name,
		Manufacturer: cfg.Device.Identity.Manufacturer,
		Model:        cfg.Device.Identity.Model,
		SerialNumber: cfg.Device.Identity.SerialNumber,
	}, session)
	acc.SetLogger(log.Component("accessory"))

	// HTTP surface (optional)
	if cfg.API.Enabled {
		checks := []api.HealthCheck{{Name: "mqtt", Check: mqttClient.HealthCheck}}
		if db != nil {
			checks = append(checks, api.HealthCheck{Name: "database", Check: db.HealthCheck})
		}
		if influxClient != nil {
			checks = append(checks, api.HealthCheck{Name: "influxdb", Check: influxClient.HealthCheck})
		}

		server, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Security:  cfg.Security,
			Logger:    log.Component("api"),
			Accessory: acc,
			State:     session,
			History:   historyRepo,
			DeviceID:  cfg.Device.Username,
			Checks:    checks,
			Metrics:   collector,
			Version:   version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		session.AddListener(server.PublishState)

		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		if cfg.Security.JWT.Secret == "" {
			log.Warn("API authentication disabled: security.jwt.secret is empty")
		}
	} else {
		log.Info("API disabled")
	}

	// Every (re)connect subscribes and resynchronises.
	mqttClient.SetOnConnect(func() {
		log.Info("connected to robot", "host", cfg.Device.Host, "client_id", mqttClient.ClientID())
		if connErr := session.HandleConnect(); connErr != nil {
			log.Error("robot session setup failed", "error", connErr)
		}
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("robot connection lost", "error", err)
	})

	if connErr := mqttClient.Connect(); connErr != nil {
		if !errors.Is(connErr, mqtt.ErrTimeout) {
			return fmt.Errorf("connecting to robot: %w", connErr)
		}
		log.Warn("robot not reachable yet, retrying in background",
			"host", cfg.Device.Host,
			"port", cfg.Device.Port,
		)
	}

	if historyRepo != nil && cfg.GetHistoryRetention() > 0 {
		go pruneLoop(ctx, historyRepo, cfg.GetHistoryRetention(), log)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API, telemetry worker, MQTT, InfluxDB, database.

	return nil
}

// getConfigPath returns the configuration file path.
// Uses DYSON360_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DYSON360_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// pruneLoop deletes history older than retention now and every pruneInterval.
func pruneLoop(ctx context.Context, repo history.Repository, retention time.Duration, log *logging.Logger) {
	prune := func() {
		n, err := repo.Prune(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("pruning state history", "error", err)
			}
			return
		}
		if n > 0 {
			log.Info("state history pruned", "rows", n, "retention", retention)
		}
	}

	prune()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// runToken implements the token subcommand: it signs an API access token
// with the configured secret and prints it.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	role := fs.String("role", string(auth.RoleController), "token role: viewer or controller")
	ttl := fs.Duration("ttl", 0, "token lifetime (default: security.jwt.access_token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: dyson360bridge token [-role viewer|controller] [-ttl 24h] <subject>")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
	}

	token, err := auth.GenerateAccessToken(fs.Arg(0), auth.Role(*role), cfg.Security.JWT.Secret, lifetime)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Fprintln(out, token)
	return nil
}

// mqttTransport adapts the infrastructure MQTT client to vacuum.Transport.
// The only difference is the named handler type on Subscribe.
type mqttTransport struct {
	client *mqtt.Client
}

// Publish implements vacuum.Transport.
func (t *mqttTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return t.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements vacuum.Transport.
func (t *mqttTransport) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return t.client.Subscribe(topic, qos, handler)
}
