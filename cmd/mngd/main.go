// nixstrav management daemon.
//
// mngd is the management core for a fleet of RFID reader bridges: it owns
// the tag registry (SQLite plus a JSON mirror consumed by the bridges),
// operator accounts and sessions, the audit trail, and the web console's
// HTTP/WebSocket API. Bridge heartbeats and live reads arrive over MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"time"

	_ "github.com/nixstrav/mng-core/migrations"

	"github.com/nixstrav/mng-core/internal/api"
	"github.com/nixstrav/mng-core/internal/audit"
	"github.com/nixstrav/mng-core/internal/auth"
	"github.com/nixstrav/mng-core/internal/events"
	"github.com/nixstrav/mng-core/internal/infrastructure/config"
	"github.com/nixstrav/mng-core/internal/infrastructure/database"
	"github.com/nixstrav/mng-core/internal/infrastructure/influxdb"
	"github.com/nixstrav/mng-core/internal/infrastructure/logging"
	"github.com/nixstrav/mng-core/internal/infrastructure/mqtt"
	"github.com/nixstrav/mng-core/internal/sysmon"
	"github.com/nixstrav/mng-core/internal/tag"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting nixstrav-mng",
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

	// Management database: users, tags, audit, reader presence
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Event log: written by the bridges, read-only here. Optional.
	var eventsRepo *events.Repository
	if _, statErr := os.Stat(cfg.Database.EventsPath); statErr == nil {
		eventsDB, openErr := database.OpenReadOnly(cfg.Database.EventsPath)
		if openErr != nil {
			return fmt.Errorf("opening events database: %w", openErr)
		}
		defer eventsDB.Close() //nolint:errcheck // read-only handle
		eventsRepo = events.NewRepository(eventsDB.DB)
		log.Info("events database connected", "path", cfg.Database.EventsPath)
	} else {
		eventsRepo = events.NewRepository(nil)
		log.Warn("events database not found, event panels will be empty", "path", cfg.Database.EventsPath)
	}

	// Auth stack
	userRepo := auth.NewUserRepository(db.DB)
	throttle := auth.NewThrottle(
		cfg.Security.Throttle.MaxAttempts,
		time.Duration(cfg.Security.Throttle.WindowSec)*time.Second,
		time.Duration(cfg.Security.Throttle.LockMinutes)*time.Minute,
	)
	sessionTTL := time.Duration(cfg.Security.Session.TTLMinutes) * time.Minute
	sessions := auth.NewSessionStore(sessionTTL)
	cookies := auth.NewCookieCodec(cfg.Security.Session.CookieName, cfg.Security.Session.Secret, sessionTTL, cfg.Security.Session.Secure)
	authenticator := auth.NewAuthenticator(userRepo, throttle, log)

	// First run: mint an admin account and print its password once.
	if password, seedErr := auth.SeedAdmin(ctx, userRepo, log); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	} else if password != "" {
		fmt.Printf("\n  Initial admin account created.\n  username: admin\n  password: %s\n\n  Change it after first login.\n\n", password)
	}

	// Tag registry with JSON mirror
	auditRepo := audit.NewSQLiteRepository(db.DB)
	registry := tag.NewRegistry(tag.NewRepository(db.DB), tag.NewMirror(cfg.Registry.MirrorPath), auditRepo, log)

	if imported, seedErr := registry.SeedFromMirrorIfEmpty(ctx); seedErr != nil {
		return fmt.Errorf("seeding registry from mirror: %w", seedErr)
	} else if imported > 0 {
		log.Info("registry seeded from mirror", "tags", imported)
	}

	// MQTT: bridge heartbeats and live reads. Optional.
	var mqttClient *mqtt.Client
	var sysmonRepo *sysmon.Repository
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		sysmonRepo = sysmon.NewRepository(db.DB)
	} else {
		log.Info("MQTT disabled, reader presence will not update")
	}

	// InfluxDB telemetry sink. Optional.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// API server
	server, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Readers:       cfg.Readers,
		Logger:        log,
		Authenticator: authenticator,
		Sessions:      sessions,
		Cookies:       cookies,
		Users:         userRepo,
		Registry:      registry,
		Audit:         auditRepo,
		Events:        eventsRepo,
		Sysmon:        sysmonRepo,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Bridge consumer: heartbeats update presence, reads go to the live
	// feed and the telemetry sink.
	if mqttClient != nil {
		consumer := sysmon.NewConsumer(sysmonRepo, mqttClient, byte(cfg.MQTT.QoS), log) //nolint:gosec // qos validated to 0..2
		consumer.Thresholds = sysmon.Thresholds{
			WarnAfter:    time.Duration(cfg.Readers.WarnAfterSec) * time.Second,
			OfflineAfter: time.Duration(cfg.Readers.OfflineAfterSec) * time.Second,
		}
		hub := server.Hub()
		consumer.OnRead = func(ev sysmon.ReadEvent) {
			hub.BroadcastRead(ev)
			if influxClient != nil {
				influxClient.WriteTagRead(ev.ReaderID, ev.NodeID, ev.EPC, ev.Fired)
			}
		}
		consumer.OnHeartbeat = hub.BroadcastHeartbeat
		if influxClient != nil {
			consumer.OnPresence = func(readerID, nodeID string, status sysmon.Presence) {
				influxClient.WriteReaderPresence(readerID, nodeID, string(status))
			}
		}
		if startErr := consumer.Start(); startErr != nil {
			return fmt.Errorf("starting bridge consumer: %w", startErr)
		}
		log.Info("bridge consumer subscribed")
	}

	log.Info("nixstrav-mng running")

	// Block until shutdown signal
	<-ctx.Done()
	log.Info("shutdown signal received")

	return nil
}

// getConfigPath returns the config file path from args or the default.
func getConfigPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if v := os.Getenv("NIXSTRAV_CONFIG"); v != "" {
		return v
	}
	return defaultConfigPath
}
