package app

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"roadwatch/internal/config"
	"roadwatch/internal/engine"
	"roadwatch/internal/ingest"
	"roadwatch/internal/logger"
	"roadwatch/internal/metrics"
	"roadwatch/internal/publisher"
	"roadwatch/internal/repository/sqlite"
	"roadwatch/internal/routes"
	"roadwatch/internal/services/detection"
	"roadwatch/internal/store"
)

type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	pub      publisher.HazardPublisher
	store    *store.Store
	service  *detection.Service
	registry *prometheus.Registry
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.New(cfg.LogDirectory)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var pub publisher.HazardPublisher = publisher.Noop{}
	if cfg.KafkaBrokers != "" {
		kp, err := publisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting kafka publisher: %w", err)
		}
		pub = kp
	}

	eng := engine.New(engine.Config{
		VerificationThreshold: cfg.VerificationThreshold,
		DenialThreshold:       cfg.DenialThreshold,
		BaselineWeight:        cfg.BaselineWeight,
		MinVerifyScore:        cfg.MinVerifyScore,
		ExpiryWindow:          time.Duration(cfg.ExpiryWindowHours) * time.Hour,
	})

	s, err := store.New(
		store.Config{
			SpatialTolerance: cfg.SpatialTolerance,
			ProximityRadius:  cfg.FeedbackRadius,
			SweepInterval:    time.Duration(cfg.SweepIntervalMinutes) * time.Minute,
		},
		eng,
		sqlite.NewHazardRepository(db),
		sqlite.NewFeedbackRepository(db),
		pub, m, log,
	)
	if err != nil {
		pub.Close()
		db.Close()
		return nil, fmt.Errorf("building hazard store: %w", err)
	}

	ingestor := ingest.New(s, m, log, cfg.ConfidenceThreshold)
	svc := detection.NewService(
		detection.NopDetector{Name: cfg.ModelName},
		ingestor,
		detection.NewRegistry(cfg.MaxSessions),
		m, log,
	)

	return &App{
		config:   cfg,
		logger:   log,
		db:       db,
		pub:      pub,
		store:    s,
		service:  svc,
		registry: registry,
	}, nil
}

func (a *App) Run() error {
	a.store.StartSweeper()
	defer a.Close()

	router := routes.SetupRoutes(a.store, a.service, a.registry, a.logger)

	a.logger.Info("Road hazard server listening on :%d", a.config.Port)
	a.logger.Info("Database: %s", a.config.DatabasePath)
	if a.config.KafkaBrokers != "" {
		a.logger.Info("Exporting hazard events to %s (topic %s)", a.config.KafkaBrokers, a.config.KafkaTopic)
	}

	return http.ListenAndServe(fmt.Sprintf(":%d", a.config.Port), router)
}

// Close releases background workers and external connections.
func (a *App) Close() {
	a.store.Close()
	a.pub.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Closing database: %v", err)
	}
}
