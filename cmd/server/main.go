package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/shelfscore/backend/config"
	httpDelivery "github.com/shelfscore/backend/internal/delivery/http"
	"github.com/shelfscore/backend/internal/infrastructure/sources"
	"github.com/shelfscore/backend/internal/infrastructure/store"
	"github.com/shelfscore/backend/internal/usecase"
)

func main() {
	log := logrus.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Server.Environment == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetLevel(logrus.DebugLevel)
	}

	log.Infof("Starting ShelfScore Backend v1.0.0")
	log.Infof("Environment: %s", cfg.Server.Environment)
	log.Infof("Store: %s", cfg.Store.Path)

	// Initialize persistence
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	// External lookup tiers, in waterfall order
	timeout := cfg.Sources.Timeout
	userAgent := cfg.Sources.UserAgent
	sourceSet := usecase.SourceSet{
		Community: sources.NewCommunityClient(cfg.Sources.CommunityBaseURL, userAgent, timeout),
		Books:     sources.NewOpenLibrary(cfg.Sources.BooksBaseURL, userAgent, timeout),
		Food:      sources.NewOpenFoodFacts(cfg.Sources.FoodBaseURL, userAgent, timeout),
		Beauty:    sources.NewOpenBeautyFacts(cfg.Sources.BeautyBaseURL, userAgent, timeout),
		Generic:   sources.NewUPCItemDB(cfg.Sources.GenericBaseURL, userAgent, timeout, cfg.Sources.GenericPerMinute),
	}

	// Initialize usecase layer
	resolution := usecase.NewResolutionService(
		db.Products(),
		sourceSet,
		usecase.ResolutionConfig{SourceTimeout: timeout},
		log,
	)
	validator := usecase.NewScoreValidator(usecase.ValidatorConfig{
		ReconcileTolerance: cfg.Validator.ReconcileTolerance,
		DiscrepancyCap:     cfg.Validator.DiscrepancyCap,
	})
	consensus := usecase.NewConsensusService(db.Consensus(), usecase.ConsensusConfig{
		SteadyStateWeight:    cfg.Consensus.SteadyStateWeight,
		EarlySampleThreshold: cfg.Consensus.EarlySampleThreshold,
		TrustThreshold:       cfg.Consensus.TrustThreshold,
	})
	privacy := usecase.NewPrivacyEncoder(usecase.PrivacyEncoderConfig{
		MinJitterMeters:  cfg.Privacy.JitterMinMeters,
		MaxJitterMeters:  cfg.Privacy.JitterMaxMeters,
		GeohashPrecision: cfg.Privacy.GeohashPrecision,
	})
	scans := usecase.NewScanService(resolution, validator, consensus, db.Ledger(), privacy, log)

	log.Infof("Consensus: weight=%.2f, earlyThreshold=%d, trust=%d",
		cfg.Consensus.SteadyStateWeight,
		cfg.Consensus.EarlySampleThreshold,
		cfg.Consensus.TrustThreshold)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(scans, resolution, db.Ledger())

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Infof("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
