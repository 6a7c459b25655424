package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/OkayAnshul/Voyager-sub006/internal/api"
	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/database"
	"github.com/OkayAnshul/Voyager-sub006/internal/events"
	"github.com/OkayAnshul/Voyager-sub006/internal/handler"
	"github.com/OkayAnshul/Voyager-sub006/internal/repository"
	"github.com/OkayAnshul/Voyager-sub006/internal/service"
	"github.com/OkayAnshul/Voyager-sub006/internal/state"
	"github.com/OkayAnshul/Voyager-sub006/internal/validator"
	"github.com/OkayAnshul/Voyager-sub006/internal/visit"
)

func main() {
	cfg := config.Load()
	detection := config.LoadDetectionConfig()

	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories over the durable history
	positions := repository.NewPositionRepository(db)
	places := repository.NewPlaceRepository(db)
	visits := repository.NewVisitRepository(db)
	stateRepo := repository.NewStateRepository(db)
	history := repository.NewHistory(places, visits, positions)

	// State authority and pipeline
	bus := events.NewBus(256)
	defer bus.Close()

	store := state.NewStore(stateRepo, history, detection)
	if err := store.InitializeIfAbsent(ctx); err != nil {
		log.Fatal("Failed to initialize current state:", err)
	}

	machine := visit.NewMachine(visits, places, store, bus, detection)
	tracking := service.NewTrackingService(positions, places, visits, machine, store, bus, detection)

	var geocoder service.Geocoder
	if cfg.GeocodeURL != "" {
		geocoder = service.NewHTTPGeocoder(cfg.GeocodeURL)
	}
	detect := service.NewDetectionService(positions, places, geocoder)

	// Consistency validator, periodic and at startup
	v := validator.New(store, history, machine, detection)
	validatorDone := make(chan struct{})
	go func() {
		defer close(validatorDone)
		v.Run(ctx)
	}()

	router := api.SetupRouter(cfg, api.Handlers{
		Positions: handler.NewPositionHandler(tracking, positions, detection),
		Places:    handler.NewPlaceHandler(places, visits),
		Visits:    handler.NewVisitHandler(visits),
		State:     handler.NewStateHandler(tracking),
		Detection: handler.NewDetectionHandler(detect, v, detection),
	})

	srv := &http.Server{
		Addr:    cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	<-validatorDone
}
