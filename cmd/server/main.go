package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/finsight/analytics/internal/analysis"
	"github.com/finsight/analytics/internal/config"
	"github.com/finsight/analytics/internal/narrative"
	"github.com/finsight/analytics/internal/outlier"
	"github.com/finsight/analytics/internal/service"
	"github.com/finsight/analytics/internal/store"
	"github.com/finsight/analytics/internal/timeseries"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	cfg := config.Load()
	ctx := context.Background()

	var st store.Store
	if cfg.UseMemoryStore {
		log.Info("using in-memory store for local development")
		st = store.NewMemoryStore()
	} else {
		if cfg.GCPProject == "" {
			log.Fatal("GOOGLE_CLOUD_PROJECT is required when not using the memory store")
		}
		client, err := firestore.NewClient(ctx, cfg.GCPProject)
		if err != nil {
			log.Fatalf("create firestore client: %v", err)
		}
		defer client.Close()
		st = store.NewFirestoreStore(client)
	}

	var gen narrative.Generator = narrative.NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	if cfg.AnthropicAPIKey == "" {
		log.Warn("ANTHROPIC_API_KEY not set, insights will use the rule-based fallback")
	}

	analyzer := analysis.New(
		st,
		timeseries.NewSeasonalTrendFitter(),
		outlier.NewIsolationForest(100, 42),
		gen,
		cfg.Requirements,
		logrus.NewEntry(log),
	)

	svc := service.New(analyzer, cfg.Requirements, log)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      c.Handler(svc.Router()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	log.Infof("starting analytics service on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
