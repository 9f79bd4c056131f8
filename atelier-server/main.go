package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atelier/internal/api"
	"atelier/internal/artifact"
	"atelier/internal/config"
	"atelier/internal/db"
	"atelier/internal/grant"
	"atelier/internal/nftverify"
	"atelier/internal/queue"
)

const serverVersion = "0.1.0-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "export":
			if err := runExport(os.Args[2:]); err != nil {
				log.Fatalf("export failed: %v", err)
			}
			return
		case "import":
			if err := runImport(os.Args[2:]); err != nil {
				log.Fatalf("import failed: %v", err)
			}
			return
		}
	}

	var (
		port   = flag.String("port", "8080", "HTTP listen port")
		dbPath = flag.String("db", "./atelier.db", "path to SQLite database")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	orch := &grant.Orchestrator{
		DB:       database,
		Producer: artifact.NewReplicateProducer(cfg.ProducerURL, cfg.ProducerToken, cfg.ProducerModel),
		Queue: queue.Config{
			DailyCap: cfg.DailyCap,
			Location: cfg.Location(),
		},
	}
	verifier := nftverify.NewRPCVerifier(cfg.ChainRPCURL, cfg.ChainAPIKey, cfg.Collection)

	mux := api.NewRouter(database, api.Options{
		Orchestrator: orch,
		Verifier:     verifier,
		AdminToken:   cfg.AdminToken,
		Version:      serverVersion,
	})

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
		}
	}()

	log.Printf("atelier-server listening on %s (daily cap %d, window tz %s)", server.Addr, cfg.DailyCap, cfg.Timezone)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	<-shutdownDone
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	outPath := fs.String("out", "./atelier-export.yaml", "snapshot output path (.yaml or .json)")
	dbPath := fs.String("db", "./atelier.db", "path to SQLite database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.ApplyMigrations(database); err != nil {
		return err
	}
	snap, err := db.ExportSnapshot(context.Background(), database)
	if err != nil {
		return err
	}
	if err := db.WriteSnapshot(snap, *outPath); err != nil {
		return err
	}
	log.Printf("exported %d agents and %d posts to %s", len(snap.Agents), len(snap.Posts), *outPath)
	return nil
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fromPath := fs.String("from", "", "path to a snapshot file (.yaml or .json)")
	dbPath := fs.String("db", "./atelier.db", "path to SQLite database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fromPath == "" {
		return errors.New("missing --from")
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.ApplyMigrations(database); err != nil {
		return err
	}
	if err := db.ImportSnapshot(context.Background(), database, *fromPath); err != nil {
		return err
	}
	log.Printf("import complete from %s into %s", *fromPath, *dbPath)
	return nil
}
