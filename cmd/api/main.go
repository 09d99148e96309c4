package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/mailparse/internal/api/handlers"
	"github.com/dvloznov/mailparse/internal/api/middleware"
	"github.com/dvloznov/mailparse/internal/app"
	"github.com/dvloznov/mailparse/internal/config"
	"github.com/dvloznov/mailparse/internal/jobs"
	"github.com/dvloznov/mailparse/internal/jobs/inmemory"
	"github.com/dvloznov/mailparse/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogJSON)

	ctx := context.Background()

	engine, err := app.BuildEngine(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build parsing engine")
	}
	defer engine.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.BatchConcurrency, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		parseJob, ok := job.(*jobs.ParseEmailJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", parseJob.JobID).
			Str("email_id", parseJob.EmailID).
			Msg("Processing parse job")

		if _, err := engine.ParseOne(ctx, parseJob.EmailID, parseJob.ForceReparse); err != nil {
			log.Error().
				Err(err).
				Str("job_id", parseJob.JobID).
				Str("email_id", parseJob.EmailID).
				Msg("Parse job failed")
			return err
		}

		log.Info().
			Str("job_id", parseJob.JobID).
			Str("email_id", parseJob.EmailID).
			Msg("Parse job completed")
		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	parseHandler := handlers.NewParseHandler(engine.Engine, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	var (
		sink     handlers.EmailSink
		lister   handlers.TransactionLister
		archiver handlers.BodyArchiver
	)
	if engine.Memory != nil {
		sink = engine.Memory
		lister = engine.Memory
	} else {
		sink = engine.BigQuery
		lister = engine.BigQuery
	}
	if engine.Archive != nil {
		archiver = engine.Archive
	}
	emailsHandler := handlers.NewEmailsHandler(sink, archiver, cfg.GCSBucket, log)
	transactionsHandler := handlers.NewTransactionsHandler(lister, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/emails", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			emailsHandler.CreateEmail(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/parse/email", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			parseHandler.ParseEmail(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/parse/batch", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			parseHandler.ParseBatch(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/parse/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			parseHandler.GetStats(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
