package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	httpadapter "gradekey/internal/adapters/http"
	"gradekey/internal/workers/regrader"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background regrade workers",
	Long: `Serve the grading API on --listen-addr.

Regrade jobs queued by grading key modifications are processed by
--regrade-workers goroutines polling the job queue every --poll-interval.
With the memory backend all data is lost on shutdown.`,
	PreRunE: loadConfig,
	RunE: func(_ *cobra.Command, _ []string) error {
		return serve(rootCtx, vp.GetBool("auto-migrate"))
	},
}

func serve(parent context.Context, autoMigrate bool) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	if autoMigrate && be.migrate != nil {
		if err := be.migrate(ctx, -1); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	engine, svc := newServices(be, cfg)
	processor := regrader.ServiceProcessor{Service: svc}
	srv := httpadapter.New(engine, svc, be.exams, be.corrections, be.jobs, processor,
		httpadapter.WithAllowedOrigins(cfg.AllowedOrigins))
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	if cfg.RegradeWorkers > 0 {
		go regrader.Run(ctx, be.jobs, processor, cfg.RegradeWorkers, cfg.PollInterval)
		log.Printf("regrade workers started: %d", cfg.RegradeWorkers)
	}

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Printf("listening on %s (%s backend)", cfg.ListenAddr, cfg.DBBackend)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Printf("shutting down on %s", sig)
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}
