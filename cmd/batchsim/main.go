package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fogcitymarathoner/azure-batch-samples/internal/batchsim"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/logging"
)

func main() {
	opts := batchsim.DefaultOptions()

	batchAddr := flag.String("batch-addr", "127.0.0.1:8080", "Listen address for the Batch endpoint")
	blobAddr := flag.String("blob-addr", "127.0.0.1:10000", "Listen address for the Blob endpoint")
	flag.DurationVar(&opts.TaskStartDelay, "task-start-delay", opts.TaskStartDelay, "Time a task waits before it starts running")
	flag.DurationVar(&opts.TaskRunTime, "task-run-time", opts.TaskRunTime, "Time a task runs before it completes")
	flag.IntVar(&opts.PageSize, "page-size", 0, "Maximum items per list page (0 = unlimited)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "text", "Log format (text, json)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *debug {
		*logLevel = "debug"
	}
	if _, err := logging.ParseLevel(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	logger := logging.New(logging.Options{Level: *logLevel, Format: *logFormat})
	opts.Logger = logger

	sim := batchsim.New(opts)
	servers := []*http.Server{
		{Addr: *batchAddr, Handler: sim.BatchHandler()},
		{Addr: *blobAddr, Handler: sim.BlobHandler()},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server failed", "addr", srv.Addr, "error", err)
				os.Exit(1)
			}
		}(srv)
	}
	logger.Info("simulator ready",
		"batch_url", "http://"+*batchAddr,
		"storage_url", "http://"+*blobAddr+"/<account>",
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
			os.Exit(1)
		}
	}
	logger.Info("simulator stopped")
}
