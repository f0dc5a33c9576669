package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/siamwms/asrsd/internal/api"
	"github.com/siamwms/asrsd/internal/config"
	"github.com/siamwms/asrsd/internal/mover"
	"github.com/siamwms/asrsd/internal/plc"
	"github.com/siamwms/asrsd/internal/printer"
	"github.com/siamwms/asrsd/internal/qr"
	"github.com/siamwms/asrsd/internal/status"
	"github.com/siamwms/asrsd/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the crane control service",
	Long: `Run starts every component of the control service: the mover loop,
the clear-request reactor, the QR scan listener, the status feed and the
HTTP/WebSocket API. It blocks until interrupted and shuts down cleanly,
letting an in-flight command cycle finish first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runService() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return printer.Error("Invalid configuration", err.Error(), []string{
			fmt.Sprintf("check %s against the documented asrsd.yml format", configPath),
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return printer.Error("Cannot open database", err.Error(), nil)
	}
	defer st.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return printer.Error("Redis not accessible", err.Error(), []string{
			fmt.Sprintf("verify redis.addr (%s) and that Redis is running", cfg.Redis.Addr),
		})
	}

	nodes := cfg.Nodes()
	dial := plc.DialConfig{
		Endpoint:   cfg.PLC.Endpoint,
		RetryDelay: cfg.PLC.RetryDelay.Std(),
		MaxRetries: cfg.PLC.MaxRetries,
	}

	// The mover and status feed share one PLC session; the QR listener
	// gets its own so scan polling never queues behind a command cycle.
	craneBus, err := plc.Dial(ctx, dial)
	if err != nil {
		return printer.Error("Cannot connect to PLC", err.Error(), nil)
	}
	defer craneBus.Close(context.Background())

	scanBus, err := plc.Dial(ctx, dial)
	if err != nil {
		return printer.Error("Cannot connect to PLC (scanner session)", err.Error(), nil)
	}
	defer scanBus.Close(context.Background())

	session := mover.NewSession(craneBus, nodes, mover.DefaultTimings())
	mv := mover.New(session, st, mover.NewPositionTracker(cfg.Calibration()))
	listener := qr.NewListener(scanBus, nodes, st, cfg.Crane.QRInterval.Std())
	feed := status.NewFeed(rdb, mv, cfg.Instance, cfg.Crane.StatusInterval.Std())

	srv := &http.Server{
		Addr:    cfg.API.Listen,
		Handler: api.NewServer(st, mv, listener, rdb, cfg.Instance).Router(),
	}

	go mv.Run(ctx)
	go mv.WatchClearRequests(ctx)
	go listener.Run(ctx)
	go feed.Run(ctx)
	go func() {
		log.Printf("[API] Listening on %s", cfg.API.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[API] Server error: %v", err)
			stop()
		}
	}()

	printer.Success("asrsd started for instance '%s'\n", cfg.Instance)
	<-ctx.Done()
	log.Printf("[Main] Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Main] API shutdown: %v", err)
	}
	return nil
}
