// Command agentdend runs the agent supervision daemon: it spawns agent
// terminals, classifies their output, keeps the quest ledger and serves
// the websocket gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agentden/agentden/internal/config"
	"github.com/agentden/agentden/internal/db"
	"github.com/agentden/agentden/internal/gateway"
	"github.com/agentden/agentden/internal/quest"
	"github.com/agentden/agentden/internal/supervisor"
	"github.com/agentden/agentden/internal/sysexec"
)

func main() {
	cfg := config.DefaultConfig()

	listen := flag.String("listen", cfg.ListenAddr, "gateway listen address")
	dbPath := flag.String("db", cfg.DBPath, "sqlite database path")
	publicURL := flag.String("public-url", cfg.PublicURL, "advertised websocket URL for remote clients")
	roots := flag.String("workspace-roots", strings.Join(cfg.WorkspaceRoots, ","), "comma-separated directories scanned for workspaces")
	debug := flag.Bool("debug", false, "verbose development logging")
	flag.Parse()

	cfg.ListenAddr = *listen
	cfg.DBPath = *dbPath
	cfg.PublicURL = *publicURL
	if *roots != "" {
		cfg.WorkspaceRoots = splitRoots(*roots)
	}

	log, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentdend: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("daemon exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	hub := gateway.NewHub(store, log.Named("hub"))
	exec := sysexec.NewExecutor(cfg.CommandTimeout)
	sup := supervisor.New(cfg, log.Named("supervisor"), hub, exec)
	ledger := quest.NewLedger(store, sup, hub, log.Named("quest"))
	sup.SetQuestRecorder(ledger)
	sup.Start(ctx)

	srv := gateway.NewServer(cfg, log.Named("gateway"), hub, sup, ledger)
	if err := srv.Start(); err != nil {
		return err
	}
	log.Info("agentdend ready",
		zap.String("addr", srv.Addr()),
		zap.String("db", cfg.DBPath))

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("gateway shutdown", zap.Error(err))
	}
	sup.Shutdown()
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func splitRoots(s string) []string {
	var roots []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			roots = append(roots, part)
		}
	}
	return roots
}
