package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nodewatch/nodewatch/internal/buildinfo"
	"github.com/nodewatch/nodewatch/internal/config"
	"github.com/nodewatch/nodewatch/internal/engine"
	"github.com/nodewatch/nodewatch/internal/maintenance"
	"github.com/nodewatch/nodewatch/internal/probe"
	"github.com/nodewatch/nodewatch/internal/statusboard"
	"github.com/nodewatch/nodewatch/internal/store"
)

func main() {
	// 1. Load and validate environment config
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	log.Printf("nodewatch %s (%s, built %s) starting",
		buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	// 2. Bootstrap the store (creates the data dir, applies migrations)
	st, err := store.Bootstrap(envCfg.DataDir)
	if err != nil {
		log.Fatalf("store bootstrap: %v", err)
	}
	defer st.Close()

	// 3. Seed nodes on first boot only
	if envCfg.SeedFile != "" {
		if err := seedIfEmpty(st, envCfg.SeedFile); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	// 4. Read the working set
	nodes, err := st.ListNodes()
	if err != nil {
		log.Fatalf("list nodes: %v", err)
	}
	log.Printf("monitoring %d nodes", len(nodes))

	// 5. Start the engine
	dispatcher := probe.NewDispatcher(probe.Config{
		HTTPTimeout:    envCfg.DefaultHTTPProbe,
		PingPrivileged: envCfg.PingPrivileged,
	})
	eng := engine.New(engine.Config{
		Store:         st,
		Probe:         dispatcher.Probe,
		Tick:          envCfg.EngineTick,
		CommandBuffer: envCfg.CommandQueueSize,
		UpdateBuffer:  envCfg.UpdateQueueSize,
	})
	eng.Start(nodes)

	// 6. Mirror engine updates into the status board
	relayStop := make(chan struct{})
	board := statusboard.New()
	board.Load(nodes)
	board.Relay(eng.Updates(), relayStop)

	// 7. Scheduled database upkeep
	maint := maintenance.NewService(st.DB(), envCfg.DBMaintenanceSchedule)
	maint.Start()

	// 8. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("received signal %s, shutting down...", sig)

	eng.Stop()
	close(relayStop)
	board.Wait()
	maint.Stop()
	log.Println("stopped")
}

// seedIfEmpty loads the seed file into the store when the nodes table is
// empty. An existing fleet is never touched.
func seedIfEmpty(st *store.Store, seedFile string) error {
	existing, err := st.ListNodes()
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	seeds, err := config.LoadSeedFile(seedFile)
	if err != nil {
		return err
	}
	for i := range seeds {
		if _, err := st.AddNode(&seeds[i]); err != nil {
			return fmt.Errorf("add seed node %q: %w", seeds[i].Name, err)
		}
	}
	if len(seeds) > 0 {
		log.Printf("seeded %d nodes from %s", len(seeds), seedFile)
	}
	return nil
}
