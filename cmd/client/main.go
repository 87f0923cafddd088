// =============================================================================
// PUSH ARENA - HEADLESS PARTICIPANT
// =============================================================================
// Joins a relay room and plays with scripted input: wanders, hops and holds
// push. Useful for demos and soak runs against the relay server.
//
// USAGE:
//  1. Start the relay:   go run ./cmd/server
//  2. Start some bots:   ROOM=demo go run ./cmd/client
//
// =============================================================================
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"push-arena/internal/api"
	"push-arena/internal/authority"
	"push-arena/internal/bot"
	"push-arena/internal/config"
	"push-arena/internal/game"
	"push-arena/internal/physics"
	"push-arena/internal/session"
	"push-arena/internal/transport/wsclient"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	}

	log.Println("🤖 ================================")
	log.Println("🤖  PUSH ARENA - BOT")
	log.Println("🤖 ================================")

	appConfig, err := config.Load()
	if err != nil {
		log.Printf("⚠️ %v (using defaults for tuning)", err)
	}

	// Tuning is read every tick; the watcher swaps it in place.
	tuning := config.NewTuningStore(appConfig.Tuning)
	if appConfig.TuningFile != "" {
		watcher, err := config.WatchTuning(appConfig.TuningFile, tuning)
		if err != nil {
			log.Printf("⚠️ Tuning hot reload disabled: %v", err)
		} else {
			defer watcher.Close()
			log.Printf("🔧 Watching %s", appConfig.TuningFile)
		}
	}

	journal := game.NewEventLog()
	if err := journal.Start(appConfig.JournalPath); err != nil {
		log.Printf("⚠️ Event journal disabled: %v", err)
		journal.Start("")
	} else if appConfig.JournalPath != "" {
		log.Printf("📝 Event journal: %s", appConfig.JournalPath)
	}
	defer journal.Stop()

	debugCfg := appConfig.Debug
	debugCfg.Enabled = debugCfg.Enabled && os.Getenv("BOT_DEBUG_SERVER") == "true"
	if err := api.StartDebugServer(debugCfg); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := wsclient.Dial(ctx, appConfig.Net)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer client.Close()

	registry := authority.NewRegistry()
	participant, err := session.NewParticipant(session.Context{
		Registry: registry,
		Bus:      client,
		World:    physics.NewWorld(physics.DefaultConfig()),
		Exit:     client,
		Tuning:   tuning,
		Journal:  journal,
		Sim:      appConfig.Sim,
	}, bot.NewScript(bot.DefaultScriptConfig(seed())))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	client.Join(participant)
	participant.Start()
	defer participant.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("🛑 Shutting down...")
	case <-client.Done():
		if participant.Exited() {
			log.Println("💀 Health depleted, session over")
		} else {
			log.Println("📴 Relay connection lost")
		}
	}

	log.Printf("📊 Ticks: %d, owned %v of %d entities, journal events: %d (dropped %d), frames dropped: %d",
		participant.Tick(), registry.Locals(), registry.Len(),
		journal.GetTotalCount(), journal.GetDroppedCount(), client.Dropped())
	log.Println("👋 Goodbye!")
}

func seed() uint64 {
	if v := os.Getenv("BOT_SEED"); v != "" {
		if s, err := strconv.ParseUint(v, 10, 64); err == nil {
			return s
		}
	}
	return uint64(time.Now().UnixNano())
}
