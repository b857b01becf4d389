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

	"github.com/joho/godotenv"

	"github.com/example/phonobot/internal/database"
	"github.com/example/phonobot/internal/excel"
	"github.com/example/phonobot/internal/judge"
	"github.com/example/phonobot/internal/mastery"
	"github.com/example/phonobot/internal/notify"
	"github.com/example/phonobot/internal/scheduler"
	"github.com/example/phonobot/internal/server"
	"github.com/example/phonobot/internal/session"
)

func main() {
	importFile := flag.String("import", "", "import knowledge components and candidate items from an .xlsx file, then exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	if err := database.Connect(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if *importFile != "" {
		config := excel.DefaultImportConfig()
		config.FilePath = *importFile
		result, err := excel.ImportReferenceData(config)
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		log.Printf("Import done: %d components, %d items, %d skipped, %d errors",
			result.ComponentsCreated, result.ItemsCreated, result.Skipped, len(result.Errors))
		for _, e := range result.Errors {
			log.Printf("  %s", e)
		}
		return
	}

	masterySvc := mastery.New(database.NewMasteryRepository(), database.NewKnowledgeComponentRepository())
	store := session.NewStore(sessionTTL())

	// The judge delivers verdicts back through the manager; the closure
	// breaks the construction cycle between the two.
	var manager *session.Manager
	var judgeClient session.Judge
	if client, err := judge.New(func(sessionID string, problemNumber int, correct bool) {
		manager.RecordVoiceResult(sessionID, problemNumber, correct)
	}); err != nil {
		log.Printf("Pronunciation judging disabled: %v", err)
	} else {
		judgeClient = client
	}

	manager = session.NewManager(session.ManagerConfig{
		Store:   store,
		Mastery: masterySvc,
		Users:   database.NewUserRepository(),
		Items:   database.NewCandidateItemRepository(),
		Masks:   database.NewCandidateMaskRepository(),
		Stages:  database.NewStageRepository(),
		Judge:   judgeClient,
	})

	var notifier scheduler.Notifier
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		tg, err := notify.NewTelegram(token)
		if err != nil {
			log.Printf("Practice reminders disabled: %v", err)
		} else {
			notifier = tg
		}
	}

	sched := scheduler.New(manager, notifier, masterySvc)
	sched.Start()
	defer sched.Stop()

	srv := server.New(manager, database.NewMasteryRepository())
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	go func() {
		log.Printf("Listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal: %v", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func sessionTTL() time.Duration {
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Printf("Warning: invalid SESSION_TTL %q, using default", v)
	}
	return session.DefaultTTL
}
