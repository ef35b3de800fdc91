package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"ripple/app/config"
	"ripple/app/controllers"
	"ripple/app/events"
	"ripple/app/models"
	"ripple/app/notify"
	"ripple/app/repositories"
	"ripple/app/routes"
	"ripple/app/services"
	"ripple/app/stream"
)

const cliVersion = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "help":
		printHelp()
	case "version":
		fmt.Printf("ripple version %s\n", cliVersion)
	case "serve":
		serve(os.Args[2:])
	case "seed-users":
		seedUsers(os.Args[2:])
	case "reconcile":
		reconcile(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	helpText := `Usage: ripple <command> [options]
Commands:
  help                           Display this help message.
  version                        Show version information.
  serve      [--config <path>]   Run the feed engine HTTP server.
  seed-users --file <path>       Load user profiles from a JSON file.
  reconcile  [--config <path>]   Repair denormalized counters from their sets.
`
	fmt.Println(helpText)
}

func serve(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := openDB(cfg.DataDir)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	bus := events.NewBus(cfg.SubscriberBuffer, log)
	defer bus.Close()

	feedService := buildFeedService(db, bus, cfg, log)
	gateway := stream.NewGateway(bus, cfg.KeepAlive, log)
	controller := controllers.NewFeedController(feedService)
	router := routes.SetupRoutes(controller, gateway, log)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	go func() {
		log.Info("feed engine listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
}

func seedUsers(args []string) {
	fs := flag.NewFlagSet("seed-users", flag.ExitOnError)
	file := fs.String("file", "", "JSON file with an array of profiles")
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "seed-users requires --file")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read error: %v\n", err)
		os.Exit(1)
	}
	var profiles []models.Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		os.Exit(1)
	}

	db, err := openDB(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	users := repositories.NewBadgerUserDirectory(db)
	for i := range profiles {
		if err := users.Put(&profiles[i]); err != nil {
			fmt.Fprintf(os.Stderr, "failed to store %s: %v\n", profiles[i].ID, err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded %d profiles\n", len(profiles))
}

func reconcile(args []string) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	db, err := openDB(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	feedService := buildFeedService(db, nil, cfg, zap.NewNop())
	report, err := feedService.Reconcile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("repaired %d like counters, %d vote counters, %d comment counters\n",
		report.LikeCounters, report.VoteCounters, report.CommentCounters)
}

func buildFeedService(db *badger.DB, bus *events.Bus, cfg *config.Config, log *zap.Logger) *services.FeedService {
	posts := repositories.NewBadgerPostRepository(db)
	comments := repositories.NewBadgerCommentRepository(db)
	users := repositories.NewBadgerUserDirectory(db)
	sink := repositories.NewBadgerNotificationSink(db)
	dispatcher := notify.NewDispatcher(sink, users, log)

	limits := services.DefaultLimits()
	if cfg.DefaultPageSize > 0 {
		limits.DefaultPageSize = cfg.DefaultPageSize
	}
	if cfg.MaxPageSize > 0 {
		limits.MaxPageSize = cfg.MaxPageSize
	}
	if cfg.PreviewRoots > 0 {
		limits.PreviewRoots = cfg.PreviewRoots
	}
	if cfg.FullThreadRoots > 0 {
		limits.FullThreadRoots = cfg.FullThreadRoots
	}
	if cfg.MediaByteLimit > 0 {
		limits.MediaByteLimit = cfg.MediaByteLimit
	}

	return services.NewFeedService(posts, comments, users, bus, dispatcher, limits, log)
}

func openDB(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	return badger.Open(opts)
}
