package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/player-console/internal/config"
	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/kafka"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	brokers := flag.String("brokers", "", "Kafka brokers (comma-separated), overrides config")
	topic := flag.String("topic", "", "Kafka topic, overrides config")
	group := flag.String("group", "console-activity-tail", "Consumer group ID")
	fromStart := flag.Bool("from-start", false, "Read the topic from the oldest offset")
	player := flag.String("player", "", "Only print actions for this player ref")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if *brokers != "" {
		cfg.Kafka.Brokers = strings.Split(*brokers, ",")
	}
	if *topic != "" {
		cfg.Kafka.Topic = *topic
	}
	cfg.Kafka.GroupID = *group

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Console Activity Tail")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", strings.Join(cfg.Kafka.Brokers, ","))
	fmt.Printf("  Topic:            %s\n", cfg.Kafka.Topic)
	fmt.Printf("  Group:            %s\n", cfg.Kafka.GroupID)
	fmt.Printf("  From start:       %t\n", *fromStart)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	var seen, failed int64
	printAction := kafka.HandlerFunc(func(_ context.Context, rec domain.ActionRecord) error {
		if *player != "" && rec.PlayerRef != *player {
			return nil
		}
		atomic.AddInt64(&seen, 1)
		status := "ok"
		if !rec.Succeeded {
			atomic.AddInt64(&failed, 1)
			status = "FAILED"
		}
		fmt.Printf("[%s] %-16s %-6s account=%s player=%s target=%s %s\n",
			rec.CreatedAt.Format("15:04:05"),
			rec.Kind,
			status,
			rec.Account,
			orDash(rec.PlayerRef),
			orDash(rec.TargetID),
			rec.Message,
		)
		return nil
	})

	consumer, err := kafka.NewConsumer(&cfg.Kafka, printAction, *fromStart, logger)
	if err != nil {
		log.Fatalf("Failed to create consumer: %v", err)
	}
	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start consumer: %v", err)
	}

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n\nShutting down...")
	if err := consumer.Stop(); err != nil {
		log.Printf("Consumer close error: %v", err)
	}
	fmt.Printf("\n✓ Completed. Actions: %d, Failed: %d\n", atomic.LoadInt64(&seen), atomic.LoadInt64(&failed))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
