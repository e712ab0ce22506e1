package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Prathmesh00007/awwninja/internal/briefing"
	"github.com/Prathmesh00007/awwninja/internal/config"
	"github.com/Prathmesh00007/awwninja/internal/handlers"
)

func main() {
	topics := flag.String("topics", "", "comma-separated topics (empty means top stories)")
	duration := flag.Int("duration", 90, "target briefing length in seconds")
	freshness := flag.Duration("freshness", 2*time.Hour, "content freshness window")
	language := flag.String("language", "", "briefing language, e.g. en-US")
	output := flag.String("out", "briefing.wav", "output WAV path")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create server instance (contains the full pipeline)
	server, err := handlers.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer server.Close()

	req := briefing.Request{
		DurationSeconds: *duration,
		Freshness:       *freshness,
		Language:        *language,
	}
	if *topics != "" {
		req.Topics = strings.Split(*topics, ",")
	}

	result, err := server.ExecuteBriefing(context.Background(), req)
	if err != nil {
		log.Fatalf("Briefing failed: %v", err)
	}

	if err := os.WriteFile(*output, result.Audio, 0o644); err != nil {
		log.Fatalf("Writing audio: %v", err)
	}

	metaPath := strings.TrimSuffix(*output, ".wav") + ".json"
	meta, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Encoding metadata: %v", err)
	}
	if err := os.WriteFile(metaPath, meta, 0o644); err != nil {
		log.Fatalf("Writing metadata: %v", err)
	}

	fmt.Printf("Wrote %.1fs briefing to %s (%d sources, voice %s)\n",
		result.DurationSeconds, *output, len(result.Attributions), result.Voice)
	for _, w := range result.Warnings {
		fmt.Println("warning:", w)
	}
}
