package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"roadwatch/internal/channel"
	"roadwatch/internal/config"
	"roadwatch/internal/logger"
	"roadwatch/internal/models"
)

// probe is a synthetic edge client: it streams dummy frames at a fixed
// rate and prints whatever the detection service sends back. Useful for
// exercising the service and the streaming channel end to end.
func main() {
	endpoint := flag.String("endpoint", "ws://localhost:8080", "detection service base URL")
	clientID := flag.String("client-id", "", "client id (random when empty)")
	rate := flag.Float64("rate", 2.0, "frames per second to submit")
	lat := flag.Float64("lat", 52.2297, "reported latitude")
	lon := flag.Float64("lon", 21.0122, "reported longitude")
	flag.Parse()

	cfg := config.Load()
	id := *clientID
	if id == "" {
		id = "probe-" + uuid.New().String()[:8]
	}

	ch := channel.New(channel.Config{
		Endpoint:          *endpoint,
		ClientID:          id,
		MaxFrameRate:      cfg.MaxFrameRate,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectDelay:    cfg.ReconnectDelay,
		ConnectTimeout:    cfg.ConnectTimeout,
		AutoReconnect:     true,
	}, logger.New(cfg.LogDirectory))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	err := ch.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *endpoint, err)
	}
	fmt.Printf("Connected to %s as %s\n", *endpoint, id)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / *rate))
	defer ticker.Stop()

	payload := base64.StdEncoding.EncodeToString([]byte("probe-frame"))
	frames := 0

	for {
		select {
		case <-stop:
			fmt.Println("\nDisconnecting...")
			ch.Disconnect()
			stats := ch.Stats()
			fmt.Printf("Submitted %d frames, %d results, %d throttled, %d reconnects\n",
				stats.Submitted, stats.Results, stats.Throttled, stats.Reconnects)
			return

		case <-ticker.C:
			frames++
			err := ch.Submit(models.FrameSubmission{
				FrameID:     fmt.Sprintf("%s-%d", id, frames),
				Payload:     payload,
				SubmittedAt: time.Now(),
				Location:    &models.Location{Latitude: *lat, Longitude: *lon},
			})
			if err != nil {
				fmt.Printf("submit: %v\n", err)
			}

		case result, ok := <-ch.Results():
			if !ok {
				return
			}
			fmt.Printf("frame %s: %d detections (%.1f ms)\n",
				result.FrameID, result.DetectionCount, result.ProcessingTimeMS)
			for _, d := range result.Detections {
				fmt.Printf("  %s %.2f\n", d.ClassName, d.Confidence)
			}

		case err, ok := <-ch.Errors():
			if !ok {
				return
			}
			fmt.Printf("channel: %v\n", err)
		}
	}
}
