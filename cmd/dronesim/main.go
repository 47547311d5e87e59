// dronesim exercises the full pipeline locally: it publishes synthetic
// image-available events on the broker and pushes synthetic telemetry to the
// HTTP API at a fixed interval.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/agrosense/cropwatch/internal/model/messages"
	"github.com/agrosense/cropwatch/pkg/broker"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

type simulator struct {
	publisher broker.IPublisher
	apiBase   string
	http      *http.Client

	// field centre the simulated drone patrols around
	lat, long float64
}

func (s *simulator) publishImage() {
	evt := messages.ImageEvent{
		Image:   fmt.Sprintf("s3://captures/%s.jpg", uuid.NewString()),
		GpsLat:  s.lat + (rand.Float64()-0.5)*0.01,
		GpsLong: s.long + (rand.Float64()-0.5)*0.01,
		TakenAt: time.Now().UTC(),
	}
	payload, _ := json.Marshal(evt)
	if err := s.publisher.PublishMessage(payload); err != nil {
		log.Printf("dronesim: publish error: %v", err)
		return
	}
	log.Printf("dronesim: published image %s at (%.4f, %.4f)", evt.Image, evt.GpsLat, evt.GpsLong)
}

func (s *simulator) pushTelemetry() {
	rain := 0.0
	if rand.Float64() < 0.2 {
		rain = rand.Float64() * 5
	}
	body, _ := json.Marshal(map[string]any{
		"temperature": 15 + rand.Float64()*15,
		"humidity":    40 + rand.Float64()*50,
		"rain_mm":     rain,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	res, err := s.http.Post(s.apiBase+"/sensor-data/", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("dronesim: telemetry push error: %v", err)
		return
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		log.Printf("dronesim: telemetry push status %d", res.StatusCode)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mqCfg := &broker.Config{
		Host:     env("MQTT_HOST", "localhost"),
		Port:     envInt("MQTT_PORT", 1883),
		User:     env("MQTT_USER", ""),
		Password: env("MQTT_PASSWORD", ""),
		ClientID: env("MQTT_CLIENT_ID", "cropwatch-dronesim"),
	}
	client, err := broker.NewConn(ctx, mqCfg)
	if err != nil {
		log.Fatalf("mqtt connect failed: %v", err)
	}

	sim := &simulator{
		publisher: broker.NewPublisher(client, env("IMAGE_TOPIC", "drone/images")),
		apiBase:   env("API_BASE_URL", "http://localhost:8080"),
		http:      &http.Client{Timeout: 5 * time.Second},
		lat:       3.1390,
		long:      101.6869,
	}

	interval := time.Duration(envInt("PUBLISH_INTERVAL_MS", 10000)) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("dronesim: publishing every %s", interval)
	for {
		select {
		case <-ctx.Done():
			sim.publisher.Close()
			log.Println("dronesim: stopped")
			return
		case <-ticker.C:
			sim.pushTelemetry()
			sim.publishImage()
		}
	}
}
