// Package pipeline consumes image-available events from the broker, runs
// them through the classification client, and persists alerts for positive
// verdicts. Each event is processed independently: no ordering guarantee,
// at-most-once delivery into the store.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/agrosense/cropwatch/internal/model"
	"github.com/agrosense/cropwatch/internal/model/messages"
	"github.com/agrosense/cropwatch/pkg/broker"
	"github.com/agrosense/cropwatch/pkg/dedup"
)

// Classifier scores one image reference.
type Classifier interface {
	Classify(ctx context.Context, imageRef string) (messages.Verdict, error)
}

// AlertStore is the slice of the persistence gateway the pipeline writes
// through.
type AlertStore interface {
	CreateObservationWithAlert(ctx context.Context, obs *model.PlantObservation, alertType string, detectedAt time.Time) (*model.Alert, error)
}

type Config struct {
	// Workers bounds how many classifications may be in flight at once.
	Workers int
	// QueueSize is the intake buffer between the broker callback and the
	// workers. When it is full, events are dropped (logged) so one slow
	// classification cannot stall the consumer loop.
	QueueSize int
	// ClassifyTimeout bounds one classification, persistence included.
	ClassifyTimeout time.Duration
	// ShutdownGrace is how long Start waits for in-flight work on shutdown.
	ShutdownGrace time.Duration
}

type job struct {
	id      string // correlation id for logs
	payload []byte
}

type Pipeline struct {
	consumer   broker.IConsumer
	classifier Classifier
	store      AlertStore
	cfg        Config

	jobs    chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex // guards closing and the send into jobs
	closing bool
	deduper *dedup.Deduper
}

func New(consumer broker.IConsumer, classifier Classifier, store AlertStore, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4 * cfg.Workers
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = 10 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	p := &Pipeline{
		consumer:   consumer,
		classifier: classifier,
		store:      store,
		cfg:        cfg,
		jobs:       make(chan job, cfg.QueueSize),
		deduper:    dedup.New(10*time.Minute, 20000),
	}
	consumer.SetHandler(p.handleMessage)
	return p
}

// Start runs the consumer loop and worker pool. It blocks until ctx is
// cancelled, then drains in-flight work within the configured grace period.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.consumer.ConsumeMessage(ctx)

	<-ctx.Done()

	p.mu.Lock()
	p.closing = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("pipeline: drained")
	case <-time.After(p.cfg.ShutdownGrace):
		log.Printf("pipeline: grace period %s elapsed, abandoning in-flight work", p.cfg.ShutdownGrace)
	}
}

// handleMessage only dedups and enqueues; all processing happens on workers
// so the broker callback stays available for the next event.
func (p *Pipeline) handleMessage(topic string, msg mqtt.Message) error {
	h := sha256.Sum256(msg.Payload())
	key := hex.EncodeToString(h[:])
	if p.deduper.Seen(key) {
		eventsTotal.WithLabelValues(outcomeDuplicate).Inc()
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closing {
		return nil
	}

	j := job{id: uuid.NewString(), payload: msg.Payload()}
	select {
	case p.jobs <- j:
		// Marked only after the enqueue succeeds, so an event dropped for a
		// full intake queue stays eligible for QoS 1 redelivery.
		p.deduper.Mark(key)
		queueDepth.Set(float64(len(p.jobs)))
	default:
		eventsTotal.WithLabelValues(outcomeDropped).Inc()
		log.Printf("pipeline: intake full, dropping event from %s (id=%s)", topic, j.id)
	}
	return nil
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.process(j)
		queueDepth.Set(float64(len(p.jobs)))
	}
}

// process drives one event through Received → Classifying → terminal state.
func (p *Pipeline) process(j job) {
	var evt messages.ImageEvent
	if err := json.Unmarshal(j.payload, &evt); err != nil {
		eventsTotal.WithLabelValues(outcomeFailed).Inc()
		log.Printf("pipeline: invalid event payload (id=%s): %v", j.id, err)
		return
	}
	if evt.Image == "" {
		eventsTotal.WithLabelValues(outcomeFailed).Inc()
		log.Printf("pipeline: event without image reference (id=%s)", j.id)
		return
	}

	// Shutdown does not cancel this context: in-flight events finish or are
	// abandoned by the grace period in Start.
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ClassifyTimeout)
	defer cancel()

	start := time.Now()
	verdict, err := p.classifier.Classify(ctx, evt.Image)
	classifyDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		eventsTotal.WithLabelValues(outcomeFailed).Inc()
		log.Printf("pipeline: classification failed (id=%s image=%s): %v", j.id, evt.Image, err)
		return
	}

	if !verdict.IsAlert {
		eventsTotal.WithLabelValues(outcomeDiscarded).Inc()
		return
	}

	detectedAt := evt.TakenAt
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}
	if verdict.ProblemType == "" {
		verdict.ProblemType = "unspecified"
	}
	obs := &model.PlantObservation{
		MissionID:    evt.MissionID,
		GpsLat:       evt.GpsLat,
		GpsLong:      evt.GpsLong,
		HealthStatus: "unhealthy",
		ProblemType:  verdict.ProblemType,
		PhotoURL:     evt.Image,
	}
	alert, err := p.store.CreateObservationWithAlert(ctx, obs, verdict.ProblemType, detectedAt)
	if err != nil {
		eventsTotal.WithLabelValues(outcomeFailed).Inc()
		log.Printf("pipeline: alert write failed (id=%s image=%s): %v", j.id, evt.Image, err)
		return
	}

	eventsTotal.WithLabelValues(outcomeAlert).Inc()
	log.Printf("pipeline: alert %d persisted (id=%s image=%s type=%s lat=%.4f long=%.4f)",
		alert.ID, j.id, evt.Image, verdict.ProblemType, evt.GpsLat, evt.GpsLong)
}
