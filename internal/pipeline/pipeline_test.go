package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/agrosense/cropwatch/internal/model"
	"github.com/agrosense/cropwatch/internal/model/messages"
	"github.com/agrosense/cropwatch/pkg/broker"
)

// ---- fakes ----

type fakeMessage struct{ payload []byte }

var _ mqtt.Message = (*fakeMessage)(nil)

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return "drone/images" }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type fakeConsumer struct {
	handler broker.Handler
}

func (c *fakeConsumer) SetHandler(h broker.Handler)        { c.handler = h }
func (c *fakeConsumer) ConsumeMessage(ctx context.Context) { <-ctx.Done() }

func (c *fakeConsumer) deliver(t *testing.T, payload []byte) {
	t.Helper()
	if err := c.handler("drone/images", &fakeMessage{payload: payload}); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

type fakeClassifier struct {
	verdict messages.Verdict
	err     error
	calls   atomic.Int32
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (messages.Verdict, error) {
	f.calls.Add(1)
	return f.verdict, f.err
}

// gatedClassifier blocks every call until release is closed.
type gatedClassifier struct {
	release chan struct{}
}

func (g *gatedClassifier) Classify(_ context.Context, _ string) (messages.Verdict, error) {
	<-g.release
	return messages.Verdict{IsAlert: true, ProblemType: "blight"}, nil
}

type storeCall struct {
	obs       model.PlantObservation
	alertType string
}

type fakeStore struct {
	calls chan storeCall
	err   error
}

func newFakeStore() *fakeStore { return &fakeStore{calls: make(chan storeCall, 16)} }

func (f *fakeStore) CreateObservationWithAlert(_ context.Context, obs *model.PlantObservation, alertType string, _ time.Time) (*model.Alert, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls <- storeCall{obs: *obs, alertType: alertType}
	return &model.Alert{ID: 1, PlantID: obs.ID, AlertType: alertType}, nil
}

// ---- harness ----

func startPipeline(t *testing.T, c *fakeClassifier, s *fakeStore) *fakeConsumer {
	t.Helper()
	consumer := &fakeConsumer{}
	p := New(consumer, c, s, Config{Workers: 2, QueueSize: 8, ClassifyTimeout: time.Second, ShutdownGrace: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return consumer
}

func eventPayload(t *testing.T, image string, lat, long float64) []byte {
	t.Helper()
	b, err := json.Marshal(messages.ImageEvent{Image: image, GpsLat: lat, GpsLong: long})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func expectNoCall(t *testing.T, s *fakeStore) {
	t.Helper()
	select {
	case call := <-s.calls:
		t.Fatalf("unexpected store call: %+v", call)
	case <-time.After(100 * time.Millisecond):
	}
}

// ---- tests ----

func TestPositiveVerdictPersistsAlert(t *testing.T) {
	cl := &fakeClassifier{verdict: messages.Verdict{IsAlert: true, ProblemType: "blight"}}
	st := newFakeStore()
	consumer := startPipeline(t, cl, st)

	consumer.deliver(t, eventPayload(t, "ref1", 10.0, 20.0))

	select {
	case call := <-st.calls:
		if call.alertType != "blight" {
			t.Errorf("alert type = %q", call.alertType)
		}
		if call.obs.GpsLat != 10.0 || call.obs.GpsLong != 20.0 {
			t.Errorf("coordinates = (%v, %v)", call.obs.GpsLat, call.obs.GpsLong)
		}
		if call.obs.PhotoURL != "ref1" {
			t.Errorf("photo url = %q", call.obs.PhotoURL)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert never persisted")
	}
}

func TestNegativeVerdictDiscards(t *testing.T) {
	cl := &fakeClassifier{verdict: messages.Verdict{IsAlert: false}}
	st := newFakeStore()
	consumer := startPipeline(t, cl, st)

	consumer.deliver(t, eventPayload(t, "ref2", 1, 2))
	expectNoCall(t, st)
}

func TestClassifierFailureDropsEventAndStaysAvailable(t *testing.T) {
	cl := &fakeClassifier{err: errors.New("network down")}
	st := newFakeStore()
	consumer := startPipeline(t, cl, st)

	consumer.deliver(t, eventPayload(t, "ref3", 1, 2))
	expectNoCall(t, st)

	// Pipeline must accept and process the next event.
	cl.err = nil
	cl.verdict = messages.Verdict{IsAlert: true, ProblemType: "rust"}
	consumer.deliver(t, eventPayload(t, "ref4", 3, 4))

	select {
	case call := <-st.calls:
		if call.obs.PhotoURL != "ref4" {
			t.Errorf("processed wrong event: %q", call.obs.PhotoURL)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline unavailable after classifier failure")
	}
}

func TestPersistenceFailureDropsEvent(t *testing.T) {
	cl := &fakeClassifier{verdict: messages.Verdict{IsAlert: true, ProblemType: "blight"}}
	st := newFakeStore()
	st.err = errors.New("store unavailable")
	consumer := startPipeline(t, cl, st)

	consumer.deliver(t, eventPayload(t, "ref5", 1, 2))
	expectNoCall(t, st)
}

func TestDuplicatePayloadProcessedOnce(t *testing.T) {
	cl := &fakeClassifier{verdict: messages.Verdict{IsAlert: true, ProblemType: "blight"}}
	st := newFakeStore()
	consumer := startPipeline(t, cl, st)

	payload := eventPayload(t, "ref6", 1, 2)
	consumer.deliver(t, payload)
	consumer.deliver(t, payload) // QoS 1 redelivery

	select {
	case <-st.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("first delivery never processed")
	}
	expectNoCall(t, st)
	if n := cl.calls.Load(); n != 1 {
		t.Errorf("classifier called %d times, want 1", n)
	}
}

func TestShutdownWaitsForInFlightWork(t *testing.T) {
	consumer := &fakeConsumer{}
	cl := &gatedClassifier{release: make(chan struct{})}
	st := newFakeStore()
	p := New(consumer, cl, st, Config{Workers: 1, QueueSize: 4, ClassifyTimeout: 5 * time.Second, ShutdownGrace: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	consumer.deliver(t, eventPayload(t, "ref7", 1, 2))
	cancel()

	select {
	case <-done:
		t.Fatal("Start returned while a classification was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(cl.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start never returned after the in-flight event finished")
	}
	select {
	case call := <-st.calls:
		if call.obs.PhotoURL != "ref7" {
			t.Errorf("persisted %q, want ref7", call.obs.PhotoURL)
		}
	default:
		t.Error("in-flight event was not persisted before Start returned")
	}
}

func TestFullQueueDropRecoverableOnRedelivery(t *testing.T) {
	// Workers never started: the intake queue fills and stays full.
	consumer := &fakeConsumer{}
	p := New(consumer, &fakeClassifier{}, newFakeStore(), Config{Workers: 1, QueueSize: 1, ClassifyTimeout: time.Second, ShutdownGrace: time.Second})

	first := eventPayload(t, "refA", 1, 2)
	second := eventPayload(t, "refB", 3, 4)

	consumer.deliver(t, first)
	consumer.deliver(t, second) // intake full, dropped
	if len(p.jobs) != 1 {
		t.Fatalf("queue depth = %d, want 1", len(p.jobs))
	}
	<-p.jobs

	consumer.deliver(t, second)
	if len(p.jobs) != 1 {
		t.Fatal("redelivery of a dropped event was deduplicated")
	}
	consumer.deliver(t, first)
	if len(p.jobs) != 1 {
		t.Fatal("redelivery of an accepted event was enqueued again")
	}
}

func TestMalformedPayloadIgnored(t *testing.T) {
	cl := &fakeClassifier{verdict: messages.Verdict{IsAlert: true}}
	st := newFakeStore()
	consumer := startPipeline(t, cl, st)

	consumer.deliver(t, []byte("not json"))
	consumer.deliver(t, []byte(`{"gps_lat": 1}`)) // no image reference
	expectNoCall(t, st)
	if n := cl.calls.Load(); n != 0 {
		t.Errorf("classifier called %d times for bad payloads", n)
	}
}
