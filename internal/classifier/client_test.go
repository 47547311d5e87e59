package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newClient(endpoint string, failures uint32) *Client {
	return NewClient(Config{
		Endpoint:        endpoint,
		Timeout:         2 * time.Second,
		Retries:         0,
		BreakerFailures: failures,
		BreakerOpenFor:  time.Minute,
	})
}

func TestClassifyPositiveVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req["image"] != "s3://captures/ref1.jpg" {
			t.Errorf("image ref = %q", req["image"])
		}
		json.NewEncoder(w).Encode(map[string]any{"isAlert": true, "problemType": "blight"})
	}))
	defer srv.Close()

	v, err := newClient(srv.URL, 5).Classify(context.Background(), "s3://captures/ref1.jpg")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !v.IsAlert || v.ProblemType != "blight" {
		t.Errorf("verdict = %+v", v)
	}
}

func TestClassifyNegativeVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"isAlert": false})
	}))
	defer srv.Close()

	v, err := newClient(srv.URL, 5).Classify(context.Background(), "ref")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if v.IsAlert {
		t.Errorf("expected negative verdict, got %+v", v)
	}
}

func TestClassifyBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 5).Classify(context.Background(), "ref")
	if KindOf(err) != KindBadStatus {
		t.Fatalf("kind = %q, err = %v", KindOf(err), err)
	}
}

func TestClassifyBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 5).Classify(context.Background(), "ref")
	if KindOf(err) != KindBadPayload {
		t.Fatalf("kind = %q, err = %v", KindOf(err), err)
	}
}

func TestClassifyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nobody listening anymore

	_, err := newClient(srv.URL, 5).Classify(context.Background(), "ref")
	if KindOf(err) != KindUnreachable {
		t.Fatalf("kind = %q, err = %v", KindOf(err), err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := newClient(srv.URL, 2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.Classify(ctx, "ref"); KindOf(err) != KindUnreachable {
			t.Fatalf("attempt %d: kind = %q", i, KindOf(err))
		}
	}
	_, err := c.Classify(ctx, "ref")
	if KindOf(err) != KindUnavailable {
		t.Fatalf("after trip: kind = %q, err = %v", KindOf(err), err)
	}
}
