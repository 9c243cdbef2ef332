package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amakane-hakari/kairos/internal/evictmap"
)

func newTestServer() http.Handler {
	m := evictmap.NewWithScheduler[string, string](evictmap.NoopScheduler[string, string]{})
	return NewRouter(m, nil)
}

func TestHealth(t *testing.T) {
	ts := httptest.NewServer(newTestServer())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request error : %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

type dataEnvelope struct {
	Data valueDTO `json:"data"`
}

func TestKVS_CRUD(t *testing.T) {
	ts := httptest.NewServer(newTestServer())
	defer ts.Close()

	// PUT
	body := bytes.NewBufferString(`{"value":"bar"}`)
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/kvs/foo", body)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put status %d", res.StatusCode)
	}

	// GET
	getRes, err := http.Get(ts.URL + "/kvs/foo")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get status %d", getRes.StatusCode)
	}
	var env dataEnvelope
	if err := json.NewDecoder(getRes.Body).Decode(&env); err != nil {
		t.Fatalf("get decode error: %v", err)
	}
	if env.Data.Value != "bar" {
		t.Fatalf("expected value 'bar', got '%s'", env.Data.Value)
	}

	// DELETE
	delReq, _ := http.NewRequest(http.MethodDelete, ts.URL+"/kvs/foo", nil)
	delRes, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if delRes.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d", delRes.StatusCode)
	}

	// GET again (not found)
	getRes2, err := http.Get(ts.URL + "/kvs/foo")
	if err != nil {
		t.Fatalf("get2 error: %v", err)
	}
	if getRes2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", getRes2.StatusCode)
	}
}

func TestKVS_TTLExpiry(t *testing.T) {
	ts := httptest.NewServer(newTestServer())
	defer ts.Close()

	body := bytes.NewBufferString(`{"value":"x"}`)
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/kvs/ephemeral?ttl=30ms", body)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put status %d", res.StatusCode)
	}

	getRes, err := http.Get(ts.URL + "/kvs/ephemeral")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("expected present before expiry, got %d", getRes.StatusCode)
	}

	time.Sleep(60 * time.Millisecond)

	getRes2, err := http.Get(ts.URL + "/kvs/ephemeral")
	if err != nil {
		t.Fatalf("get2 error: %v", err)
	}
	if getRes2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after expiry, got %d", getRes2.StatusCode)
	}
}
