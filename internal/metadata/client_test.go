package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/winzzers/internal/crypto"
	"github.com/alanyoungcy/winzzers/internal/domain"
)

func TestSaveMetadataPostsJSON(t *testing.T) {
	var got map[string]any
	var sigHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/markets" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		sigHeader = r.Header.Get(crypto.HeaderSignature)
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithSigner(crypto.NewRequestSigner("s3cret", 0)))
	err := c.SaveMetadata(context.Background(), domain.MarketMetadata{
		MarketID: 7,
		Title:    "Derby",
		Tags:     []string{"football"},
	})
	if err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}

	if got["marketId"] != float64(7) || got["title"] != "Derby" {
		t.Errorf("payload = %v", got)
	}
	if _, ok := got["createdAt"]; ok {
		t.Error("zero createdAt should be omitted so the server stamps it")
	}
	if sigHeader == "" {
		t.Error("request was not signed")
	}
}

func TestSaveMetadataNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Redis not configured"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).SaveMetadata(context.Background(), domain.MarketMetadata{MarketID: 1})
	if !errors.Is(err, domain.ErrMetadataSync) {
		t.Fatalf("got %v, want ErrMetadataSync", err)
	}
	if want := "Redis not configured"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not carry %q", err, want)
	}
}

func TestSaveMetadataUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(url).SaveMetadata(context.Background(), domain.MarketMetadata{MarketID: 1})
	if !errors.Is(err, domain.ErrMetadataSync) {
		t.Errorf("got %v, want ErrMetadataSync", err)
	}
}

func TestGetMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/markets/3/meta":
			w.Write([]byte(`{"marketId":3,"title":"T","description":"D","tags":["a"],"createdAt":1700000000000}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL)

	meta, err := c.GetMetadata(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.Title != "T" || meta.CreatedAt != 1_700_000_000_000 || len(meta.Tags) != 1 {
		t.Errorf("got %+v", meta)
	}

	if _, err := c.GetMetadata(context.Background(), 4); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing market: got %v, want ErrNotFound", err)
	}
}

type slowSink struct{}

func (slowSink) SaveMetadata(ctx context.Context, _ domain.MarketMetadata) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSyncTimesOut(t *testing.T) {
	start := time.Now()
	err := Sync(context.Background(), slowSink{}, domain.MarketMetadata{MarketID: 1}, 20*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sync did not honour its timeout")
	}
	if err := Sync(context.Background(), nil, domain.MarketMetadata{}, time.Second); err == nil {
		t.Error("nil sink accepted")
	}
}
