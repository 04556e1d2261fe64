package acquire

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/offshore-forecast/internal/gridcache"
	"github.com/i474232898/offshore-forecast/internal/metrics"
	"github.com/i474232898/offshore-forecast/internal/modelrun"
	"github.com/i474232898/offshore-forecast/internal/nomads"
)

var (
	run     = modelrun.Run{Date: "20240501", Cycle: 12}
	station = nomads.Target{ID: "44025", Lat: 40.25, Lon: -73.16}
	payload = bytes.Repeat([]byte("G"), 256)
)

// hourSource asks the test server for /<hour>.
type hourSource struct{ base string }

func (hourSource) Product() string { return "test" }

func (s hourSource) URL(_ nomads.Target, _ modelrun.Run, hour int) string {
	return s.base + "/" + strconv.Itoa(hour)
}

func newAcquirer(t *testing.T, cfg Config) *Acquirer {
	t.Helper()
	cache, err := gridcache.New(t.TempDir())
	if err != nil {
		t.Fatalf("gridcache.New: %v", err)
	}
	return New(cache, cfg, metrics.NewCollector("test", prometheus.NewRegistry()))
}

func TestAcquireSavesAndReusesCachedFile(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write(payload)
	}))
	defer srv.Close()

	a := newAcquirer(t, Config{})
	src := hourSource{base: srv.URL}

	gf, err := a.Acquire(context.Background(), src, station, run, 3)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	data, err := os.ReadFile(gf.Path)
	if err != nil || !bytes.Equal(data, payload) {
		t.Fatalf("cached file mismatch: %v", err)
	}
	if gf.Hour != 3 || gf.Run != run || gf.Target != "44025" {
		t.Fatalf("unexpected grid file %+v", gf)
	}

	if _, err := a.Acquire(context.Background(), src, station, run, 3); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 download, got %d", n)
	}
}

func TestAcquireResponseHandling(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			want:    ErrNotPublished,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want: ErrAcquisition,
		},
		{
			name:    "short payload",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("tiny")) },
			want:    ErrAcquisition,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			want: ErrAcquisition,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			a := newAcquirer(t, Config{Timeout: 100 * time.Millisecond})
			_, err := a.Acquire(context.Background(), hourSource{base: srv.URL}, station, run, 0)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if path := a.Cache().PathFor("test", station.ID, run, 0); a.Cache().Valid(path) {
				t.Fatal("failed acquisition must not leave a cached file")
			}
		})
	}
}

func TestAcquireAllToleratesMissingHours(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)

		switch r.URL.Path {
		case "/96":
			http.NotFound(w, r)
		case "/99":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write(payload)
		}
	}))
	defer srv.Close()

	var hours []int
	for h := 0; h <= 120; h += 3 {
		hours = append(hours, h)
	}

	a := newAcquirer(t, Config{Workers: 4})
	res, err := a.AcquireAll(context.Background(), hourSource{base: srv.URL}, station, run, hours)
	if err != nil {
		t.Fatalf("AcquireAll: %v", err)
	}
	if res.Requested() != len(hours) {
		t.Fatalf("requested %d, want %d", res.Requested(), len(hours))
	}
	if len(res.Missing) != 2 {
		t.Fatalf("expected 2 missing hours, got %v", res.Missing)
	}
	if !errors.Is(res.Missing[96], ErrNotPublished) || !errors.Is(res.Missing[99], ErrAcquisition) {
		t.Fatalf("unexpected reasons %v", res.Missing)
	}
	for i := 1; i < len(res.Files); i++ {
		if res.Files[i-1].Hour >= res.Files[i].Hour {
			t.Fatal("files not ordered by hour")
		}
	}
	if p := atomic.LoadInt32(&peak); p > 4 {
		t.Fatalf("expected at most 4 concurrent downloads, saw %d", p)
	}
}

func TestAcquireAllCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newAcquirer(t, Config{})
	if _, err := a.AcquireAll(ctx, hourSource{base: srv.URL}, station, run, []int{0, 3}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
