package config

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestParseHours(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "0-12/3", want: []int{0, 3, 6, 9, 12}},
		{in: "0-120/3", want: nil},
		{in: "6, 0,3", want: []int{0, 3, 6}},
		{in: "0-6/3,6,126", want: []int{0, 3, 6, 126}},
		{in: "4-6", want: []int{4, 5, 6}},
		{in: "", wantErr: true},
		{in: "a-3", wantErr: true},
		{in: "6-3", wantErr: true},
		{in: "0-6/0", wantErr: true},
		{in: "3/3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHours(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHours: %v", err)
			}
			if tt.want == nil {
				if len(got) != 41 || got[40] != 120 {
					t.Fatalf("expected 41 hours ending at 120, got %d", len(got))
				}
				return
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseBBox(t *testing.T) {
	box, err := ParseBBox("50, 0, -100, -40")
	if err != nil {
		t.Fatalf("ParseBBox: %v", err)
	}
	if box.Top != 50 || box.Bottom != 0 || box.Left != -100 || box.Right != -40 {
		t.Fatalf("unexpected box %+v", box)
	}
	for _, bad := range []string{"1,2,3", "0,50,-100,-40", "x,0,1,2"} {
		if _, err := ParseBBox(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.WaveBasin != "atlantic" || cfg.FallbackMaxHour != 24 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.PublishLatency != 3*time.Hour+30*time.Minute || cfg.CycleSpacing != 6*time.Hour {
		t.Errorf("latency %s spacing %s", cfg.PublishLatency, cfg.CycleSpacing)
	}
	if len(cfg.WindHours) != 57 || len(cfg.WaveHours) != 41 {
		t.Errorf("wind %d wave %d hours", len(cfg.WindHours), len(cfg.WaveHours))
	}
	if cfg.Location != time.UTC || cfg.WaveBBox != nil {
		t.Errorf("location %v bbox %v", cfg.Location, cfg.WaveBBox)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WAVE_FORECAST_HOURS", "0,3")
	t.Setenv("WAVE_BBOX", "45,30,-80,-60")
	t.Setenv("FETCH_WORKERS", "2")
	t.Setenv("OUTPUT_TIMEZONE", "America/New_York")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.WaveHours) != 2 || cfg.FetchWorkers != 2 || cfg.WaveBBox == nil || cfg.WaveBBox.Top != 45 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Location.String() != "America/New_York" {
		t.Errorf("location = %s", cfg.Location)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	t.Setenv("PUBLISH_LATENCY", "soon")
	t.Setenv("FETCH_WORKERS", "many")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"PUBLISH_LATENCY", "FETCH_WORKERS"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestLoadValidates(t *testing.T) {
	t.Setenv("FETCH_WORKERS", "0")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "FetchWorkers") {
		t.Fatalf("expected validation error, got %v", err)
	}

	t.Setenv("FETCH_WORKERS", "4")
	t.Setenv("OUTPUT_TIMEZONE", "Mars/Olympus")
	if _, err := Load(); err == nil {
		t.Fatal("expected timezone error")
	}
}
