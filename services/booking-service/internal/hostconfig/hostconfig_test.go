package hostconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != "Asia/Seoul" || cfg.DefaultDuration() != 30*time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.LocationTimezones()["US"] != "America/Los_Angeles" {
		t.Fatalf("expected default US location")
	}
	start, end := cfg.WorkHours()
	if start.String() != "08:00" || end.String() != "21:00" {
		t.Fatalf("unexpected hours %s-%s", start, end)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.yaml")
	body := `
timezone: America/New_York
work_start: "9:00 AM"
work_end: "17:30"
locations:
  - tag: NYC
    timezone: America/New_York
    address: 350 5th Ave
feeds:
  - id: holidays
    url: https://example.com/holidays.ics
feed_refresh: "0 * * * *"
slot_duration_minutes: 60
reminders:
  - method: popup
    minutes: 10
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultDuration() != time.Hour || cfg.MaxDuration() != 240*time.Minute {
		t.Fatalf("unexpected durations %s/%s", cfg.DefaultDuration(), cfg.MaxDuration())
	}
	if cfg.Addresses()["NYC"] != "350 5th Ave" {
		t.Fatalf("expected address for NYC")
	}
	if r := cfg.CalendarReminders(); len(r) != 1 || r[0].Minutes != 10 {
		t.Fatalf("unexpected reminders %+v", r)
	}
	if len(cfg.FlightKeywords) == 0 || len(cfg.Destinations) == 0 {
		t.Fatalf("keyword defaults should be filled in")
	}
	start, _ := cfg.WorkHours()
	if start.String() != "09:00" {
		t.Fatalf("expected 12h input to parse, got %s", start)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"timezone": "timezone: Not/AZone\n",
		"hours":    "work_start: \"18:00\"\nwork_end: \"09:00\"\n",
		"cron":     "feeds:\n  - id: a\n    url: http://x\nfeed_refresh: \"every so often\"\n",
		"duration": "slot_duration_minutes: 45\n",
		"yaml":     "timezone: [unterminated\n",
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), name+".yaml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
