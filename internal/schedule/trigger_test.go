package schedule

import (
	"math/rand/v2"
	"testing"
	"time"

	"git.home.luguber.info/inful/codeworm/internal/config"
)

func testScheduleConfig() config.ScheduleConfig {
	return config.ScheduleConfig{
		Enabled:          true,
		MinCommitsPerDay: 12,
		MaxCommitsPerDay: 18,
		Timezone:         "UTC",
		PreferHours:      []int{10, 15},
		AvoidHours:       []int{3, 4, 5},
		WeekendReduction: 0.7,
		MinGapMinutes:    30,
	}
}

func newTestTrigger(t *testing.T, cfg config.ScheduleConfig, seed uint64) *Trigger {
	t.Helper()
	tr, err := NewTrigger(cfg, rand.New(rand.NewPCG(seed, seed)))
	if err != nil {
		t.Fatalf("NewTrigger: %v", err)
	}
	return tr
}

func TestDailyScheduleProperties(t *testing.T) {
	cfg := testScheduleConfig()
	tr := newTestTrigger(t, cfg, 11)

	// A Wednesday.
	day := time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)
	times := tr.generateDay(day)

	if len(times) > cfg.MaxCommitsPerDay {
		t.Fatalf("generated %d times, above max %d", len(times), cfg.MaxCommitsPerDay)
	}
	minGap := time.Duration(cfg.MinGapMinutes) * time.Minute
	for i, ts := range times {
		if ts.Day() != day.Day() {
			t.Fatalf("time %v outside the requested day", ts)
		}
		for _, avoid := range cfg.AvoidHours {
			if ts.Hour() == avoid {
				t.Fatalf("time %v lands in avoided hour %d", ts, avoid)
			}
		}
		if i > 0 {
			if !times[i-1].Before(ts) {
				t.Fatalf("times not sorted: %v then %v", times[i-1], ts)
			}
			if ts.Sub(times[i-1]) < minGap {
				t.Fatalf("gap %v below minimum between %v and %v", ts.Sub(times[i-1]), times[i-1], ts)
			}
		}
	}
}

func TestWeekendReduction(t *testing.T) {
	cfg := testScheduleConfig()
	cfg.MinGapMinutes = 0 // isolate the count from gap rejection

	// Average over seeds; a Saturday must trend below a weekday.
	saturday := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	wednesday := time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)

	satTotal, wedTotal := 0, 0
	for seed := uint64(0); seed < 20; seed++ {
		tr := newTestTrigger(t, cfg, seed)
		satTotal += len(tr.generateDay(saturday))
		tr = newTestTrigger(t, cfg, seed)
		wedTotal += len(tr.generateDay(wednesday))
	}
	if satTotal >= wedTotal {
		t.Fatalf("weekend total %d not reduced versus weekday total %d", satTotal, wedTotal)
	}
	// Floor of 3 even under aggressive reduction.
	cfg.WeekendReduction = 0.01
	tr := newTestTrigger(t, cfg, 5)
	if got := len(tr.generateDay(saturday)); got < 3 {
		t.Fatalf("weekend floor violated: %d fires", got)
	}
}

func TestGenerationDeterministicPerSeed(t *testing.T) {
	cfg := testScheduleConfig()
	day := time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)

	a := newTestTrigger(t, cfg, 77).generateDay(day)
	b := newTestTrigger(t, cfg, 77).generateDay(day)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("slot %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestNextFireTimeRollsOver(t *testing.T) {
	tr := newTestTrigger(t, testScheduleConfig(), 9)

	// Late evening: today's schedule may be spent; next fire must be
	// strictly in the future either way.
	now := time.Date(2026, 8, 19, 23, 59, 0, 0, time.UTC)
	next, ok := tr.NextFireTime(now)
	if !ok {
		t.Fatal("no next fire time")
	}
	if !next.After(now) {
		t.Fatalf("next fire %v not after now %v", next, now)
	}
}

func TestPreviewWindow(t *testing.T) {
	cfg := testScheduleConfig()
	tr := newTestTrigger(t, cfg, 13)

	// Monday start: 5 weekdays + 2 weekend days in the window.
	start := time.Date(2026, 8, 17, 8, 0, 0, 0, time.UTC)
	entries := tr.Preview(start, 7)

	low := 0 // rejection sampling may give up early, so only the hard upper bound holds
	high := cfg.MaxCommitsPerDay * 7
	if len(entries) < low || len(entries) > high {
		t.Fatalf("preview produced %d entries, outside [%d, %d]", len(entries), low, high)
	}
	for _, ts := range entries {
		for _, avoid := range cfg.AvoidHours {
			if ts.Hour() == avoid {
				t.Fatalf("preview entry %v in avoided hour", ts)
			}
		}
	}

	// Preview must not disturb the cached schedule used by NextFireTime.
	before := newTestTrigger(t, cfg, 13)
	n1, _ := before.NextFireTime(start)
	_ = before.Preview(start, 7)
	n2, _ := before.NextFireTime(start)
	if !n1.Equal(n2) {
		t.Fatalf("preview mutated trigger state: %v vs %v", n1, n2)
	}
}

func TestPreviewPairwiseGapsPerDay(t *testing.T) {
	cfg := testScheduleConfig()
	tr := newTestTrigger(t, cfg, 21)
	start := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)

	entries := tr.Preview(start, 7)
	minGap := time.Duration(cfg.MinGapMinutes) * time.Minute
	for i := 1; i < len(entries); i++ {
		if entries[i].Day() != entries[i-1].Day() {
			continue
		}
		if entries[i].Sub(entries[i-1]) < minGap {
			t.Fatalf("gap %v below minimum within a day", entries[i].Sub(entries[i-1]))
		}
	}
}

func TestAvoidAllHoursYieldsNothing(t *testing.T) {
	cfg := testScheduleConfig()
	cfg.AvoidHours = make([]int, 24)
	for h := range cfg.AvoidHours {
		cfg.AvoidHours[h] = h
	}
	tr := newTestTrigger(t, cfg, 2)
	if times := tr.generateDay(time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)); len(times) != 0 {
		t.Fatalf("fully avoided day generated %d times", len(times))
	}
}
