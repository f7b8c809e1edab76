// Package schedule produces human-like fire times: a cached daily
// schedule sampled from an hour-weight distribution, executed through a
// gocron scheduler.
package schedule

import (
	"math/rand/v2"
	"sort"
	"time"

	"git.home.luguber.info/inful/codeworm/internal/config"
)

// hourWeights is the base per-hour commit likelihood: low at night, zero
// in the dead hours, peaks mid-morning, mid-afternoon and evening.
var hourWeights = [24]float64{
	0:  0.02,
	1:  0.01,
	2:  0.005,
	3:  0.0,
	4:  0.0,
	5:  0.0,
	6:  0.01,
	7:  0.03,
	8:  0.08,
	9:  0.12,
	10: 0.15,
	11: 0.14,
	12: 0.08,
	13: 0.10,
	14: 0.14,
	15: 0.15,
	16: 0.14,
	17: 0.10,
	18: 0.06,
	19: 0.05,
	20: 0.10,
	21: 0.12,
	22: 0.10,
	23: 0.05,
}

const preferMultiplier = 1.5

// Trigger holds a rolling cached schedule for the current local day and
// answers "when do we fire next". Not safe for concurrent use; the
// supervisor is the only caller.
type Trigger struct {
	cfg config.ScheduleConfig
	loc *time.Location
	rng *rand.Rand

	currentDay time.Time // midnight of the cached day
	dailyTimes []time.Time
}

// NewTrigger builds a trigger in the configured timezone. The RNG is
// injected so tests can seed it.
func NewTrigger(cfg config.ScheduleConfig, rng *rand.Rand) (*Trigger, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &Trigger{cfg: cfg, loc: loc, rng: rng}, nil
}

// NextFireTime returns the first cached timestamp after now, regenerating
// the daily schedule on day rollover. False means even the next day's
// generation produced nothing (all hours avoided).
func (t *Trigger) NextFireTime(now time.Time) (time.Time, bool) {
	local := now.In(t.loc)
	day := midnight(local)

	if !day.Equal(t.currentDay) || len(t.dailyTimes) == 0 {
		t.dailyTimes = t.generateDay(day)
		t.currentDay = day
	}
	for _, ts := range t.dailyTimes {
		if ts.After(local) {
			return ts, true
		}
	}

	tomorrow := day.AddDate(0, 0, 1)
	t.dailyTimes = t.generateDay(tomorrow)
	t.currentDay = tomorrow
	if len(t.dailyTimes) == 0 {
		return time.Time{}, false
	}
	return t.dailyTimes[0], true
}

// Upcoming fills the cache for now's local day and returns the times
// still ahead of now. An empty result means today is spent.
func (t *Trigger) Upcoming(now time.Time) []time.Time {
	local := now.In(t.loc)
	day := midnight(local)
	if !day.Equal(t.currentDay) || len(t.dailyTimes) == 0 {
		t.dailyTimes = t.generateDay(day)
		t.currentDay = day
	}
	var out []time.Time
	for _, ts := range t.dailyTimes {
		if ts.After(local) {
			out = append(out, ts)
		}
	}
	return out
}

// Preview regenerates schedules for [today, today+days) without touching
// cache state and returns the flat sorted sequence.
func (t *Trigger) Preview(now time.Time, days int) []time.Time {
	day := midnight(now.In(t.loc))
	var out []time.Time
	for i := 0; i < days; i++ {
		out = append(out, t.generateDay(day.AddDate(0, 0, i))...)
	}
	return out
}

func midnight(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

// generateDay draws the day's commit count and samples fire times by
// hour weight, rejecting samples within the minimum gap. time.Date
// normalizes times that fall in a DST gap.
func (t *Trigger) generateDay(day time.Time) []time.Time {
	count := t.cfg.MinCommitsPerDay
	if t.cfg.MaxCommitsPerDay > t.cfg.MinCommitsPerDay {
		count += t.rng.IntN(t.cfg.MaxCommitsPerDay - t.cfg.MinCommitsPerDay + 1)
	}
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		reduced := int(float64(count)*t.cfg.WeekendReduction + 0.5)
		count = max(3, reduced)
	}

	weights := t.buildHourWeights()
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total == 0 || count == 0 {
		return nil
	}

	minGap := time.Duration(t.cfg.MinGapMinutes) * time.Minute
	var times []time.Time
	maxAttempts := count * 10
	for attempts := 0; len(times) < count && attempts < maxAttempts; attempts++ {
		hour := t.pickHour(weights, total)
		candidate := time.Date(day.Year(), day.Month(), day.Day(),
			hour, t.rng.IntN(60), t.rng.IntN(60), 0, t.loc)

		ok := true
		for _, existing := range times {
			if absDuration(candidate.Sub(existing)) < minGap {
				ok = false
				break
			}
		}
		if ok {
			times = append(times, candidate)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times
}

func (t *Trigger) buildHourWeights() [24]float64 {
	weights := hourWeights
	for _, h := range t.cfg.PreferHours {
		if h >= 0 && h < 24 {
			weights[h] *= preferMultiplier
		}
	}
	for _, h := range t.cfg.AvoidHours {
		if h >= 0 && h < 24 {
			weights[h] = 0
		}
	}
	return weights
}

func (t *Trigger) pickHour(weights [24]float64, total float64) int {
	n := t.rng.Float64() * total
	for h, w := range weights {
		n -= w
		if n < 0 {
			return h
		}
	}
	return 23
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
