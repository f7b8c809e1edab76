package commands

import (
	"fmt"
	"math/rand/v2"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/codeworm/internal/schedule"
)

// SchedulePreviewCmd prints the commit times the trigger would produce.
type SchedulePreviewCmd struct {
	Days     int    `help:"Number of days to preview" default:"1"`
	Timezone string `help:"Timezone override for the preview"`
}

func (s *SchedulePreviewCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	scheduleCfg := cfg.Schedule
	if s.Timezone != "" {
		scheduleCfg.Timezone = s.Timezone
	}

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 2))
	trigger, err := schedule.NewTrigger(scheduleCfg, rng)
	if err != nil {
		return fmt.Errorf("build trigger: %w", err)
	}

	entries := trigger.Preview(time.Now(), s.Days)
	fmt.Printf("Schedule preview (%d day(s))\n\n", s.Days)

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tHOUR\tDAY")
	for _, ts := range entries {
		dayType := "Weekday"
		if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
			dayType = "Weekend"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", ts.Format("2006-01-02 15:04"), ts.Hour(), dayType)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal commits scheduled: %d\n", len(entries))
	return nil
}
