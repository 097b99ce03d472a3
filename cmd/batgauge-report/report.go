package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/fatih/color"

	"github.com/langchou/batgauge/internal/battery"
)

// Args 命令行参数
type Args struct {
	Input    string        `arg:"positional" default:"-" help:"charging records JSON file, - reads stdin"`
	Capacity float64       `arg:"--capacity,required" help:"nominal battery capacity in kWh"`
	Now      string        `arg:"--now" help:"analysis time in RFC3339, defaults to the current time"`
	Lookback time.Duration `arg:"--lookback" default:"2160h" help:"only sessions started within this window are analysed"`
	TZ       string        `arg:"--tz" default:"Local" help:"timezone used for time-of-day buckets"`
	JSON     bool          `arg:"--json" help:"print the raw JSON report"`
}

func (Args) Version() string {
	return version
}

func (Args) Description() string {
	return "Computes a battery health report from a JSON array of charging records."
}

func procArgs(input []string, stdout io.Writer) (Args, error) {
	var args Args
	parser, err := arg.NewParser(arg.Config{Program: "batgauge-report"}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Fprintln(stdout, version)
		os.Exit(0)
	}
	return args, err
}

func run(input []string, stdin io.Reader, stdout io.Writer) error {
	args, err := procArgs(input, stdout)
	if err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	opts := battery.Options{Lookback: args.Lookback}
	if opts.Location, err = time.LoadLocation(args.TZ); err != nil {
		return fmt.Errorf("load timezone %q: %w", args.TZ, err)
	}
	if args.Now != "" {
		now, err := time.Parse(time.RFC3339, args.Now)
		if err != nil {
			return fmt.Errorf("parse --now: %w", err)
		}
		opts.Now = func() time.Time { return now }
	}

	records, err := readRecords(args.Input, stdin)
	if err != nil {
		return err
	}

	report, err := battery.NewAnalyzer(opts).Compute(records, battery.VehicleProfile{BatteryCapacityKwh: args.Capacity})
	if err != nil {
		return err
	}

	if args.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printSummary(stdout, report)
	return nil
}

func readRecords(path string, stdin io.Reader) ([]battery.ChargingRecord, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var records []battery.ChargingRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode charging records: %w", err)
	}
	return records, nil
}

var (
	heading = color.New(color.FgCyan, color.Bold)
	label   = color.New(color.FgWhite)
	muted   = color.New(color.Faint)
)

func healthColor(health string) *color.Color {
	switch health {
	case battery.HealthExcellent, battery.HealthVeryGood:
		return color.New(color.FgGreen, color.Bold)
	case battery.HealthGood:
		return color.New(color.FgGreen)
	case battery.HealthFair:
		return color.New(color.FgYellow)
	case battery.HealthPoor, battery.HealthCritical:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgMagenta)
	}
}

func priorityColor(priority string) *color.Color {
	switch priority {
	case battery.PriorityHigh:
		return color.New(color.FgRed)
	case battery.PriorityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgBlue)
	}
}

func printSummary(w io.Writer, r *battery.Report) {
	heading.Fprintln(w, "Battery health report")
	muted.Fprintln(w, strings.Repeat("─", 32))

	label.Fprint(w, "Health:      ")
	healthColor(r.Health).Fprintln(w, r.Health)
	label.Fprintf(w, "Confidence:  %s (%d sessions)\n", r.Confidence, r.DataPoints)

	if r.Health == battery.HealthUnknown {
		if r.Message != "" {
			muted.Fprintln(w, r.Message)
		}
		if r.MinimumRequired != nil {
			muted.Fprintf(w, "At least %d completed sessions are required.\n", *r.MinimumRequired)
		}
		return
	}

	if e := r.Efficiency; e != nil && e.Average != nil && e.Min != nil && e.Max != nil {
		label.Fprintf(w, "Efficiency:  %.2f %s (min %.2f, max %.2f, %s)\n", *e.Average, e.Unit, *e.Min, *e.Max, e.Trend)
	}
	if d := r.Degradation; d != nil {
		label.Fprintf(w, "Capacity:    %.1f / %.1f %s (%.1f%% degraded)\n", d.EstimatedCapacity, d.OriginalCapacity, d.Unit, d.Rate*100)
	}
	if rg := r.EstimatedRange; rg != nil {
		label.Fprintf(w, "Range:       %d / %d %s\n", rg.Estimated, rg.Original, rg.Unit)
	}
	if b := r.ChargingBehavior; b != nil {
		t := b.PreferredChargingTimes
		label.Fprintf(w, "Charging:    %.2f/day, avg %d min, %d deep / %d shallow\n",
			b.ChargingFrequency, b.AverageSessionDuration, b.DeepCycles, b.ShallowCycles)
		muted.Fprintf(w, "             morning %d, afternoon %d, evening %d, night %d\n",
			t.Morning, t.Afternoon, t.Evening, t.Night)
	}
	if p := r.AnalysisPeriod; p != nil {
		muted.Fprintf(w, "Period:      %s to %s (%d days)\n", p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly), p.Days)
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w)
		heading.Fprintln(w, "Recommendations")
		for _, rec := range r.Recommendations {
			priorityColor(rec.Priority).Fprintf(w, "  [%s] ", rec.Priority)
			fmt.Fprintln(w, rec.Message)
			muted.Fprintf(w, "         %s\n", rec.Action)
		}
	}
}
