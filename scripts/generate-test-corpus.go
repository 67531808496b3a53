//go:build ignore

// Generates a synthetic drilling-report corpus for benchmarking.
// Usage: go run scripts/generate-test-corpus.go -reports 500 -output testdata/bench
//
// The corpus mixes daily reports, handover notes, and weekly summaries
// across a continuous date range, so date retrieval, the keyword index,
// and dense search all see realistic load. Dates are written day-first
// with a hyphen ("6-Sept:"), the rendering the reports in the field use.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numReports = flag.Int("reports", 500, "Number of documents to generate")
	outputDir  = flag.String("output", "testdata/bench", "Output directory")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// monthNames maps time.Month to the renderings the reports use. Short
// and long forms are mixed so date expansion has work to do.
var monthNames = [][]string{
	{"January", "Jan"},
	{"February", "Feb"},
	{"March", "Mar"},
	{"April", "Apr"},
	{"May", "May"},
	{"June", "Jun"},
	{"July", "Jul"},
	{"August", "Aug"},
	{"September", "Sept"},
	{"October", "Oct"},
	{"November", "Nov"},
	{"December", "Dec"},
}

var (
	wells = []string{
		"Bravo-7", "Delta-12", "Echo-3", "Falcon-9H", "Gannet-21",
		"Heron-4", "Kestrel-15", "Osprey-2ST", "Petrel-8", "Skua-11",
	}
	operations = []string{
		"Drilled ahead with full returns",
		"Circulated and conditioned mud",
		"Ran casing to section TD",
		"Cemented casing, bumped plug",
		"Tripped out of hole for bit change",
		"Tripped in hole to bottom",
		"Performed flow check, well static",
		"Pumped high-vis sweep and circulated bottoms up",
		"Slipped and cut drilling line",
		"Pressure tested BOP rams",
		"Made up BHA and tested MWD tools",
		"Ran gyro survey through the shoe",
		"Displaced hole to kill weight brine",
		"Pulled wear bushing and retrieved gyro",
		"Spotted LCM pill across loss zone",
	}
	formations = []string{
		"limestone", "shale", "sandstone", "dolomite", "anhydrite",
		"claystone", "siltstone", "marl",
	}
	sections = []string{
		`36"`, `26"`, `17 1/2"`, `12 1/4"`, `8 1/2"`, `6"`,
	}
	fluids = []string{
		"WBM", "OBM", "KCl polymer mud", "kill weight brine",
	}
	delays = []string{
		"waiting on cement", "waiting on weather", "rig repair",
		"waiting on logging unit", "hole cleaning", "stuck pipe work",
	}
	hazards = []string{
		"losses", "tight hole", "shallow gas", "swabbing", "pack-off",
		"ballooning",
	}
	equipment = []string{
		"shale shakers", "mud pumps", "top drive", "drawworks",
		"choke manifold", "desander",
	}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	daily := *numReports * 70 / 100
	handovers := *numReports * 20 / 100
	weeklies := *numReports - daily - handovers

	fmt.Printf("Generating %d documents in %s...\n", *numReports, *outputDir)

	// One report per day, so every document carries a distinct date.
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var week []time.Time

	generated := 0
	for i := 0; i < daily; i++ {
		if err := writeDailyReport(rng, day); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing daily report %d: %v\n", i, err)
			os.Exit(1)
		}
		week = append(week, day)
		day = day.AddDate(0, 0, 1)
		generated++
	}

	for i := 0; i < handovers; i++ {
		if err := writeHandover(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing handover %d: %v\n", i, err)
			os.Exit(1)
		}
		generated++
	}

	for i := 0; i < weeklies; i++ {
		if err := writeWeekly(rng, i, week); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing weekly summary %d: %v\n", i, err)
			os.Exit(1)
		}
		generated++
	}

	fmt.Printf("Generated %d documents (%d daily, %d handover, %d weekly).\n",
		generated, daily, handovers, weeklies)
}

// reportDate renders a date day-first with a randomly chosen month form.
func reportDate(rng *rand.Rand, d time.Time) string {
	forms := monthNames[int(d.Month())-1]
	return fmt.Sprintf("%d-%s", d.Day(), forms[rng.Intn(len(forms))])
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func writeDailyReport(rng *rand.Rand, d time.Time) error {
	date := reportDate(rng, d)
	well := pick(rng, wells)
	depth := 1500 + rng.Intn(1800)
	progress := 20 + rng.Intn(140)
	mudWeight := 9.8 + rng.Float64()*2.8
	bbls := 30 + rng.Intn(60)
	testPSI := (30 + rng.Intn(21)) * 100

	var b strings.Builder
	fmt.Fprintf(&b, "# Daily Drilling Report - %s\n\n", well)
	fmt.Fprintf(&b, "%s: %s in the %s section. %s.\n", date,
		pick(rng, operations), pick(rng, sections), pick(rng, operations))
	fmt.Fprintf(&b, "Mud weight %.1f ppg, %s in hole. Circulated %d bbls sweep.\n",
		mudWeight, pick(rng, fluids), bbls)

	if rng.Intn(3) == 0 {
		fmt.Fprintf(&b, "NPT %.1f hours %s.\n", 0.5+rng.Float64()*5, pick(rng, delays))
	}
	if rng.Intn(4) == 0 {
		fmt.Fprintf(&b, "Pressure tested %s to %d psi, test held.\n",
			pick(rng, []string{"BOP rams", "casing shoe", "choke manifold"}), testPSI)
	}

	fmt.Fprintf(&b, "\nDepth at 06:00: %d m. Depth at 24:00: %d m.\n", depth, depth+progress)
	fmt.Fprintf(&b, "Formation: %s with %s stringers.\n",
		pick(rng, formations), pick(rng, formations))
	fmt.Fprintf(&b, "Next 24 hours: %s.\n", strings.ToLower(pick(rng, operations)))

	name := fmt.Sprintf("ddr_%s.md", d.Format("2006_01_02"))
	return os.WriteFile(filepath.Join(*outputDir, name), []byte(b.String()), 0644)
}

func writeHandover(rng *rand.Rand, index int) error {
	well := pick(rng, wells)

	var b strings.Builder
	fmt.Fprintf(&b, "Shift handover - %s.\n\n", well)
	fmt.Fprintf(&b, "%s shift completed: %s.\n",
		pick(rng, []string{"Day", "Night"}), strings.ToLower(pick(rng, operations)))
	fmt.Fprintf(&b, "Watch for %s while drilling ahead through the %s.\n",
		pick(rng, hazards), pick(rng, formations))
	gear := pick(rng, equipment)
	fmt.Fprintf(&b, "%s inspected, no faults found. Trip tank lined up on the hole.\n",
		strings.ToUpper(gear[:1])+gear[1:])
	fmt.Fprintf(&b, "Next steps: %s, then %s.\n",
		strings.ToLower(pick(rng, operations)), strings.ToLower(pick(rng, operations)))

	name := fmt.Sprintf("handover_%03d.txt", index)
	return os.WriteFile(filepath.Join(*outputDir, name), []byte(b.String()), 0644)
}

func writeWeekly(rng *rand.Rand, index int, days []time.Time) error {
	if len(days) == 0 {
		days = []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	}
	start := rng.Intn(len(days))
	end := start + 6
	if end >= len(days) {
		end = len(days) - 1
	}
	well := pick(rng, wells)

	var b strings.Builder
	fmt.Fprintf(&b, "# Weekly Operations Summary - %s\n\n", well)
	fmt.Fprintf(&b, "Covering %s through %s.\n\n",
		reportDate(rng, days[start]), reportDate(rng, days[end]))
	for _, d := range days[start : end+1] {
		fmt.Fprintf(&b, "- %s: %s.\n", reportDate(rng, d), pick(rng, operations))
	}
	fmt.Fprintf(&b, "\nTotal footage %d m. Mud losses %d bbls over the week.\n",
		100+rng.Intn(600), rng.Intn(150))

	name := fmt.Sprintf("weekly_%03d.md", index)
	return os.WriteFile(filepath.Join(*outputDir, name), []byte(b.String()), 0644)
}
