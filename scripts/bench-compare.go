//go:build ignore

// Compares two `go test -bench` output files and fails on regressions.
// Usage:
//
//	go test -bench . -benchmem ./internal/store/ > current.txt
//	go run scripts/bench-compare.go current.txt baseline.txt
//
// A benchmark regresses when ns/op grows past the threshold (20% by
// default); B/op and allocs/op growth is reported but does not fail
// the run, since allocation counts are stable while timings are noisy
// in the other direction.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
)

var (
	jsonOut   = flag.Bool("json", false, "Emit the report as JSON")
	threshold = flag.Float64("threshold", 0.20, "ns/op growth that counts as a regression")
	verbose   = flag.Bool("verbose", false, "List unchanged and new benchmarks too")
	failHard  = flag.Bool("fail", true, "Exit 1 when any benchmark regresses")
)

// benchLine matches one result row of `go test -bench -benchmem`:
// name, iterations, ns/op, then optional B/op and allocs/op.
var benchLine = regexp.MustCompile(`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+(\d+)\s+B/op)?(?:\s+(\d+)\s+allocs/op)?`)

type sample struct {
	NsPerOp     float64 `json:"ns_per_op"`
	BytesPerOp  int64   `json:"bytes_per_op"`
	AllocsPerOp int64   `json:"allocs_per_op"`
}

type comparison struct {
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Current     sample  `json:"current"`
	Baseline    sample  `json:"baseline"`
	NsDeltaPct  float64 `json:"ns_delta_pct"`
	MemDeltaPct float64 `json:"mem_delta_pct"`
}

type report struct {
	Regressions  []comparison `json:"regressions"`
	Improvements []comparison `json:"improvements"`
	Unchanged    []comparison `json:"unchanged,omitempty"`
	New          []string     `json:"new,omitempty"`
	Missing      []string     `json:"missing,omitempty"`
	Failed       bool         `json:"failed"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <current.txt> <baseline.txt>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}

	current, err := parseFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", flag.Arg(0), err)
		os.Exit(2)
	}
	baseline, err := parseFile(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", flag.Arg(1), err)
		os.Exit(2)
	}

	rep := compare(current, baseline)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
			os.Exit(2)
		}
	} else {
		printReport(rep)
	}

	if *failHard && rep.Failed {
		os.Exit(1)
	}
}

func parseFile(path string) (map[string]sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	results := make(map[string]sample)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := benchLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		var s sample
		s.NsPerOp, _ = strconv.ParseFloat(m[3], 64)
		if m[4] != "" {
			s.BytesPerOp, _ = strconv.ParseInt(m[4], 10, 64)
		}
		if m[5] != "" {
			s.AllocsPerOp, _ = strconv.ParseInt(m[5], 10, 64)
		}
		results[m[1]] = s
	}
	return results, scanner.Err()
}

func compare(current, baseline map[string]sample) *report {
	rep := &report{}

	names := make([]string, 0, len(current))
	for name := range current {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		curr := current[name]
		base, ok := baseline[name]
		if !ok {
			rep.New = append(rep.New, name)
			continue
		}

		c := comparison{
			Name:        name,
			Current:     curr,
			Baseline:    base,
			NsDeltaPct:  deltaPct(curr.NsPerOp, base.NsPerOp),
			MemDeltaPct: deltaPct(float64(curr.BytesPerOp), float64(base.BytesPerOp)),
		}

		switch {
		case c.NsDeltaPct > *threshold*100:
			c.Status = "REGRESSION"
			rep.Regressions = append(rep.Regressions, c)
			rep.Failed = true
		case c.NsDeltaPct < -10:
			c.Status = "IMPROVED"
			rep.Improvements = append(rep.Improvements, c)
		default:
			c.Status = "OK"
			if *verbose {
				rep.Unchanged = append(rep.Unchanged, c)
			}
		}
	}

	for name := range baseline {
		if _, ok := current[name]; !ok {
			rep.Missing = append(rep.Missing, name)
		}
	}
	sort.Strings(rep.Missing)

	return rep
}

func deltaPct(curr, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return (curr - base) / base * 100
}

func printReport(rep *report) {
	printGroup := func(title string, comps []comparison) {
		if len(comps) == 0 {
			return
		}
		fmt.Printf("%s:\n", title)
		for _, c := range comps {
			fmt.Printf("  %-55s %10.0f ns -> %8.0f ns  %+6.1f%%",
				c.Name, c.Baseline.NsPerOp, c.Current.NsPerOp, c.NsDeltaPct)
			if c.MemDeltaPct != 0 {
				fmt.Printf("  (mem %+.1f%%)", c.MemDeltaPct)
			}
			fmt.Println()
		}
		fmt.Println()
	}

	printGroup("Regressions", rep.Regressions)
	printGroup("Improvements", rep.Improvements)
	printGroup("Unchanged", rep.Unchanged)

	if len(rep.New) > 0 {
		fmt.Printf("New benchmarks (no baseline): %d\n", len(rep.New))
		if *verbose {
			for _, name := range rep.New {
				fmt.Printf("  %s\n", name)
			}
		}
	}
	if len(rep.Missing) > 0 {
		fmt.Printf("Missing from current run: %d\n", len(rep.Missing))
		for _, name := range rep.Missing {
			fmt.Printf("  %s\n", name)
		}
	}

	if rep.Failed {
		fmt.Printf("\nFAIL: %d benchmark(s) regressed more than %.0f%%\n",
			len(rep.Regressions), *threshold*100)
	} else {
		fmt.Println("\nPASS: no regressions past threshold")
	}
}
