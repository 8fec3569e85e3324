package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/sipgen/pkg/cache"
	"github.com/Sumatoshi-tech/sipgen/pkg/generator"
)

// Run is what a generate run reports at the end.
type Run struct {
	Summary *generator.Summary
	Elapsed time.Duration
	// Cache is nil when the run had no cache.
	Cache *cache.Stats
	// Check marks a run that compared instead of writing.
	Check bool
}

// PrintSummary writes the outcome of a run: counts, failures and, when a
// cache was used, its hit rate.
func PrintSummary(w io.Writer, run Run) {
	s := run.Summary

	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	warn := color.New(color.FgYellow)

	status := ok
	if len(s.Failures) > 0 {
		status = bad
	}

	status.Fprintf(w, "%s headers in %s directories, %d failed, in %s\n",
		humanize.Comma(int64(s.Attempts)),
		humanize.Comma(int64(s.Directories)),
		len(s.Failures),
		run.Elapsed.Round(time.Millisecond))

	for _, f := range s.Failures {
		bad.Fprintf(w, "  %s\n", f.Error())
	}

	verb := "written"
	if run.Check {
		verb = "out of date"
	}

	changed := ok
	if run.Check && len(s.Written) > 0 {
		changed = warn
	}

	changed.Fprintf(w, "%s files %s\n", humanize.Comma(int64(len(s.Written))), verb)

	if run.Check {
		for _, p := range s.Written {
			warn.Fprintf(w, "  %s\n", p)
		}
	}

	if run.Cache != nil {
		fmt.Fprintf(w, "cache: %.0f%% hits, %d entries, %s of %s\n",
			run.Cache.HitRate()*100,
			run.Cache.Entries,
			humanize.IBytes(uint64(max(run.Cache.CurrentSize, 0))),
			humanize.IBytes(uint64(max(run.Cache.MaxSize, 0))))
	}
}
