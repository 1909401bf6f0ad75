package pruner

import (
	"fmt"
	"io"
	"strings"

	"github.com/docker/go-units"
)

// PrintSummary writes a human readable report of result to w.
func PrintSummary(w io.Writer, result RunResult) {
	rule := strings.Repeat("=", 50)

	fmt.Fprintf(w, "\n%s\n", rule)
	if result.DryRun {
		fmt.Fprintln(w, "DRY RUN - SUMMARY OF PENDING DELETIONS")
	} else {
		fmt.Fprintln(w, "SUMMARY OF PERFORMED DELETIONS")
	}
	fmt.Fprintln(w, rule)

	if !result.Success {
		fmt.Fprintf(w, "\nRun failed: %s\n", result.Error)
	}

	for _, s := range result.Services {
		switch {
		case s.Error != "":
			fmt.Fprintf(w, "\n[%s] Failed: %s\n", s.Name, s.Error)
			continue
		case s.Aborted:
			fmt.Fprintf(w, "\n[%s] Aborted: %.1f%% of %d torrents exceeds the limit.\n", s.Name, s.DeletePercent, s.Considered)
			continue
		case len(s.Candidates) == 0:
			fmt.Fprintf(w, "\n[%s] No torrents to delete.\n", s.Name)
			continue
		}

		var total int64
		for _, t := range s.Candidates {
			total += t.Size
		}
		fmt.Fprintf(w, "\n[%s] %d torrents scheduled for deletion (%s):\n", s.Name, len(s.Candidates), units.HumanSize(float64(total)))
		for _, t := range s.Candidates {
			fmt.Fprintf(w, "  - %s (%s)\n", t.Name, units.HumanSize(float64(t.Size)))
		}
	}

	fmt.Fprintf(w, "\n%s\n", rule)
	switch {
	case result.Total == 0:
		fmt.Fprintln(w, "Result: No torrents were identified for deletion.")
	case result.DryRun:
		fmt.Fprintf(w, "Result: %d torrents would be deleted.\n", result.Total)
	default:
		fmt.Fprintf(w, "Result: %d of %d torrents have been deleted.\n", result.Deleted, result.Total)
	}
	fmt.Fprintf(w, "%s\n\n", rule)
}
