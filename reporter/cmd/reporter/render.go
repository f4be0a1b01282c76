package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
)

func writeJSON(w io.Writer, rep *traffic.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// writeTable prints the ranked events followed by the stats line.
func writeTable(w io.Writer, rep *traffic.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tSCORE\tEVENT\tCURRENT\tEXPECTED\tDAILY AVG")
	for _, ev := range rep.Events {
		fmt.Fprintf(tw, "%s\t%+d%%\t%s\t%s\t%s\t%s\n",
			ev.Status, ev.Score, ev.DisplayName,
			humanize.Comma(int64(ev.Current)),
			humanize.Comma(int64(ev.BaselinePeriod)),
			humanize.Comma(int64(ev.DailyAvg)),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	md := rep.Metadata
	_, err := fmt.Fprintf(w, "\n%d events: %d critical, %d warning, %d normal, %d increased (%s, factor %s)\n",
		rep.Stats.Total, rep.Stats.Critical, rep.Stats.Warning, rep.Stats.Normal, rep.Stats.Increased,
		md.ComparisonMethod, humanize.FormatFloat("#,###.##", md.NormalizationFactor))
	return err
}
