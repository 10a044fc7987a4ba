package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/metrics"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printPagination(w io.Writer, p client.Pagination) {
	fmt.Fprintf(w, "page %d of %d (%s total)\n", p.Page, max(p.TotalPages, 1), humanize.Comma(int64(p.Total)))
}

func printMetrics(w io.Writer, m *metrics.Metrics) error {
	sum, err := m.Summary()
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(w, sum)
	}
	fmt.Fprintln(w)
	tw := newTable(w, "METRIC", "VALUE")
	row(tw, "requests", humanize.Comma(int64(sum.Client.TotalRequests)))
	row(tw, "error rate", fmt.Sprintf("%.1f%%", sum.Client.ErrorRate*100))
	row(tw, "transport errors", humanize.Comma(int64(sum.Client.TransportErrors)))
	row(tw, "p50 latency", fmt.Sprintf("%.0fms", sum.Client.P50Latency*1000))
	row(tw, "p95 latency", fmt.Sprintf("%.0fms", sum.Client.P95Latency*1000))
	row(tw, "operations ok", humanize.Comma(int64(sum.Operations.Succeeded)))
	row(tw, "operations failed", humanize.Comma(int64(sum.Operations.Failed)))
	row(tw, "session invalidations", humanize.Comma(int64(sum.Session.Invalidations)))
	return tw.Flush()
}
