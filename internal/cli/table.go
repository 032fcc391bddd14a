package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/internxt/drivectl/internal/ratelimit"
)

// renderQuotaTable writes every endpoint svc has seen quota headers for.
func renderQuotaTable(w io.Writer, svc *ratelimit.Service) {
	snap := svc.Snapshot()
	if len(snap) == 0 {
		fmt.Fprintln(w, "No rate limit headers observed.")
		return
	}

	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := svc.Now()
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Endpoint", "Limit", "Remaining", "Resets in", "Throttled"})
	for _, k := range keys {
		st := snap[k]
		throttled := ""
		if svc.ShouldThrottle(k) {
			throttled = "yes"
		}
		t.AppendRow(table.Row{k, st.Limit, st.Remaining, resetsIn(st.ResetAt, now), throttled})
	}
	t.Render()
}

func resetsIn(resetAt, now time.Time) string {
	d := resetAt.Sub(now)
	if d <= 0 {
		return "elapsed"
	}
	return d.Round(time.Millisecond).String()
}
