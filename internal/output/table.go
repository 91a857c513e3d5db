package output

import (
	"fmt"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/toolgate/toolgate/internal/core/fetchcache"
	"github.com/toolgate/toolgate/internal/core/ratelimit"
)

// CacheStatsTable renders cache store statistics as an ASCII table.
func CacheStatsTable(stats ...fetchcache.Stats) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Directory", "Entries", "Bytes", "Size Limit", "Version", "Tag"})

	for _, s := range stats {
		t.AppendRow(table.Row{
			s.Name,
			s.Directory,
			s.Count,
			s.Bytes,
			sizeLimitLabel(s.SizeLimitBytes),
			orDash(s.Version),
			orDash(s.Tag),
		})
	}

	return t.Render()
}

// RateLimitTable renders limiter snapshots as an ASCII table.
func RateLimitTable(snaps ...ratelimit.Snapshot) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"State File", "Capacity", "Window (s)", "Recorded", "Active"})

	for _, s := range snaps {
		t.AppendRow(table.Row{
			s.StateFile,
			s.MaxRequests,
			fmt.Sprintf("%.2f", s.Window),
			s.Recorded,
			s.Active,
		})
	}

	return t.Render()
}

func sizeLimitLabel(bytes int64) string {
	if bytes <= 0 || bytes == math.MaxInt64 {
		return "unbounded"
	}
	return fmt.Sprintf("%d", bytes)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
