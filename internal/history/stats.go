package history

import (
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/maxkimambo/tasklens/internal/taskstate"
)

const (
	// Histogram range in milliseconds: 1ms to 7 days, 3 significant figures
	histMinMillis = 1
	histMaxMillis = int64(7 * 24 * time.Hour / time.Millisecond)
	histSigFigs   = 3
)

// DurationStats summarises every successful run of one task.
type DurationStats struct {
	Key      taskstate.TaskKey
	Runs     int
	Failures int
	Mean     time.Duration
	P50      time.Duration
	P90      time.Duration
	Max      time.Duration
}

// Stats computes per-task duration statistics over the whole log. Failed runs
// are counted but do not contribute durations. Results are sorted by key.
func Stats(records []ExecutionRecord) []DurationStats {
	hists := map[taskstate.TaskKey]*hdrhistogram.Histogram{}
	failures := map[taskstate.TaskKey]int{}

	for _, rec := range records {
		if rec.TaskKey == "" {
			continue
		}
		if rec.Failed {
			failures[rec.TaskKey]++
			continue
		}
		if rec.Duration == nil {
			continue
		}
		h, ok := hists[rec.TaskKey]
		if !ok {
			h = hdrhistogram.New(histMinMillis, histMaxMillis, histSigFigs)
			hists[rec.TaskKey] = h
		}
		_ = h.RecordValue(clampMillis(*rec.Duration))
	}

	keys := make([]taskstate.TaskKey, 0, len(hists)+len(failures))
	for k := range hists {
		keys = append(keys, k)
	}
	for k := range failures {
		if _, ok := hists[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]DurationStats, 0, len(keys))
	for _, k := range keys {
		ds := DurationStats{Key: k, Failures: failures[k]}
		if h, ok := hists[k]; ok {
			ds.Runs = int(h.TotalCount())
			ds.Mean = time.Duration(h.Mean() * float64(time.Millisecond))
			ds.P50 = millis(h.ValueAtQuantile(50))
			ds.P90 = millis(h.ValueAtQuantile(90))
			ds.Max = millis(h.Max())
		}
		out = append(out, ds)
	}
	return out
}

func clampMillis(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < histMinMillis {
		return histMinMillis
	}
	if ms > histMaxMillis {
		return histMaxMillis
	}
	return ms
}

func millis(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}
