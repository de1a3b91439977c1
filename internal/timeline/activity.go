package timeline

import (
	"fmt"
	"time"
)

// Point is one graph point: X in unix milliseconds, Y the activity level.
type Point struct {
	X int64   `json:"x"`
	Y float64 `json:"y"`
}

// HourlySeries is the activity graph for one bucket. Indices lists the
// positions in Series whose sample carried object detections.
type HourlySeries struct {
	Indices []int   `json:"indices"`
	Series  []Point `json:"series"`
}

// ActivityGraph maps a bucket key to its series.
type ActivityGraph map[string]HourlySeries

// Hour returns the series for key. A missing bucket yields an empty series,
// which callers treat as "nothing to draw".
func (g ActivityGraph) Hour(key string) HourlySeries {
	if s, ok := g[key]; ok {
		return s
	}
	return HourlySeries{Indices: []int{}, Series: []Point{}}
}

// Aggregate folds samples into per-bucket graph series, preserving input
// order within each bucket. It has no side effects and its result depends
// only on its arguments.
func Aggregate(samples []ActivitySample, bucketKey func(time.Time) string) ActivityGraph {
	graph := make(ActivityGraph)
	for _, s := range samples {
		key := bucketKey(s.Date)
		series := graph[key]
		if series.Series == nil {
			series = HourlySeries{Indices: []int{}, Series: []Point{}}
		}
		if s.HasObjects {
			series.Indices = append(series.Indices, len(series.Series))
		}
		series.Series = append(series.Series, Point{X: s.Date.UnixMilli(), Y: s.Count})
		graph[key] = series
	}
	return graph
}

// HourOfDayKey buckets timestamps by their two-digit hour of day in loc.
// A nil loc means UTC.
func HourOfDayKey(loc *time.Location) func(time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	return func(t time.Time) string {
		return fmt.Sprintf("%02d", t.In(loc).Hour())
	}
}
