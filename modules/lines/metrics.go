package lines

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	mapLabel     = "map"
	blockedLabel = "blocked"
)

var (
	linkedLines = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "blockmap_linked_lines",
		Help: "The number of lines linked into a map.",
	}, []string{mapLabel})

	traces = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockmap_line_of_sight_traces_total",
		Help: "The number of line of sight traces.",
	}, []string{mapLabel, blockedLabel})

	traceCells = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blockmap_line_of_sight_cells",
		Help:    "The number of cells visited by a line of sight trace.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{mapLabel})
)

func instrumentLines(mapName string, count int) {
	linkedLines.
		With(prometheus.Labels{mapLabel: mapName}).
		Set(float64(count))
}

func instrumentTrace(mapName string, cells int, blocked bool) {
	traces.
		With(prometheus.Labels{
			mapLabel:     mapName,
			blockedLabel: strconv.FormatBool(blocked),
		}).
		Inc()

	traceCells.
		With(prometheus.Labels{mapLabel: mapName}).
		Observe(float64(cells))
}
