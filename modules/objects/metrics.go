package objects

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	mapLabel  = "map"
	kindLabel = "kind"

	boxQuery  = "box"
	pathQuery = "path"
)

var (
	linkedObjects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "blockmap_linked_objects",
		Help: "The number of objects linked into a map.",
	}, []string{mapLabel})

	queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockmap_object_queries_total",
		Help: "The number of object queries by kind.",
	}, []string{mapLabel, kindLabel})

	pathCells = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blockmap_path_cells",
		Help:    "The number of cells crossed by a path query.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{mapLabel})
)

func instrumentLinkedObjects(mapName string, count int) {
	linkedObjects.
		With(prometheus.Labels{mapLabel: mapName}).
		Set(float64(count))
}

func instrumentQuery(mapName, kind string) {
	queries.
		With(prometheus.Labels{
			mapLabel:  mapName,
			kindLabel: kind,
		}).
		Inc()
}

func instrumentPathCells(mapName string, count int) {
	pathCells.
		With(prometheus.Labels{mapLabel: mapName}).
		Observe(float64(count))
}
