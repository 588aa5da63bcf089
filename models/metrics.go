package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	mapLabel = "map"
)

var (
	loadedMaps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "blockmap_loaded_maps",
		Help: "The number of loaded maps.",
	}, []string{mapLabel})

	loadedMapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockmap_loaded_maps_total",
		Help: "The total number of map loads.",
	}, []string{mapLabel})

	mapClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "blockmap_map_clients",
		Help: "The number of clients joined to a map.",
	}, []string{mapLabel})
)

func instrumentIncreaseMapGauge(name string) {
	loadedMaps.
		With(prometheus.Labels{mapLabel: name}).
		Inc()
	loadedMapsTotal.
		With(prometheus.Labels{mapLabel: name}).
		Inc()
}

func instrumentDecreaseMapGauge(name string) {
	loadedMaps.
		With(prometheus.Labels{mapLabel: name}).
		Dec()
}

func instrumentIncreaseClientGauge(name string) {
	mapClients.
		With(prometheus.Labels{mapLabel: name}).
		Inc()
}

func instrumentDecreaseClientGauge(name string) {
	mapClients.
		With(prometheus.Labels{mapLabel: name}).
		Dec()
}
