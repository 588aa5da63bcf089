package http

import (
	"net/http"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/blockmap/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
)

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HandleReadyCheck answers 503 until readinessCheck returns true.
func HandleReadyCheck(readinessCheck func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readinessCheck() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func HandleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(version))
	}
}

// MapInfo describes a loaded map.
type MapInfo struct {
	Name     string         `json:"name"`
	MapUUID  string         `json:"map_uuid"`
	Bounds   blockmap.AABox `json:"bounds"`
	CellSize float64        `json:"cell_size"`
	Clients  int            `json:"clients"`
}

// HandleMaps lists the loaded maps in ascending name order.
func HandleMaps(maps *models.MapStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos := []MapInfo{}
		for _, name := range maps.Names() {
			m, ok := maps.GetByName(name)
			if !ok {
				continue
			}

			infos = append(infos, MapInfo{
				Name:     m.Name(),
				MapUUID:  m.MapUUID,
				Bounds:   m.Def.Bounds,
				CellSize: m.Def.CellSize,
				Clients:  m.ClientCount(),
			})
		}

		b, err := json.Marshal(infos)
		if err != nil {
			logs.Error(errors.New("encoding maps failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	}
}
