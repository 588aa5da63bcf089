package models

import (
	"io"
	"os"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeInvalidMapDef    = "invalid_map_def"
	ErrTypeMapAlreadyLoaded = "map_already_loaded"

	DefaultMapName = "default"
)

// MapDef describes a map to load.
type MapDef struct {
	Name     string         `json:"name"`
	Bounds   blockmap.AABox `json:"bounds"`
	CellSize float64        `json:"cell_size,omitempty"`

	// Static wall segments linked when the map is loaded.
	Lines []LineDef `json:"lines,omitempty"`
}

type LineDef struct {
	From blockmap.Vec2 `json:"from"`
	To   blockmap.Vec2 `json:"to"`
}

// Validate reports whether a blockmap can be built from the definition.
func (d MapDef) Validate() error {
	if d.Name == "" {
		return errors.New("map name is empty").WithType(ErrTypeInvalidMapDef)
	}

	if _, err := blockmap.New[uint32](d.Bounds, d.CellSize); err != nil {
		return errors.New("invalid map definition").
			WithType(ErrTypeInvalidMapDef).
			WithTag("map", d.Name).
			Wrap(err)
	}

	for i, l := range d.Lines {
		if !d.Bounds.Contains(l.From) && !d.Bounds.Contains(l.To) {
			return errors.New("static line outside of map bounds").
				WithType(ErrTypeInvalidMapDef).
				WithTag("map", d.Name).
				WithTag("line", i)
		}
	}
	return nil
}

// DefaultMapDef returns the definition of the map loaded when no map file is
// given.
func DefaultMapDef(cellSize float64) MapDef {
	return MapDef{
		Name:     DefaultMapName,
		Bounds:   blockmap.NewAABox(0, 0, 4096, 4096),
		CellSize: cellSize,
	}
}

type mapFile struct {
	Maps []MapDef `json:"maps"`
}

// DecodeMapDefs decodes a list of map definitions. Maps without a cell size
// get defaultCellSize.
func DecodeMapDefs(r io.Reader, defaultCellSize float64) ([]MapDef, error) {
	var f mapFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.New("decoding map definitions failed").
			WithType(ErrTypeInvalidMapDef).
			Wrap(err)
	}

	names := make(map[string]struct{}, len(f.Maps))
	for i := range f.Maps {
		def := &f.Maps[i]
		if def.CellSize == 0 {
			def.CellSize = defaultCellSize
		}

		if err := def.Validate(); err != nil {
			return nil, err
		}

		if _, ok := names[def.Name]; ok {
			return nil, errors.New("duplicate map name").
				WithType(ErrTypeInvalidMapDef).
				WithTag("map", def.Name)
		}
		names[def.Name] = struct{}{}
	}
	return f.Maps, nil
}

// LoadMapDefs reads map definitions from a JSON file.
func LoadMapDefs(filename string, defaultCellSize float64) ([]MapDef, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.New("opening map file failed").
			WithTag("file_name", filename).
			Wrap(err)
	}
	defer f.Close()

	return DecodeMapDefs(f, defaultCellSize)
}
