// Command blockmapview draws the cell occupancy of a map in the terminal and
// traces a path across it.
//
// Arrow keys move the path end, WASD moves the path start, space links an
// object under the path end, x unlinks the objects under it and Esc quits.
package main

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/blockmap/models"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/gdamore/tcell/v2"
)

var _ = reflect.TypeOf(config{})

type config struct {
	MapsFile string `cli:"" env:"BLOCKMAP_MAPS_FILE" help:"JSON file that defines the maps. The default map is viewed when empty."`
	Map      string `cli:"" env:"-"                  help:"The name of the viewed map."`
	CellSize int    `cli:"" env:"BLOCKMAP_CELL_SIZE" help:"The cell size of maps that do not define one."`
	Help     bool   `cli:"" env:"-"                  help:"Show help."`
}

var (
	styleEmpty    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleOccupied = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	stylePath     = tcell.StyleDefault.Background(tcell.ColorNavy)
	styleHit      = tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorNavy)
	styleEnds     = tcell.StyleDefault.Foreground(tcell.ColorYellow).Reverse(true)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
)

func main() {
	conf := config{
		Map:      models.DefaultMapName,
		CellSize: 128,
	}

	cli.Register().
		Help("Views a Blockmap map in the terminal.").
		Options(&conf)
	cli.Load()

	def, err := loadMapDef(conf)
	if err != nil {
		logs.Fatal(err)
	}

	v, err := newViewer(def)
	if err != nil {
		logs.Fatal(err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		logs.Fatal(errors.New("creating screen failed").Wrap(err))
	}
	if err := screen.Init(); err != nil {
		logs.Fatal(errors.New("initializing screen failed").Wrap(err))
	}
	defer screen.Fini()

	run(screen, v)
}

func loadMapDef(conf config) (models.MapDef, error) {
	cellSize := float64(conf.CellSize)
	if conf.MapsFile == "" {
		return models.DefaultMapDef(cellSize), nil
	}

	defs, err := models.LoadMapDefs(conf.MapsFile, cellSize)
	if err != nil {
		return models.MapDef{}, err
	}

	idx := slices.IndexFunc(defs, func(d models.MapDef) bool {
		return d.Name == conf.Map
	})
	if idx < 0 {
		return models.MapDef{}, errors.New("map not found").
			WithTag("map", conf.Map).
			WithTag("file", conf.MapsFile)
	}
	return defs[idx], nil
}

func run(screen tcell.Screen, v *viewer) {
	for {
		width, height := screen.Size()
		v.draw(screen, width, height)

		switch ev := screen.PollEvent().(type) {
		case *tcell.EventKey:
			if !v.handleKey(ev) {
				return
			}

		case *tcell.EventResize:
			screen.Sync()

		case nil:
			return
		}
	}
}

// viewer holds a blockmap of the static lines of a map and the objects linked
// from the terminal.
type viewer struct {
	def      models.MapDef
	blockmap *blockmap.Blockmap[uint32]
	objects  map[uint32]blockmap.AABox
	nextID   uint32

	from blockmap.Cell
	to   blockmap.Cell
}

func newViewer(def models.MapDef) (*viewer, error) {
	bm, err := blockmap.New[uint32](def.Bounds, def.CellSize)
	if err != nil {
		return nil, err
	}

	v := &viewer{
		def:      def,
		blockmap: bm,
		objects:  make(map[uint32]blockmap.AABox),
	}

	for _, l := range def.Lines {
		v.nextID++
		bm.LinkLine(l.From, l.To, v.nextID)
	}

	dims := bm.Dimensions()
	v.to = blockmap.Cell{X: dims.X - 1, Y: dims.Y - 1}
	return v, nil
}

// center returns the map position of the center of c.
func (v *viewer) center(c blockmap.Cell) blockmap.Vec2 {
	size := v.blockmap.CellSize()
	return blockmap.Add(v.blockmap.Origin(), blockmap.Vec2{
		X: (float64(c.X) + 0.5) * size,
		Y: (float64(c.Y) + 0.5) * size,
	})
}

func (v *viewer) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false

	case tcell.KeyUp:
		v.move(&v.to, 0, -1)
	case tcell.KeyDown:
		v.move(&v.to, 0, 1)
	case tcell.KeyLeft:
		v.move(&v.to, -1, 0)
	case tcell.KeyRight:
		v.move(&v.to, 1, 0)

	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case 'w':
			v.move(&v.from, 0, -1)
		case 's':
			v.move(&v.from, 0, 1)
		case 'a':
			v.move(&v.from, -1, 0)
		case 'd':
			v.move(&v.from, 1, 0)
		case ' ':
			v.link(v.to)
		case 'x':
			v.unlink(v.to)
		}
	}
	return true
}

func (v *viewer) move(c *blockmap.Cell, dx, dy int) {
	dims := v.blockmap.Dimensions()

	x := int(c.X) + dx
	y := int(c.Y) + dy
	if x < 0 || y < 0 || x >= int(dims.X) || y >= int(dims.Y) {
		return
	}

	c.X = uint32(x)
	c.Y = uint32(y)
}

// link links an object covering the middle half of cell.
func (v *viewer) link(cell blockmap.Cell) {
	quarter := v.blockmap.CellSize() / 4
	center := v.center(cell)
	box := blockmap.AABox{
		Min: blockmap.Sub(center, blockmap.Vec2{X: quarter, Y: quarter}),
		Max: blockmap.Add(center, blockmap.Vec2{X: quarter, Y: quarter}),
	}

	v.nextID++
	if v.blockmap.LinkBox(box, v.nextID) {
		v.objects[v.nextID] = box
	}
}

func (v *viewer) unlink(cell blockmap.Cell) {
	var ids []uint32
	for id := range v.blockmap.InCell(cell) {
		if _, ok := v.objects[id]; ok {
			ids = append(ids, id)
		}
	}

	for _, id := range ids {
		v.blockmap.UnlinkBox(v.objects[id], id)
		delete(v.objects, id)
	}
}

func (v *viewer) draw(screen tcell.Screen, width, height int) {
	screen.Clear()

	info := v.blockmap.DebugInfo()
	dims := info.Dimensions

	path := make(map[blockmap.Cell]bool)
	for _, c := range v.blockmap.PathCells(v.center(v.from), v.center(v.to)) {
		path[c] = true
	}

	// Keeps the path end visible on maps larger than the screen.
	viewHeight := max(height-2, 1)
	offsetX := max(int(v.to.X)-width+1, 0)
	offsetY := max(int(v.to.Y)-viewHeight+1, 0)

	for sy := 0; sy < viewHeight; sy++ {
		y := sy + offsetY
		if y >= int(dims.Y) {
			break
		}

		for sx := 0; sx < width; sx++ {
			x := sx + offsetX
			if x >= int(dims.X) {
				break
			}

			cell := blockmap.Cell{X: uint32(x), Y: uint32(y)}
			count := v.blockmap.CellElementCount(cell)

			r := '.'
			style := styleEmpty
			if count > 0 {
				r = rune('0' + min(count, 9))
				style = styleOccupied
			}

			if path[cell] {
				style = stylePath
				if count > 0 {
					style = styleHit
				}
			}

			if cell == v.from || cell == v.to {
				style = styleEnds
			}

			screen.SetContent(sx, sy, r, nil, style)
		}
	}

	status := fmt.Sprintf("%s %dx%d cells | nodes %d rings %d links %d | path %d cells from (%d,%d) to (%d,%d) | objects %d",
		v.def.Name,
		dims.X,
		dims.Y,
		info.NodeCount,
		info.RingCount,
		info.LinkCount,
		len(path),
		v.from.X,
		v.from.Y,
		v.to.X,
		v.to.Y,
		len(v.objects),
	)
	drawText(screen, 0, height-1, styleStatus, status)

	screen.Show()
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		screen.SetContent(x+i, y, r, nil, style)
	}
}

