package main

import (
	"testing"

	"github.com/aukilabs/blockmap/blockmap"
	"github.com/aukilabs/blockmap/models"
	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/require"
)

func testMapDef() models.MapDef {
	return models.MapDef{
		Name:     "test",
		Bounds:   blockmap.NewAABox(0, 0, 512, 512),
		CellSize: 64,
		Lines: []models.LineDef{
			{
				From: blockmap.Vec2{X: 10, Y: 100},
				To:   blockmap.Vec2{X: 500, Y: 100},
			},
		},
	}
}

func TestNewViewer(t *testing.T) {
	v, err := newViewer(testMapDef())
	require.NoError(t, err)
	require.Equal(t, blockmap.Cell{}, v.from)
	require.Equal(t, blockmap.Cell{X: 7, Y: 7}, v.to)
	require.Equal(t, 8, v.blockmap.DebugInfo().LinkCount)
}

func TestViewerMove(t *testing.T) {
	v, err := newViewer(testMapDef())
	require.NoError(t, err)

	v.move(&v.from, -1, 0)
	require.Equal(t, blockmap.Cell{}, v.from)

	v.move(&v.from, 1, 1)
	require.Equal(t, blockmap.Cell{X: 1, Y: 1}, v.from)

	v.move(&v.to, 1, 0)
	require.Equal(t, blockmap.Cell{X: 7, Y: 7}, v.to)
}

func TestViewerLinkUnlink(t *testing.T) {
	v, err := newViewer(testMapDef())
	require.NoError(t, err)

	cell := blockmap.Cell{X: 3, Y: 4}
	v.link(cell)
	require.Len(t, v.objects, 1)
	require.Equal(t, 1, v.blockmap.CellElementCount(cell))

	v.unlink(cell)
	require.Empty(t, v.objects)
	require.Zero(t, v.blockmap.CellElementCount(cell))

	// Static lines stay linked.
	v.unlink(blockmap.Cell{X: 3, Y: 1})
	require.Equal(t, 1, v.blockmap.CellElementCount(blockmap.Cell{X: 3, Y: 1}))
}

func TestViewerDraw(t *testing.T) {
	v, err := newViewer(testMapDef())
	require.NoError(t, err)

	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()

	screen.SetSize(4, 4)
	v.draw(screen, 4, 4)

	screen.SetSize(80, 24)
	v.draw(screen, 80, 24)
}

func TestLoadMapDef(t *testing.T) {
	def, err := loadMapDef(config{CellSize: 32})
	require.NoError(t, err)
	require.Equal(t, models.DefaultMapName, def.Name)
	require.Equal(t, 32.0, def.CellSize)
}
