package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientObjects(t *testing.T) {
	c := Client{ID: 1}
	require.Empty(t, c.ObjectIDs())

	c.AddObject(3)
	c.AddObject(1)
	c.AddObject(3)
	require.Equal(t, []uint32{1, 3}, c.ObjectIDs())

	c.RemoveObject(1)
	require.Equal(t, []uint32{3}, c.ObjectIDs())

	c.ClearObjects()
	require.Empty(t, c.ObjectIDs())
}
