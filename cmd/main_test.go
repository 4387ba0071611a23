package main

import (
	"testing"

	"github.com/aukilabs/hagall-spatial/quadtree"
	"github.com/stretchr/testify/require"
)

func TestParseBounds(t *testing.T) {
	t.Run("valid bounds", func(t *testing.T) {
		bounds, err := parseBounds("-10, -20,30,40.5")
		require.NoError(t, err)
		require.Equal(t, quadtree.NewRect(-10, -20, 30, 40.5), bounds)
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := parseBounds("0,0,10")
		require.Error(t, err)
	})

	t.Run("invalid number", func(t *testing.T) {
		_, err := parseBounds("0,0,ten,10")
		require.Error(t, err)
	})

	t.Run("empty area", func(t *testing.T) {
		_, err := parseBounds("0,0,0,10")
		require.Error(t, err)
	})
}

func TestValidateConfig(t *testing.T) {
	conf := config{
		PublicEndpoint: "http://localhost:4000",
		NodeCapacity:   4,
		WorldBounds:    "0,0,100,100",
	}

	t.Run("valid config", func(t *testing.T) {
		require.NoError(t, validateConfig(conf))
	})

	t.Run("invalid public endpoint", func(t *testing.T) {
		c := conf
		c.PublicEndpoint = "localhost"
		require.Error(t, validateConfig(c))
	})

	t.Run("invalid node capacity", func(t *testing.T) {
		c := conf
		c.NodeCapacity = 0
		require.Error(t, validateConfig(c))
	})

	t.Run("invalid world bounds", func(t *testing.T) {
		c := conf
		c.WorldBounds = ""
		require.Error(t, validateConfig(c))
	})
}
