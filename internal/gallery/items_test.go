package gallery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrepareItems(t *testing.T) {
	t.Run("drops housekeeping entries", func(t *testing.T) {
		items := PrepareItems([]string{
			"viewer/",
			"viewer/index.html",
			"viewer/images.json",
			"1700000000000.png",
			"thumbs/",
			"",
		}, DefaultExclude)

		assert.Equal(t, []string{"1700000000000.png"}, items)
	})

	t.Run("empty manifest", func(t *testing.T) {
		assert.Empty(t, PrepareItems(nil, DefaultExclude))
	})

	t.Run("custom exclude list", func(t *testing.T) {
		items := PrepareItems([]string{"manifest.json", "1700000000.png"}, []string{"manifest.json"})
		assert.Equal(t, []string{"1700000000.png"}, items)
	})

	t.Run("does not modify input", func(t *testing.T) {
		input := []string{"1600000000.png", "1700000000.png"}
		PrepareItems(input, nil)
		assert.Equal(t, []string{"1600000000.png", "1700000000.png"}, input)
	})
}

func TestSortItems(t *testing.T) {
	t.Run("newest timestamp first regardless of prefix", func(t *testing.T) {
		items := []string{"b/1500000000.png", "a/1600000000.png", "c/1550000000000.png"}
		SortItems(items)
		assert.Equal(t, []string{"a/1600000000.png", "c/1550000000000.png", "b/1500000000.png"}, items)
	})

	t.Run("seconds and millis interleave chronologically", func(t *testing.T) {
		items := []string{"1700000000000.png", "1700003600.png", "1699999999999.png"}
		SortItems(items)
		assert.Equal(t, []string{"1700003600.png", "1700000000000.png", "1699999999999.png"}, items)
	})

	t.Run("untimestamped items follow in descending name order", func(t *testing.T) {
		items := []string{"alpha.png", "1700000000.png", "zulu.png", "mike.png"}
		SortItems(items)
		assert.Equal(t, []string{"1700000000.png", "zulu.png", "mike.png", "alpha.png"}, items)
	})

	t.Run("equal timestamps fall back to names", func(t *testing.T) {
		items := []string{"a_1700000000.png", "b_1700000000000.png"}
		SortItems(items)
		assert.Equal(t, []string{"b_1700000000000.png", "a_1700000000.png"}, items)
	})
}
