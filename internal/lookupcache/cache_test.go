package lookupcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

func sample() models.SearchResult {
	title := "Dune"
	return models.SearchResult{
		TotalItems: 3,
		Items: []models.LookupItem{{
			ID:         "abc",
			Title:      &title,
			Authors:    []string{"Frank Herbert"},
			Categories: []string{},
		}},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c, err := Open("", time.Hour)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("5|intitle:\"Dune\"")
	assert.False(t, ok)

	c.Set("5|intitle:\"Dune\"", sample())

	got, ok := c.Get("5|intitle:\"Dune\"")
	require.True(t, ok)
	assert.Equal(t, sample(), got)
}

func TestCachePersistsOnDisk(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir, 0)
	require.NoError(t, err)
	c.Set("k", sample())
	require.NoError(t, c.Close())

	reopened, err := Open(dir, 0)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.Get("k")
	require.True(t, ok)
	assert.Equal(t, 3, got.TotalItems)
}

func TestCacheExpires(t *testing.T) {
	c, err := Open("", 2*time.Second)
	require.NoError(t, err)
	defer c.Close()

	c.Set("k", sample())
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(2100 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}
