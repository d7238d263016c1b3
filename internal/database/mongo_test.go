package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		o := Options{URI: "mongodb://localhost:27017", Database: "tablescout", Timeout: 5 * time.Second}
		opts := o.clientOptions()

		require.NotNil(t, opts.MaxPoolSize)
		assert.Equal(t, uint64(10), *opts.MaxPoolSize)
		require.NotNil(t, opts.MinPoolSize)
		assert.Equal(t, uint64(0), *opts.MinPoolSize)
		require.NotNil(t, opts.ServerSelectionTimeout)
		assert.Equal(t, 5*time.Second, *opts.ServerSelectionTimeout)
		assert.Empty(t, opts.Compressors)
		assert.Equal(t, DefaultJobsCollection, o.collection())
	})

	t.Run("min pool never exceeds max", func(t *testing.T) {
		o := Options{URI: "mongodb://localhost:27017", MaxPoolSize: 4, MinPoolSize: 8, Compressors: []string{"zstd"}}
		opts := o.clientOptions()

		assert.Equal(t, uint64(4), *opts.MaxPoolSize)
		assert.Equal(t, uint64(4), *opts.MinPoolSize)
		assert.Equal(t, []string{"zstd"}, opts.Compressors)
	})

	t.Run("custom collection", func(t *testing.T) {
		assert.Equal(t, "archived_jobs", Options{Collection: "archived_jobs"}.collection())
	})
}
