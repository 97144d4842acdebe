package migration

import (
	"testing"
	"testing/fstest"

	"github.com/erp/odoosync/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_Embedded(t *testing.T) {
	names, err := List(migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_create_orders",
		"000002_add_sync_metadata",
		"000003_create_product_stock",
	}, names)
}

func TestList_Unpaired(t *testing.T) {
	fsys := fstest.MapFS{
		"000001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"000001_a.down.sql": {Data: []byte("SELECT 1;")},
		"000002_b.up.sql":   {Data: []byte("SELECT 1;")},
		"README.md":         {Data: []byte("x")},
	}
	_, err := List(fsys)
	assert.ErrorIs(t, err, ErrUnpairedMigration)
}

func TestList_EmptyDir(t *testing.T) {
	names, err := List(fstest.MapFS{})
	require.NoError(t, err)
	assert.Empty(t, names)
}
