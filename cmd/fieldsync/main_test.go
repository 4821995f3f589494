package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/reconcile"
	"github.com/ha1tch/fieldsync/pkg/storage"
	"github.com/ha1tch/fieldsync/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDatabase creates a database with one survey and points the
// configuration at it through the environment
func seedDatabase(t *testing.T) (survey int64) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "field.db")
	store, err := storage.NewSQLiteStore(path, storage.DefaultSQLiteConfig(path))
	require.NoError(t, err)
	survey = storagetest.NewFixture(t, store).Survey("Elk 2025")
	require.NoError(t, store.Close())

	t.Setenv("DB_PATH", path)
	t.Setenv("CACHE_TYPE", "none")
	return survey
}

func execute(t *testing.T, args ...string) string {
	t.Helper()

	// flag variables outlive a single execution
	ids, inputPath, techniqueID = nil, "-", 0

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--quiet"))
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestSyncThenGetBlocks(t *testing.T) {
	survey := seedDatabase(t)
	s := strconv.FormatInt(survey, 10)

	file := filepath.Join(t.TempDir(), "blocks.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"name":"North","description":"above the road"},{"name":"South"}]`), 0o644))

	var counts map[models.Kind]reconcile.Counts
	require.NoError(t, json.Unmarshal([]byte(execute(t, "sync", "blocks", "--survey", s, "--file", file)), &counts))
	assert.Equal(t, reconcile.Counts{Inserted: 2}, counts[models.KindBlockDefinition])

	var blocks []models.BlockDefinition
	require.NoError(t, json.Unmarshal([]byte(execute(t, "get", "blocks", "--survey", s)), &blocks))
	require.Len(t, blocks, 2)
	assert.Equal(t, "North", blocks[0].Name)
	assert.Equal(t, "above the road", blocks[0].Description)
}

func TestCreateThenDeleteSites(t *testing.T) {
	survey := seedDatabase(t)
	s := strconv.FormatInt(survey, 10)

	file := filepath.Join(t.TempDir(), "sites.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"name":"Ridge","sample_methods":[],"sample_blocks":[],"sample_stratums":[]}]`), 0o644))

	dec := json.NewDecoder(bytes.NewBufferString(execute(t, "create-sites", "--survey", s, "--file", file)))
	var created struct {
		IDs []int64 `json:"survey_sample_site_ids"`
	}
	require.NoError(t, dec.Decode(&created))
	require.Len(t, created.IDs, 1)

	var sites []models.SampleSite
	require.NoError(t, json.Unmarshal([]byte(execute(t, "get", "sites", "--survey", s)), &sites))
	require.Len(t, sites, 1)
	assert.Equal(t, "Ridge", sites[0].Name)

	execute(t, "delete-sites", "--survey", s, "--ids", strconv.FormatInt(created.IDs[0], 10))
	require.NoError(t, json.Unmarshal([]byte(execute(t, "get", "sites", "--survey", s)), &sites))
	assert.Empty(t, sites)
}

func TestReadJSON_RejectsUnknownFields(t *testing.T) {
	file := filepath.Join(t.TempDir(), "site.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"name":"Ridge","colour":"red"}`), 0o644))

	var site models.SampleSite
	assert.ErrorContains(t, readJSON(file, &site), "unknown field")
}
