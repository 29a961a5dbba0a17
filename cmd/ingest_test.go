package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = `brand,model,powertrain,country,region,year,month,units
Toyota,RAV4,HEV,Germany,Western Europe,2024,1,1200
Toyota,Yaris Hybrid,HEV,France,Western Europe,2024,1,800
Lexus,RC,petrol,Italy,Western Europe,2023,9,55
`

func TestIngestCmd_Rebuild(t *testing.T) {
	// Keep config.Load away from the real home directory.
	t.Setenv("HOME", t.TempDir())

	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "sales.csv"), []byte(salesCSV), 0o644))
	dbPath := filepath.Join(t.TempDir(), "showroom.db")

	out, err := executeCommand("ingest", "--data", dataDir, "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "sales")
	assert.Contains(t, out, "3 rows")
	assert.Contains(t, out, "1 tables")
	assert.FileExists(t, dbPath)
}

func TestIngestCmd_MissingDataDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := executeCommand("ingest", "--data", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading data directory")
}
