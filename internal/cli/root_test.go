package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tabq/internal/cli/config"
)

const rootTestCSV = `Year,Quarter,Month,Week,Date,Country,Media Category,Media Name,Communication,Campaign Category,Product,Campaign Name,Revenue,Cost
2023,1,2,6,2023-02-06,Sweden,Digital,Search,Performance,Always On,Widget,Spring Push,1000,400
`

func TestRootCmd_Version(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "tabq "+Version)
}

func TestRootCmd_SubcommandsRegistered(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "version")
	assert.Contains(t, names, "load")
	assert.Contains(t, names, "query")
}

func TestRootCmd_FlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(rootTestCSV), 0644))

	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(old)
		config.ResetConfig()
	})

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"load", "--dataset-path", dataPath})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Rows: 1")
	assert.Contains(t, out.String(), dataPath)
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"frobnicate"})
	err := cmd.Execute()
	require.Error(t, err)
}
