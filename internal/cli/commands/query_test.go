package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tabq/internal/cli/config"
)

const testCSV = `Year,Quarter,Month,Week,Date,Country,Media Category,Media Name,Communication,Campaign Category,Product,Campaign Name,Revenue,Cost
2022,1,2,6,2022-02-07,Sweden,Digital,Search,Performance,Always On,Widget,Spring Push,500,200
2022,3,8,32,2022-08-08,Norway,TV,TV4,Brand,Seasonal,Widget,Summer Brand,200,220
2023,1,1,2,2023-01-09,Sweden,Digital,Social,Performance,Seasonal,Widget,New Year,800,300
2023,2,5,19,2023-05-08,Sweden,Digital,Search,Performance,Always On,Widget,Spring Push,650,310
`

// writeDataset writes the fixture CSV and returns a context carrying a
// config that points at it.
func writeDataset(t *testing.T) context.Context {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marketing.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0644))

	cfg := config.FromContext(context.Background())
	cfg.DatasetPath = path
	return context.WithValue(context.Background(), config.ConfigKey(), cfg)
}

func runCommand(t *testing.T, ctx context.Context, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestQueryCommand_PlanArgument(t *testing.T) {
	ctx := writeDataset(t)

	out, err := runCommand(t, ctx, NewQueryCommand(),
		`{"intent":"aggregate","metrics":["revenue"],"time_range":{"type":"year","year":2023}}`)
	require.NoError(t, err)

	assert.Contains(t, out, "Result")
	assert.Contains(t, out, "1450")
}

func TestQueryCommand_JSONOutput(t *testing.T) {
	ctx := writeDataset(t)

	out, err := runCommand(t, ctx, NewQueryCommand(),
		"--format", "json",
		`{"intent":"aggregate","metrics":["revenue","profit"],"groupby":["country"]}`)
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Sweden", rows[0]["country"])
	assert.Equal(t, 1950.0, rows[0]["revenue"])
	assert.Equal(t, "Norway", rows[1]["country"])
	assert.Equal(t, -20.0, rows[1]["profit"])
}

func TestQueryCommand_PlanFromYAMLFile(t *testing.T) {
	ctx := writeDataset(t)

	planPath := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte(`
intent: top_n
groupby: [campaign_name]
top_n: 1
sort_by:
  field: revenue
`), 0644))

	out, err := runCommand(t, ctx, NewQueryCommand(), "--input", planPath, "--format", "csv")
	require.NoError(t, err)

	assert.Contains(t, out, "campaign_name,revenue")
	assert.Contains(t, out, "Spring Push,1150")
}

func TestQueryCommand_SubsetSample(t *testing.T) {
	ctx := writeDataset(t)

	out, err := runCommand(t, ctx, NewQueryCommand(), "--subset",
		`{"intent":"aggregate","metrics":["revenue"],"filters":[{"field":"country","value":"Norway"}]}`)
	require.NoError(t, err)

	assert.Contains(t, out, "Rows used")
	assert.Contains(t, out, "Norway")
}

func TestQueryCommand_InvalidPlan(t *testing.T) {
	ctx := writeDataset(t)

	_, err := runCommand(t, ctx, NewQueryCommand(),
		`{"intent":"aggregate","metrics":["clicks"]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a known metric")
}

func TestQueryCommand_MissingPlanFile(t *testing.T) {
	ctx := writeDataset(t)

	_, err := runCommand(t, ctx, NewQueryCommand(), "--input", "no/such/plan.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read plan file")
}

func TestLoadCommand(t *testing.T) {
	ctx := writeDataset(t)

	out, err := runCommand(t, ctx, NewLoadCommand())
	require.NoError(t, err)

	assert.Contains(t, out, "Rows: 4")
	assert.Contains(t, out, "2022-02-07 to 2023-05-08")
	assert.Contains(t, out, "Dimensions:")
	assert.Contains(t, out, "campaign_name")
}

func TestLoadCommand_BadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.csv")
	require.NoError(t, os.WriteFile(path, []byte("Year,Month\n2023,1\n"), 0644))

	cfg := config.FromContext(context.Background())
	cfg.DatasetPath = path
	ctx := context.WithValue(context.Background(), config.ConfigKey(), cfg)

	_, err := runCommand(t, ctx, NewLoadCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing expected columns")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, context.Background(), NewVersionCommand("1.2.3"))
	require.NoError(t, err)
	assert.Contains(t, out, "tabq v1.2.3")
}

func TestBraceDepth(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{`{}`, 0},
		{`{"a": {"b": 1}`, 1},
		{`{"a": "}"}`, 0},
		{`{"a": "\"}"}`, 0},
		{`{`, 1},
		{`}`, -1},
		{`plain text`, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, braceDepth(tt.in), "input %q", tt.in)
	}
}
