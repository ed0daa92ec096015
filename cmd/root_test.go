package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildlife-go/internal/buildinfo"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := RootCommand(buildinfo.NewContext("1.0.0", "2024-05-01", ""))

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"edge", "serve", "poll", "sendtest", "notify", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionSkipsConfigLoading(t *testing.T) {
	root := RootCommand(buildinfo.NewContext("1.0.0", "2024-05-01", ""))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "wildlife-go 1.0.0 (built 2024-05-01)\n", out.String())
}

func TestSendtestFlagDefaults(t *testing.T) {
	root := RootCommand(buildinfo.NewContext("", "", ""))
	cmd, _, err := root.Find([]string{"sendtest"})
	require.NoError(t, err)

	interval, err := cmd.Flags().GetDuration("interval")
	require.NoError(t, err)
	assert.Equal(t, "16s", interval.String())

	count, err := cmd.Flags().GetInt("count")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}
