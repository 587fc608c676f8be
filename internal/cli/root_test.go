package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "querysync", cmd.Use)
	assert.Contains(t, cmd.Long, "query keys")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"key"},
		{"test"},
		{"cache"},
		{"cache", "list"},
		{"cache", "show"},
		{"cache", "prune"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestCacheCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	cacheCmd, _, err := cmd.Find([]string{"cache"})
	require.NoError(t, err)
	require.NotNil(t, cacheCmd.PersistentFlags().Lookup("db"))

	pruneCmd, _, err := cmd.Find([]string{"cache", "prune"})
	require.NoError(t, err)
	require.NotNil(t, pruneCmd.Flags().Lookup("before"))

	listCmd, _, err := cmd.Find([]string{"cache", "list"})
	require.NoError(t, err)
	require.NotNil(t, listCmd.Flags().Lookup("name"))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "key", "q", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestVerboseLogsToStderr(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"key", "getUser", `{"id":"u1"}`, "--verbose", "--format", "json"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "query key computed")
	assert.NotContains(t, out.String(), "query key computed")
}

func TestLoggerFallsBackToDefault(t *testing.T) {
	opts := &RootOptions{}
	assert.NotNil(t, opts.logger())
}
