package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findSubcommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	for _, c := range rootCmd.Commands() {
		if c.Name() == name {
			return c
		}
	}
	t.Fatalf("subcommand %q not registered", name)
	return nil
}

func TestRootCommandMetadata(t *testing.T) {
	assert.Equal(t, "newswatch", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.RunE, "bare invocation runs the full pipeline")
}

func TestSubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"collect", "analyze", "market", "report", "stats", "test-connections"} {
		cmd := findSubcommand(t, name)
		assert.NotEmpty(t, cmd.Short, "%s needs a short description", name)
	}
}

func TestPersistentFlags(t *testing.T) {
	configFlag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)

	dbFlag := rootCmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestForceFlag(t *testing.T) {
	forceFlag := rootCmd.Flags().Lookup("force")
	require.NotNil(t, forceFlag)
	assert.Equal(t, "false", forceFlag.DefValue)
}

func TestBatchSizeFlags(t *testing.T) {
	for _, name := range []string{"analyze", "market"} {
		cmd := findSubcommand(t, name)
		flag := cmd.Flags().Lookup("batch-size")
		require.NotNil(t, flag, "%s needs --batch-size", name)
		assert.Equal(t, "0", flag.DefValue, "zero defers to config")
	}
}

func TestReportHoursFlag(t *testing.T) {
	cmd := findSubcommand(t, "report")
	flag := cmd.Flags().Lookup("hours")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestCheckFlag(t *testing.T) {
	assert.NoError(t, checkFlag("batch-size", 0, 100), "zero means unset")
	assert.NoError(t, checkFlag("batch-size", 1, 100))
	assert.NoError(t, checkFlag("batch-size", 100, 100))
	assert.NoError(t, checkFlag("hours", 5000, 0), "no upper bound when max is zero")

	err := checkFlag("batch-size", -1, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--batch-size")

	err = checkFlag("batch-size", 101, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1 and 100")

	err = checkFlag("hours", -24, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--hours")
}
