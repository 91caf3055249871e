package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "migrate", "admin", "sites"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "pilgrim-map", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestAdminSetupCommand_Flags(t *testing.T) {
	flag := adminSetupCmd.Flags().Lookup("update")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestSitesCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range sitesCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["import"])
	assert.True(t, names["export"])
	assert.NotNil(t, sitesImportCmd.Flags().Lookup("charset"))
	assert.NotNil(t, sitesImportCmd.Flags().Lookup("concurrency"))
}
