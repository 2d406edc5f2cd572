package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestCmd(cfg *config) (*cobra.Command, *viper.Viper) {
	v := viper.New()
	cmd := &cobra.Command{Use: "reldb"}
	flags := cmd.Flags()
	flags.StringVar(&cfg.path, "path", "./reldb-data", "")
	flags.StringVar(&cfg.database, "database", "", "")
	flags.StringVar(&cfg.table, "table", "", "")
	flags.StringVar(&cfg.file, "file", "", "")
	flags.BoolVar(&cfg.batch, "batch", false, "")
	for _, name := range []string{"path", "database", "table", "file", "batch"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
	return cmd, v
}

func TestBindConfigExplicitFlagWinsOverViper(t *testing.T) {
	cfg := config{}
	cmd, v := newTestCmd(&cfg)
	require.NoError(t, cmd.Flags().Set("path", "/explicit"))
	v.Set("path", "/from-env-or-file")

	bindConfig(v, cmd, &cfg)
	require.Equal(t, "/explicit", cfg.path)
}

func TestBindConfigFallsBackToViperWhenFlagUnset(t *testing.T) {
	cfg := config{path: "./reldb-data"}
	cmd, v := newTestCmd(&cfg)
	v.Set("database", "shop")

	bindConfig(v, cmd, &cfg)
	require.Equal(t, "shop", cfg.database)
}

func TestBindConfigLeavesDefaultWhenNothingSet(t *testing.T) {
	cfg := config{path: "./reldb-data"}
	cmd, v := newTestCmd(&cfg)

	bindConfig(v, cmd, &cfg)
	require.Equal(t, "./reldb-data", cfg.path)
}

func TestWriteInitConfigPersistsResolvedFlagsAsYAML(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { require.NoError(t, os.Chdir(wd)) }()

	cfg := config{path: "/data", database: "shop", table: "widgets", batch: true}
	require.NoError(t, writeInitConfig(cfg))

	raw, err := os.ReadFile(filepath.Join(dir, "reldb.yaml"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &got))
	require.Equal(t, "/data", got["path"])
	require.Equal(t, "shop", got["database"])
	require.Equal(t, true, got["batch"])
}
