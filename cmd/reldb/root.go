package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// config holds the resolved flag/env/file values for one invocation.
type config struct {
	path     string
	database string
	table    string
	file     string
	batch    bool
	initCfg  bool
}

func rootCmd() *cobra.Command {
	v := viper.New()
	var cfg config

	cmd := &cobra.Command{
		Use:   "reldb",
		Short: "Single-user on-disk relational database",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindConfig(v, cmd, &cfg)
			if cfg.initCfg {
				return writeInitConfig(cfg)
			}
			return run(cfg)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.path, "path", "./reldb-data", "data root directory")
	flags.StringVar(&cfg.database, "database", "", "database to select with USE on startup")
	flags.StringVar(&cfg.table, "table", "", "default table, informational, shown in the prompt")
	flags.StringVar(&cfg.file, "file", "", "run the statements in this file instead of starting a REPL")
	flags.BoolVar(&cfg.batch, "batch", false, "force non-interactive output, no prompts or banners")
	flags.BoolVar(&cfg.initCfg, "init", false, "write a reldb.yaml capturing the current flags, then exit")

	v.SetEnvPrefix("RELDB")
	v.AutomaticEnv()
	for _, name := range []string{"path", "database", "table", "file", "batch"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
	if cfgFile, err := os.Stat("reldb.yaml"); err == nil && !cfgFile.IsDir() {
		v.SetConfigFile("reldb.yaml")
		_ = v.ReadInConfig()
	}

	return cmd
}

// bindConfig resolves the final values for one invocation: explicit flags
// win, then RELDB_* environment variables, then reldb.yaml, then the flag
// defaults.
func bindConfig(v *viper.Viper, cmd *cobra.Command, cfg *config) {
	if !cmd.Flags().Changed("path") && v.IsSet("path") {
		cfg.path = v.GetString("path")
	}
	if !cmd.Flags().Changed("database") && v.IsSet("database") {
		cfg.database = v.GetString("database")
	}
	if !cmd.Flags().Changed("table") && v.IsSet("table") {
		cfg.table = v.GetString("table")
	}
	if !cmd.Flags().Changed("file") && v.IsSet("file") {
		cfg.file = v.GetString("file")
	}
	if !cmd.Flags().Changed("batch") && v.IsSet("batch") {
		cfg.batch = v.GetBool("batch")
	}
}

// writeInitConfig persists the resolved flags as reldb.yaml, letting future
// invocations omit them.
func writeInitConfig(cfg config) error {
	data, err := yaml.Marshal(map[string]any{
		"path":     cfg.path,
		"database": cfg.database,
		"table":    cfg.table,
		"batch":    cfg.batch,
	})
	if err != nil {
		return fmt.Errorf("marshal reldb.yaml: %w", err)
	}
	path, err := filepath.Abs("reldb.yaml")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Println("wrote", path)
	return nil
}
