package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spuff-dev/spuff/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the global config file",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	if config.Exists(path) && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote config to %s\n", path)
	fmt.Printf("Provider: %s  Region: %s  Size: %s\n", cfg.Provider, cfg.Region, cfg.Size)
	fmt.Printf("Set %s_TOKEN in your environment before running `spuff up`.\n", envPrefix(cfg.Provider))
	return nil
}
