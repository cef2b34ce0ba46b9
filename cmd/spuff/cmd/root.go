package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// projectDir is the directory containing spuff.yaml, defaulting to cwd.
	projectDir string

	// configPath overrides the global config file location (~/.spuff/config.yaml).
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "spuff",
	Short: "spuff — disposable cloud development VMs",
	Long: `spuff provisions a disposable cloud VM from a declarative project
file, bootstraps it with the requested language toolchains, packages,
repositories, and services, then drops you into an interactive session
with your local source mounted on the box.

Common workflow:

  spuff init                 # write a global config file
  spuff up                   # provision, bootstrap, and connect
  spuff status --detailed    # check on setup progress
  spuff ssh                  # reconnect to the active instance
  spuff down                 # destroy it`,
	// Errors surface as a single line from main; cobra's own printing and
	// usage dump would duplicate it.
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project-dir", "p", "", "Path to the project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the global config file (default: ~/.spuff/config.yaml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
