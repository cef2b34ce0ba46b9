package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spuff-dev/spuff/internal/project"
	"github.com/spuff-dev/spuff/internal/sshconn"
)

var sshCmd = &cobra.Command{
	Use:   "ssh",
	Short: "Re-enter an interactive session with the active instance",
	RunE:  runSSH,
}

func init() {
	rootCmd.AddCommand(sshCmd)
}

func runSSH(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadGlobalConfig()
	if err != nil {
		return err
	}
	st, _, err := openStores(cfg)
	if err != nil {
		return err
	}
	inst, err := activeInstance(st)
	if err != nil {
		return err
	}

	dir, err := resolveProjectDir()
	if err != nil {
		return err
	}
	spec, err := project.Load(dir)
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to %s (%s)...\n", inst.Name, inst.IP)
	return sshconn.ConnectInteractive(sshOptionsFor(cfg, inst), spec.Ports)
}
