package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spuff-dev/spuff/internal/orchestrator"
	"github.com/spuff-dev/spuff/internal/project"
)

var (
	downSnapshot string
	downForce    bool
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Force-unmount volumes and destroy the active instance",
	RunE:  runDown,
}

func init() {
	downCmd.Flags().StringVar(&downSnapshot, "snapshot", "", "Take a snapshot under this name before destroying")
	downCmd.Flags().BoolVar(&downForce, "force", false, "Proceed even if the pre_down hook, snapshot, or destroy call fails")
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	dir, err := resolveProjectDir()
	if err != nil {
		return err
	}
	spec, err := project.Load(dir)
	if err != nil {
		return err
	}

	cfg, _, err := loadGlobalConfig()
	if err != nil {
		return err
	}

	prov, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	st, vs, err := openStores(cfg)
	if err != nil {
		return err
	}

	o := buildOrchestrator(cfg, prov, st, vs, orchestrator.Config{
		AdminUser:  cfg.AdminUser,
		PrivateKey: cfg.SSHPrivateKey,
		Timeouts:   cfg.Timeouts(),
	}, false)

	err = o.Down(context.Background(), spec, orchestrator.DownOptions{
		Snapshot: downSnapshot,
		Force:    downForce,
	})
	if err != nil {
		return err
	}

	fmt.Println("Instance destroyed.")
	return nil
}
