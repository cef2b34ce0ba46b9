package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Create, list, or delete snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Snapshot the active instance's disk",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotCreate,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots",
	RunE:  runSnapshotList,
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotDelete,
}

func init() {
	snapshotCmd.AddCommand(snapshotCreateCmd, snapshotListCmd, snapshotDeleteCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshotCreate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadGlobalConfig()
	if err != nil {
		return err
	}
	prov, err := buildProvider(cfg)
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

	snap, err := prov.CreateSnapshot(context.Background(), inst.ID, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("created snapshot %s (%s)\n", snap.Name, snap.ID)
	return nil
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadGlobalConfig()
	if err != nil {
		return err
	}
	prov, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	snaps, err := prov.ListSnapshots(context.Background())
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("no snapshots")
		return nil
	}
	for _, s := range snaps {
		fmt.Printf("%s\t%s\n", s.ID, s.Name)
	}
	return nil
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadGlobalConfig()
	if err != nil {
		return err
	}
	prov, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	if err := prov.DeleteSnapshot(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted snapshot %s\n", args[0])
	return nil
}
