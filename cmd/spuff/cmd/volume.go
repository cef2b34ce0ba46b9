package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spuff-dev/spuff/internal/project"
	"github.com/spuff-dev/spuff/internal/schema"
	"github.com/spuff-dev/spuff/internal/volume"
)

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Operate on the volumes declared in the project file",
}

var volumeMountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Seed and mount every declared volume that is not already mounted",
	RunE:  runVolumeMount,
}

var volumeUnmountCmd = &cobra.Command{
	Use:   "unmount",
	Short: "Unmount every volume currently mounted for the active instance",
	RunE:  runVolumeUnmount,
}

var volumeLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List volumes mounted for the active instance",
	RunE:  runVolumeLs,
}

func init() {
	volumeCmd.AddCommand(volumeMountCmd, volumeUnmountCmd, volumeLsCmd)
	rootCmd.AddCommand(volumeCmd)
}

func runVolumeMount(cmd *cobra.Command, args []string) error {
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
	st, vs, err := openStores(cfg)
	if err != nil {
		return err
	}
	inst, err := activeInstance(st)
	if err != nil {
		return err
	}

	existing, err := vs.ForInstance(inst.Name)
	if err != nil {
		return err
	}
	mounted := make(map[string]bool, len(existing))
	for _, m := range existing {
		mounted[m.RemotePath] = true
	}

	sshOpts := sshOptionsFor(cfg, inst)
	mounter := volume.Mounter{SSH: sshOpts}
	ctx := context.Background()

	for _, v := range spec.Volumes {
		if mounted[v.Target] {
			fmt.Printf("already mounted: %s -> %s\n", v.Source, v.Target)
			continue
		}
		localSource := volume.ResolveSource(v, dir)
		mountPoint := volume.ResolveMountPoint(v, inst.Name, dataDir(cfg))
		if err := mounter.Seed(ctx, v, localSource, cfg.Timeouts().ActionComplete); err != nil {
			return fmt.Errorf("seed %s: %w", v.Target, err)
		}
		if err := mounter.MountOnly(ctx, v, mountPoint, cfg.Timeouts().ActionComplete); err != nil {
			return fmt.Errorf("mount %s: %w", v.Target, err)
		}
		record := schema.VolumeMount{
			MountPoint:   mountPoint,
			RemotePath:   v.Target,
			InstanceName: inst.Name,
			MountedAt:    time.Now(),
		}
		if err := vs.Add(record); err != nil {
			return err
		}
		fmt.Printf("mounted %s -> %s\n", v.Target, mountPoint)
	}
	return nil
}

func runVolumeUnmount(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadGlobalConfig()
	if err != nil {
		return err
	}
	st, vs, err := openStores(cfg)
	if err != nil {
		return err
	}
	inst, err := activeInstance(st)
	if err != nil {
		return err
	}

	mounts, err := vs.ForInstance(inst.Name)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, m := range mounts {
		if err := volume.Unmount(ctx, m.MountPoint); err != nil {
			fmt.Printf("warning: unmount %s: %v\n", m.MountPoint, err)
			continue
		}
		if err := vs.Remove(m.MountPoint); err != nil {
			return err
		}
		fmt.Printf("unmounted %s\n", m.MountPoint)
	}
	return nil
}

func runVolumeLs(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadGlobalConfig()
	if err != nil {
		return err
	}
	st, vs, err := openStores(cfg)
	if err != nil {
		return err
	}
	inst, err := activeInstance(st)
	if err != nil {
		return err
	}

	mounts, err := vs.ForInstance(inst.Name)
	if err != nil {
		return err
	}
	if len(mounts) == 0 {
		fmt.Println("no volumes mounted")
		return nil
	}
	for _, m := range mounts {
		fmt.Printf("%s -> %s (mounted %s)\n", m.RemotePath, m.MountPoint, m.MountedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}
