package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spuff-dev/spuff/internal/agentclient"
)

var statusDetailed bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the active instance, with live agent status when --detailed",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusDetailed, "detailed", false, "Also fetch live status from the agent")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("name:     %s\n", inst.Name)
	fmt.Printf("ip:       %s\n", inst.IP)
	fmt.Printf("provider: %s\n", inst.Provider)
	fmt.Printf("region:   %s\n", inst.Region)
	fmt.Printf("size:     %s\n", inst.Size)
	fmt.Printf("created:  %s\n", inst.CreatedAt.Format(time.RFC3339))

	if !statusDetailed {
		return nil
	}

	ctx := context.Background()
	sshOpts := sshOptionsFor(cfg, inst)
	tunnel, err := agentclient.Open(ctx, sshOpts, cfg.AgentPort, cfg.Timeouts().SSHConnect)
	if err != nil {
		return fmt.Errorf("connect to agent: %w", err)
	}
	defer tunnel.Close()

	client := agentclient.New(tunnel, inst.AgentToken)

	resp, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("query agent status: %w", err)
	}
	fmt.Println()
	fmt.Printf("bootstrap:        %s\n", resp.BootstrapStatus)
	fmt.Printf("uptime_seconds:   %d\n", resp.UptimeSeconds)
	fmt.Printf("idle_seconds:     %d\n", resp.IdleSeconds)
	fmt.Printf("destroy_requested: %v\n", resp.DestroyRequested)

	ps, err := client.ProjectStatus(ctx)
	if err != nil {
		return fmt.Errorf("query project status: %w", err)
	}
	fmt.Printf("setup_started:    %v\n", ps.Started)
	fmt.Printf("setup_completed:  %v\n", ps.Completed)
	for _, b := range ps.Bundles {
		fmt.Printf("bundle %-10s %s\n", b.Name, b.Status)
	}
	for _, t := range ps.AITools {
		fmt.Printf("ai_tool %-10s %s\n", t.Name, t.Status)
	}
	for _, s := range ps.Scripts {
		fmt.Printf("script %-40s %s\n", s.Command, s.Status)
	}
	return nil
}
