package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spuff-dev/spuff/internal/agentclient"
	"github.com/spuff-dev/spuff/internal/config"
	"github.com/spuff-dev/spuff/internal/schema"
)

var agentLogsN int
var agentLogsFile string

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Proxy to the agent's HTTP API through an SSH-forwarded localhost port",
}

var agentStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the agent's live status",
	RunE:  withAgentClient(runAgentStatus),
}

var agentMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print the agent's resource metrics",
	RunE:  withAgentClient(runAgentMetrics),
}

var agentProcessesCmd = &cobra.Command{
	Use:   "processes",
	Short: "Print the top processes on the VM",
	RunE:  withAgentClient(runAgentProcesses),
}

var agentLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail a whitelisted log file on the VM",
	RunE:  withAgentClient(runAgentLogs),
}

func init() {
	agentLogsCmd.Flags().StringVar(&agentLogsFile, "file", "/var/log/cloud-init-output.log", "Which log file to tail")
	agentLogsCmd.Flags().IntVarP(&agentLogsN, "n", "n", 200, "Number of trailing lines")
	agentCmd.AddCommand(agentStatusCmd, agentMetricsCmd, agentProcessesCmd, agentLogsCmd)
	rootCmd.AddCommand(agentCmd)
}

// withAgentClient opens a tunnel to the active instance's agent, hands the
// client to fn, and always tears the tunnel down afterward — the shared
// shape the `agent` and `ai status` subcommands share.
func withAgentClient(fn func(ctx context.Context, client *agentclient.Client, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
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

		ctx := context.Background()
		client, tunnel, err := dialAgent(ctx, cfg, inst)
		if err != nil {
			return err
		}
		defer tunnel.Close()

		return fn(ctx, client, cmd, args)
	}
}

func dialAgent(ctx context.Context, cfg config.Config, inst schema.LocalInstance) (*agentclient.Client, *agentclient.Tunnel, error) {
	sshOpts := sshOptionsFor(cfg, inst)
	tunnel, err := agentclient.Open(ctx, sshOpts, cfg.AgentPort, cfg.Timeouts().SSHConnect)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to agent: %w", err)
	}
	return agentclient.New(tunnel, inst.AgentToken), tunnel, nil
}

func runAgentStatus(ctx context.Context, client *agentclient.Client, cmd *cobra.Command, args []string) error {
	resp, err := client.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("hostname:          %s\n", resp.Hostname)
	fmt.Printf("uptime_seconds:    %d\n", resp.UptimeSeconds)
	fmt.Printf("idle_seconds:      %d\n", resp.IdleSeconds)
	fmt.Printf("bootstrap_status:  %s\n", resp.BootstrapStatus)
	fmt.Printf("bootstrap_ready:   %v\n", resp.BootstrapReady)
	fmt.Printf("agent_version:     %s\n", resp.AgentVersion)
	fmt.Printf("destroy_requested: %v\n", resp.DestroyRequested)
	return nil
}

func runAgentMetrics(ctx context.Context, client *agentclient.Client, cmd *cobra.Command, args []string) error {
	resp, err := client.Metrics(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("cpu_percent:  %.1f\n", resp.CPUPercent)
	fmt.Printf("mem:          %d / %d bytes\n", resp.MemUsed, resp.MemTotal)
	fmt.Printf("disk:         %d / %d bytes\n", resp.DiskUsed, resp.DiskTotal)
	fmt.Printf("load:         %.2f %.2f %.2f\n", resp.Load1, resp.Load5, resp.Load15)
	return nil
}

func runAgentProcesses(ctx context.Context, client *agentclient.Client, cmd *cobra.Command, args []string) error {
	procs, err := client.Processes(ctx, 10)
	if err != nil {
		return err
	}
	for _, p := range procs {
		fmt.Printf("%-8d %-24s %.1f%%\n", p.PID, p.Name, p.CPUPercent)
	}
	return nil
}

func runAgentLogs(ctx context.Context, client *agentclient.Client, cmd *cobra.Command, args []string) error {
	lines, err := client.Logs(ctx, agentLogsFile, agentLogsN)
	if err != nil {
		return err
	}
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}
