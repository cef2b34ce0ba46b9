package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spuff-dev/spuff/internal/agentclient"
	"github.com/spuff-dev/spuff/internal/aitools"
)

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Inspect or drive the AI-CLI subset of setup",
}

var aiListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every AI CLI spuff knows how to install",
	RunE:  runAIList,
}

var aiInfoCmd = &cobra.Command{
	Use:   "info NAME",
	Short: "Print details about one AI CLI",
	Args:  cobra.ExactArgs(1),
	RunE:  runAIInfo,
}

var aiStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print install status for every AI CLI on the active instance",
	RunE:  withAgentClient(runAIStatus),
}

var aiInstallCmd = &cobra.Command{
	Use:   "install NAME",
	Short: "Check NAME is a known AI CLI, then trigger project setup on the active instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runAIInstall,
}

func init() {
	aiCmd.AddCommand(aiListCmd, aiInfoCmd, aiStatusCmd, aiInstallCmd)
	rootCmd.AddCommand(aiCmd)
}

func runAIList(cmd *cobra.Command, args []string) error {
	for _, t := range aitools.Catalog {
		fmt.Printf("%-14s %s\n", t.Name, t.Description)
	}
	return nil
}

func runAIInfo(cmd *cobra.Command, args []string) error {
	tool, ok := aitools.Find(args[0])
	if !ok {
		return fmt.Errorf("unknown AI tool %q; known tools: %v", args[0], aitools.Names())
	}
	fmt.Printf("name:        %s\n", tool.Name)
	fmt.Printf("description: %s\n", tool.Description)
	fmt.Printf("install:     %s\n", tool.Command)
	return nil
}

func runAIStatus(ctx context.Context, client *agentclient.Client, cmd *cobra.Command, args []string) error {
	ps, err := client.ProjectStatus(ctx)
	if err != nil {
		return err
	}
	if len(ps.AITools) == 0 {
		fmt.Println("no AI tools configured for this project")
		return nil
	}
	for _, t := range ps.AITools {
		fmt.Printf("%-14s %s\n", t.Name, t.Status)
	}
	return nil
}

// runAIInstall confirms NAME is a known tool, then sends the agent's
// setup trigger. The trigger starts the setup executor only if setup has
// never started on this instance; once setup is running or complete it
// runs nothing and the command prints that status. When the executor does
// run, it installs the project's configured AI tools, not NAME alone:
// spuffd has no per-tool install endpoint.
func runAIInstall(cmd *cobra.Command, args []string) error {
	if _, ok := aitools.Find(args[0]); !ok {
		return fmt.Errorf("unknown AI tool %q; known tools: %v", args[0], aitools.Names())
	}

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

	resp, err := client.TriggerSetup(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("setup %s\n", resp.Status)
	return nil
}
