package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spuff-dev/spuff/internal/agentclient"
	"github.com/spuff-dev/spuff/internal/config"
	"github.com/spuff-dev/spuff/internal/orchestrator"
	"github.com/spuff-dev/spuff/internal/project"
	"github.com/spuff-dev/spuff/internal/schema"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the agent and tear the instance down once it requests destruction",
	Long: `watch is the controller half of idle-driven self-destruction: the
agent never holds a cloud credential, so when the VM sits idle past its
configured timeout the agent can only set a destroy_requested bit in its
/status response. This command polls that bit and, once it is set, runs
the same teardown as ` + "`spuff down`" + ` (force-unmount volumes, destroy the
instance, clear the local store). Run it in the background alongside a
long-lived session:

  spuff watch &`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Minute, "How often to poll the agent's status")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		inst, ok, err := st.GetActive()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no active instance; nothing left to watch")
			return nil
		}

		requested, err := destroyRequested(ctx, cfg, inst)
		if err != nil {
			// The agent may be mid-boot or the VM mid-reboot; keep
			// polling rather than giving up on a transient failure.
			fmt.Printf("warning: poll agent status: %v\n", err)
		} else if requested {
			fmt.Printf("instance %s requested destruction after idling; tearing down\n", inst.Name)
			o := buildOrchestrator(cfg, prov, st, vs, orchestrator.Config{
				AdminUser:  cfg.AdminUser,
				PrivateKey: cfg.SSHPrivateKey,
				Timeouts:   cfg.Timeouts(),
			}, false)
			if err := o.Down(ctx, spec, orchestrator.DownOptions{Force: true}); err != nil {
				return err
			}
			fmt.Println("Instance destroyed.")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(watchInterval):
		}
	}
}

// destroyRequested opens a fresh tunnel for each poll — cheaper to rebuild
// once a minute than to keep a forward alive across VM reboots — and reads
// the agent's destroy_requested bit.
func destroyRequested(ctx context.Context, cfg config.Config, inst schema.LocalInstance) (bool, error) {
	sshOpts := sshOptionsFor(cfg, inst)
	tunnel, err := agentclient.Open(ctx, sshOpts, cfg.AgentPort, cfg.Timeouts().HTTPRequest)
	if err != nil {
		return false, err
	}
	defer tunnel.Close()

	client := agentclient.New(tunnel, inst.AgentToken)
	resp, err := client.Status(ctx)
	if err != nil {
		return false, err
	}
	return resp.DestroyRequested, nil
}
