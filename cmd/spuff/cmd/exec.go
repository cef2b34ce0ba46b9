package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spuff-dev/spuff/internal/sshconn"
)

var execCmd = &cobra.Command{
	Use:   "exec -- CMD [ARGS...]",
	Short: "Run a one-shot command on the active instance",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
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

	sshOpts := sshOptionsFor(cfg, inst)
	exitCode, stdout, stderr, err := sshconn.RunCommand(context.Background(), sshOpts, strings.Join(args, " "), cfg.Timeouts().ActionComplete)
	if stdout != "" {
		fmt.Println(stdout)
	}
	if stderr != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), stderr)
	}
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("remote command exited %d", exitCode)
	}
	return nil
}
