package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spuff-dev/spuff/internal/aitools"
	"github.com/spuff-dev/spuff/internal/orchestrator"
	"github.com/spuff-dev/spuff/internal/project"
	"github.com/spuff-dev/spuff/internal/schema"
)

var (
	upSize      string
	upRegion    string
	upDev       string
	upNoConnect bool
	upAITools   string
	upSnapshot  string
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Provision, bootstrap, and connect to a dev VM",
	RunE:  runUp,
}

func init() {
	upCmd.Flags().StringVar(&upSize, "size", "", "Override the instance size")
	upCmd.Flags().StringVar(&upRegion, "region", "", "Override the instance region")
	upCmd.Flags().StringVar(&upDev, "dev", "", "Path to a locally built spuffd binary to upload instead of downloading a release")
	upCmd.Flags().BoolVar(&upNoConnect, "no-connect", false, "Provision and bootstrap but skip the interactive session")
	upCmd.Flags().StringVar(&upAITools, "ai-tools", "", "all, none, or a comma-separated list of AI CLIs to install (default: project file's ai_tools)")
	upCmd.Flags().StringVar(&upSnapshot, "snapshot", "", "Boot from this snapshot ID instead of a fresh image")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
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

	if err := applyAITools(&spec, upAITools); err != nil {
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

	publicKey, err := orchestrator.PublicKeyFromFile(cfg.SSHPublicKey)
	if err != nil {
		return err
	}

	image := schema.UbuntuImage("22.04")
	if upSnapshot != "" {
		image = schema.SnapshotImage(upSnapshot)
	}

	oc := orchestrator.Config{
		AdminUser:       cfg.AdminUser,
		PublicKey:       publicKey,
		PrivateKey:      cfg.SSHPrivateKey,
		Region:          project.EffectiveRegion(spec, upRegion, cfg.Region),
		Size:            project.EffectiveSize(spec, upSize, cfg.Size),
		Image:           image,
		DataDir:         dataDir(cfg),
		ProjectBaseDir:  dir,
		IdleTimeoutSecs: cfg.IdleTimeoutSecs,
		DevAgentBinary:  upDev,
		NoConnect:       upNoConnect,
		Timeouts:        cfg.Timeouts(),
	}

	o := buildOrchestrator(cfg, prov, st, vs, oc, true)

	result, err := o.Up(context.Background(), spec)
	if err != nil {
		return err
	}

	fmt.Printf("Instance %s is up (%s)\n", result.Instance.Name, result.Instance.IP)
	if upNoConnect {
		fmt.Printf("Reconnect with: spuff ssh\n")
	}
	return nil
}

// applyAITools resolves the --ai-tools flag against spec.AITools:
// "all" expands to the full catalog, "none" clears it, a comma-separated
// list replaces it outright, and "" (unset) leaves the project file's own
// value untouched.
func applyAITools(spec *schema.ProjectSpec, flag string) error {
	switch flag {
	case "":
		return nil
	case "none":
		spec.AITools = nil
		return nil
	case "all":
		spec.AITools = aitools.ExpandAll()
		return nil
	default:
		names := splitAndTrim(flag)
		for _, n := range names {
			if _, ok := aitools.Find(n); !ok {
				return fmt.Errorf("unknown AI tool %q; known tools: %v", n, aitools.Names())
			}
		}
		spec.AITools = names
		return nil
	}
}

func splitAndTrim(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ',' {
			if cur != "" {
				out = append(out, cur)
			}
			cur = ""
			continue
		}
		if r == ' ' {
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
