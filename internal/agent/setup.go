package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spuff-dev/spuff/internal/aitools"
	"github.com/spuff-dev/spuff/internal/schema"
)

// Executor runs the fixed-order setup phases: bundles, AI tools, packages,
// repositories, services, setup scripts, then the post_up hook. Bundle and
// AI-tool installs fan out with golang.org/x/sync/errgroup — distinct
// entries run concurrently, each entry's own steps run in order — the only
// parallelism the setup executor performs; every other phase is strictly
// sequential and never crosses a phase boundary.
type Executor struct {
	cfg    Config
	status *StatusStore
	prom   *PromRegistry
	spec   schema.ProjectSpec
}

// NewExecutor loads the ProjectSpec the controller embedded at
// cfg.ProjectSpecPath.
func NewExecutor(cfg Config, status *StatusStore, prom *PromRegistry) (*Executor, error) {
	data, err := os.ReadFile(cfg.ProjectSpecPath)
	if err != nil {
		return nil, fmt.Errorf("read project spec: %w", err)
	}
	var spec schema.ProjectSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode project spec: %w", err)
	}
	return &Executor{cfg: cfg, status: status, prom: prom, spec: spec}, nil
}

// SetupPhase is what the /project/setup idempotence check reports back to
// the caller.
type SetupPhase int

const (
	SetupNewlyStarted SetupPhase = iota
	SetupAlreadyRunning
	SetupAlreadyComplete
)

// Start is idempotent: the first POST /project/setup launches run() in the
// background and returns SetupNewlyStarted; every later call observes
// Started/Completed and returns without launching a second run.
func (e *Executor) Start(ctx context.Context) SetupPhase {
	cur := e.status.Get()
	if cur.Completed {
		return SetupAlreadyComplete
	}
	if cur.Started {
		return SetupAlreadyRunning
	}

	if err := e.status.Update(func(p *schema.ProjectStatus) { p.Started = true }); err != nil {
		// Can't persist the start marker; still run so the VM ends up
		// configured, but the idempotence guarantee is best-effort here.
		go e.run(context.Background())
		return SetupNewlyStarted
	}

	go e.run(context.Background())
	return SetupNewlyStarted
}

func (e *Executor) run(ctx context.Context) {
	e.runBundles(ctx)
	e.runAITools(ctx)
	e.runPackages(ctx)
	e.runRepositories(ctx)
	e.runServices(ctx)
	scriptsOK := e.runScripts(ctx)
	if scriptsOK {
		e.runPostUpHook(ctx)
	}

	_ = e.status.Update(func(p *schema.ProjectStatus) { p.Completed = true })
}

// runAITools installs spec.AITools the same way runBundles installs
// Bundles: one goroutine per tool via errgroup, since distinct AI CLI
// installs share no state and failures are independent. The `ai` command
// group surfaces each tool's own status.
func (e *Executor) runAITools(ctx context.Context) {
	if len(e.spec.AITools) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range e.spec.AITools {
		name := name
		e.setAITool(name, schema.StepInProgress)
		g.Go(func() error {
			e.runOneAITool(gctx, name)
			return nil // one tool's failure never aborts the others
		})
	}
	_ = g.Wait()
}

func (e *Executor) runOneAITool(ctx context.Context, name string) {
	tool, ok := aitools.Find(name)
	if !ok {
		e.setAITool(name, schema.StepFailed)
		e.prom.SetupStepsTotal.WithLabelValues("ai_tool", "failed").Inc()
		return
	}

	res, err := runCommand(ctx, runOpts{Command: tool.Command, User: e.cfg.AdminUser, Dir: homeDir(e.cfg.AdminUser), Timeout: 15 * time.Minute})
	if err != nil || res.ExitCode != 0 {
		e.setAITool(name, schema.StepFailed)
		e.prom.SetupStepsTotal.WithLabelValues("ai_tool", "failed").Inc()
		return
	}
	e.setAITool(name, schema.StepDone)
	e.prom.SetupStepsTotal.WithLabelValues("ai_tool", "done").Inc()
}

func (e *Executor) setAITool(name string, status schema.StepStatus) {
	_ = e.status.Update(func(p *schema.ProjectStatus) {
		for i := range p.AITools {
			if p.AITools[i].Name == name {
				p.AITools[i].Status = status
				return
			}
		}
		p.AITools = append(p.AITools, schema.AIToolStatus{Name: name, Status: status})
	})
}

func (e *Executor) runBundles(ctx context.Context) {
	if len(e.spec.Bundles) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range e.spec.Bundles {
		b := b
		e.setBundle(b, schema.StepInProgress, "")
		g.Go(func() error {
			e.runOneBundle(gctx, b)
			return nil // bundle failures never abort the group; recorded in status
		})
	}
	_ = g.Wait()
}

func (e *Executor) runOneBundle(ctx context.Context, b schema.Bundle) {
	tools, ok := bundleCatalog[b]
	if !ok {
		e.setBundle(b, schema.StepFailed, "")
		e.prom.SetupStepsTotal.WithLabelValues("bundle", "failed").Inc()
		return
	}

	for _, tool := range tools {
		res, err := runCommand(ctx, runOpts{Command: tool.Command, Timeout: 15 * time.Minute})
		failed := err != nil || res.ExitCode != 0
		if failed && tool.Required {
			e.setBundle(b, schema.StepFailed, "")
			e.prom.SetupStepsTotal.WithLabelValues("bundle", "failed").Inc()
			return
		}
		// Optional tool failures never fail the bundle.
	}
	e.setBundle(b, schema.StepDone, "")
	e.prom.SetupStepsTotal.WithLabelValues("bundle", "done").Inc()
}

func (e *Executor) setBundle(b schema.Bundle, status schema.StepStatus, version string) {
	_ = e.status.Update(func(p *schema.ProjectStatus) {
		for i := range p.Bundles {
			if p.Bundles[i].Name == b {
				p.Bundles[i].Status = status
				if version != "" {
					p.Bundles[i].Version = version
				}
				return
			}
		}
		p.Bundles = append(p.Bundles, schema.BundleStatus{Name: b, Status: status, Version: version})
	})
}

func (e *Executor) runPackages(ctx context.Context) {
	if len(e.spec.Packages) == 0 {
		return
	}
	_ = e.status.Update(func(p *schema.ProjectStatus) { p.Packages.Status = schema.StepInProgress })

	args := "apt-get update -y && apt-get install -y"
	for _, pkg := range e.spec.Packages {
		args += " " + shellQuote(pkg)
	}
	res, err := runCommand(ctx, runOpts{Command: args, Timeout: 15 * time.Minute})

	_ = e.status.Update(func(p *schema.ProjectStatus) {
		if err != nil || res.ExitCode != 0 {
			p.Packages.Status = schema.StepFailed
			p.Packages.Failed = e.spec.Packages
			e.prom.SetupStepsTotal.WithLabelValues("packages", "failed").Inc()
			return
		}
		p.Packages.Status = schema.StepDone
		p.Packages.Installed = e.spec.Packages
		e.prom.SetupStepsTotal.WithLabelValues("packages", "done").Inc()
	})
}

func (e *Executor) runRepositories(ctx context.Context) {
	for _, repo := range e.spec.Repositories {
		url, path := repo.Resolve()
		_ = e.status.Update(func(p *schema.ProjectStatus) {
			p.Repositories = append(p.Repositories, schema.RepositoryStatus{URL: url, Path: path, Status: schema.StepInProgress})
		})

		cmd := fmt.Sprintf("mkdir -p %s && git clone --depth 1 %s %s %s",
			shellQuote(filepath.Dir(expandHome(path, e.cfg.AdminUser))),
			branchFlag(repo.Branch), shellQuote(url), shellQuote(expandHome(path, e.cfg.AdminUser)))
		res, err := runCommand(ctx, runOpts{Command: cmd, User: e.cfg.AdminUser, Timeout: 10 * time.Minute})

		status := schema.StepDone
		if err != nil || res.ExitCode != 0 {
			status = schema.StepFailed
		}
		e.setRepoStatus(url, status)
		outcome := "done"
		if status == schema.StepFailed {
			outcome = "failed"
		}
		e.prom.SetupStepsTotal.WithLabelValues("repository", outcome).Inc()
	}
}

func (e *Executor) setRepoStatus(url string, status schema.StepStatus) {
	_ = e.status.Update(func(p *schema.ProjectStatus) {
		for i := range p.Repositories {
			if p.Repositories[i].URL == url {
				p.Repositories[i].Status = status
				return
			}
		}
	})
}

func (e *Executor) runServices(ctx context.Context) {
	if e.spec.Services == nil || !e.spec.Services.Enabled {
		return
	}
	_ = e.status.Update(func(p *schema.ProjectStatus) { p.Services.Status = schema.StepInProgress })

	composeFile := e.spec.Services.ComposeFile
	if composeFile == "" {
		composeFile = "docker-compose.yml"
	}
	cmd := "docker compose -f " + shellQuote(composeFile)
	for _, profile := range e.spec.Services.Profiles {
		cmd += " --profile " + shellQuote(profile)
	}
	cmd += " up -d"

	res, err := runCommand(ctx, runOpts{Command: cmd, User: e.cfg.AdminUser, Dir: homeDir(e.cfg.AdminUser), Timeout: 10 * time.Minute})

	_ = e.status.Update(func(p *schema.ProjectStatus) {
		if err != nil || res.ExitCode != 0 {
			p.Services.Status = schema.StepFailed
			e.prom.SetupStepsTotal.WithLabelValues("services", "failed").Inc()
			return
		}
		p.Services.Status = schema.StepDone
		e.prom.SetupStepsTotal.WithLabelValues("services", "done").Inc()
	})
}

// runScripts executes spec.Setup strictly in order, stopping at the first
// non-zero exit, and returns whether every command succeeded (the gate for
// running hooks.post_up).
func (e *Executor) runScripts(ctx context.Context) bool {
	if err := os.MkdirAll(e.cfg.ScriptLogDir, 0755); err != nil {
		return false
	}

	for i, command := range e.spec.Setup {
		_ = e.status.Update(func(p *schema.ProjectStatus) {
			p.Scripts = append(p.Scripts, schema.ScriptStatus{Command: command, Status: schema.StepInProgress})
		})

		res, err := runCommand(ctx, runOpts{Command: command, User: e.cfg.AdminUser, Dir: homeDir(e.cfg.AdminUser), Timeout: 30 * time.Minute})

		logPath := filepath.Join(e.cfg.ScriptLogDir, fmt.Sprintf("%03d.log", i))
		_ = os.WriteFile(logPath, []byte(res.Stdout+res.Stderr), 0644)

		exitCode := res.ExitCode
		if err != nil {
			exitCode = -1
		}
		status := schema.StepDone
		if exitCode != 0 {
			status = schema.StepFailed
		}
		e.setScriptStatus(i, status, exitCode)
		e.prom.SetupStepsTotal.WithLabelValues("script", string(status)).Inc()

		if status == schema.StepFailed {
			for j := i + 1; j < len(e.spec.Setup); j++ {
				_ = e.status.Update(func(p *schema.ProjectStatus) {
					p.Scripts = append(p.Scripts, schema.ScriptStatus{Command: e.spec.Setup[j], Status: schema.StepSkipped})
				})
			}
			return false
		}
	}
	return true
}

func (e *Executor) setScriptStatus(idx int, status schema.StepStatus, exitCode int) {
	_ = e.status.Update(func(p *schema.ProjectStatus) {
		if idx < len(p.Scripts) {
			p.Scripts[idx].Status = status
			p.Scripts[idx].ExitCode = &exitCode
		}
	})
}

func (e *Executor) runPostUpHook(ctx context.Context) {
	if e.spec.Hooks == nil || e.spec.Hooks.PostUp == "" {
		return
	}
	_, _ = runCommand(ctx, runOpts{Command: e.spec.Hooks.PostUp, User: e.cfg.AdminUser, Dir: homeDir(e.cfg.AdminUser), Timeout: 10 * time.Minute})
}

func homeDir(user string) string {
	if user == "" {
		return "/root"
	}
	return "/home/" + user
}

func expandHome(path, user string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		return homeDir(user) + "/" + path[2:]
	}
	return path
}

func branchFlag(branch string) string {
	if branch == "" {
		return ""
	}
	return "-b " + shellQuote(branch) + " "
}
