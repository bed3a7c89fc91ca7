package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/devsbx/internal/app/install"
	"github.com/slok/devsbx/internal/printer"
)

type InstallCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	modules []string
}

// NewInstallCommand returns the install command.
func NewInstallCommand(rootCmd *RootCommand, app *kingpin.Application) *InstallCommand {
	c := &InstallCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("install", "Install device tool modules (module or module@version).")
	c.Cmd.Arg("modules", "Modules to install, without version the environment or config version is used.").Required().StringsVar(&c.modules)

	return c
}

func (c InstallCommand) Name() string { return c.Cmd.FullCommand() }

func (c InstallCommand) Run(ctx context.Context) error {
	versions := map[string]string{}
	modules := make([]string, 0, len(c.modules))
	for _, m := range c.modules {
		module, version, err := parseModuleVersion(m)
		if err != nil {
			return err
		}
		versions[module] = version
		modules = append(modules, module)
	}

	sessions, err := c.rootCmd.Sessions(ctx, versions)
	if err != nil {
		return fmt.Errorf("could not create sessions: %w", err)
	}

	svc, err := install.NewService(install.ServiceConfig{
		Sessions: sessions,
		Logger:   c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	bar := printer.NewProgressBar(c.rootCmd.Stderr, c.rootCmd.NoColor)
	for _, module := range modules {
		label := module
		if v := versions[module]; v != "" {
			label = module + "@" + v
		}

		res, err := svc.Run(ctx, install.Request{
			Module:     module,
			OnProgress: func(p float64) { bar.Update(label, p) },
		})
		if err != nil {
			bar.Finish(label, false)
			return fmt.Errorf("could not install %s: %w", module, err)
		}
		bar.Finish(label, true)

		fmt.Fprintf(c.rootCmd.Stdout, "%s %s installed\n", res.Module, res.Version)
	}

	return nil
}
