package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/devsbx/internal/app/doctor"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	modules []string
	format  string
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for device tool modules.")
	c.Cmd.Arg("modules", "Modules to check (module or module@version), by default the configured ones.").StringsVar(&c.modules)
	addFormatFlag(c.Cmd, &c.format)

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	versions := map[string]string{}
	var modules []string
	for _, m := range c.modules {
		module, version, err := parseModuleVersion(m)
		if err != nil {
			return err
		}
		versions[module] = version
		modules = append(modules, module)
	}

	if len(modules) == 0 {
		cfg, err := c.rootCmd.AppConfig(ctx)
		if err != nil {
			return err
		}
		for m := range cfg.Modules {
			modules = append(modules, m)
		}
		sort.Strings(modules)
	}
	if len(modules) == 0 {
		return fmt.Errorf("no modules to check, pass them as arguments or declare them on the config")
	}

	sessions, err := c.rootCmd.Sessions(ctx, versions)
	if err != nil {
		return fmt.Errorf("could not create sessions: %w", err)
	}

	svc, err := doctor.NewService(doctor.ServiceConfig{
		Sessions: sessions,
		Logger:   c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	checks, err := svc.Run(ctx, doctor.Request{Modules: modules})
	if err != nil {
		return fmt.Errorf("could not run checks: %w", err)
	}

	if err := c.rootCmd.Printer(c.format).PrintChecks(checks); err != nil {
		return fmt.Errorf("could not print checks: %w", err)
	}

	if doctor.HasErrors(checks) {
		return fmt.Errorf("preflight checks failed")
	}

	return nil
}
