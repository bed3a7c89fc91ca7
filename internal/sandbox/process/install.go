package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"runtime"

	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
)

// EnsureInstalled installs the session module version with the launcher if
// it's not already installed.
func (s *Session) EnsureInstalled(ctx context.Context, onProgress sandbox.ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	ok, err := s.installed(ctx)
	if err != nil {
		return err
	}
	if ok {
		s.logger.Debugf("Module already installed")
		return nil
	}

	s.logger.Infof("Installing module")
	onProgress(0)

	target := fmt.Sprintf("%s=%s", s.module, s.version)
	cmd := s.command(ctx, s.launcher, installSubcommand, target, "--force", "--json")
	p, err := s.startProcess(cmd)
	if err != nil {
		return fmt.Errorf("could not install %s: %w", target, err)
	}
	logger := s.logger.WithValues(log.Kv{"subcommand": installSubcommand})
	if err := s.waitProcess(ctx, p, logger, sandbox.NewResultCollector(), nil); err != nil {
		return fmt.Errorf("could not install %s: %w", target, err)
	}

	ok, err = s.installed(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("module %s not available after install", target)
	}

	onProgress(100)
	s.logger.Infof("Module installed")

	return nil
}

// installed returns true if the executable exists and reports the session version.
func (s *Session) installed(ctx context.Context) (bool, error) {
	_, err := os.Stat(s.executable)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("could not stat executable: %w", err)
	}

	v, err := s.installedVersion(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("%w: %w", model.ErrAborted, ctx.Err())
		}
		s.logger.Warningf("Could not get installed version: %s", err)
		return false, nil
	}

	return v == s.version, nil
}

// installedVersion asks the executable for its version, reported on an info record.
func (s *Session) installedVersion(ctx context.Context) (string, error) {
	cmd := s.command(ctx, s.executable, "--version", "--json")
	p, err := s.startProcess(cmd)
	if err != nil {
		return "", err
	}

	collector := sandbox.NewResultCollector()
	if err := s.waitProcess(ctx, p, s.logger, collector, nil); err != nil {
		return "", err
	}

	for _, info := range collector.Result().Info {
		var v struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(info, &v); err != nil {
			continue
		}
		if v.Version != "" {
			return v.Version, nil
		}
	}

	return "", fmt.Errorf("version not reported: %w", model.ErrNotFound)
}

// Check performs preflight checks for the session.
func (s *Session) Check(ctx context.Context) []model.CheckResult {
	results := []model.CheckResult{s.checkLauncher()}

	exeCheck := s.checkExecutable()
	results = append(results, exeCheck)
	if exeCheck.Status != model.CheckStatusOK {
		return results
	}

	return append(results, s.checkVersion(ctx))
}

func (s *Session) checkLauncher() model.CheckResult {
	path, err := exec.LookPath(s.launcher)
	if err != nil {
		return model.CheckResult{
			ID:      model.CheckIDLauncher,
			Message: fmt.Sprintf("Launcher %q not found, modules can't be installed", s.launcher),
			Status:  model.CheckStatusWarning,
		}
	}

	return model.CheckResult{
		ID:      model.CheckIDLauncher,
		Message: fmt.Sprintf("Launcher found at %s", path),
		Status:  model.CheckStatusOK,
	}
}

func (s *Session) checkExecutable() model.CheckResult {
	info, err := os.Stat(s.executable)
	if err != nil {
		return model.CheckResult{
			ID:      model.CheckIDExecutable,
			Message: fmt.Sprintf("Module %s %s is not installed (%s)", s.module, s.version, s.executable),
			Status:  model.CheckStatusError,
		}
	}

	if info.IsDir() || (runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0) {
		return model.CheckResult{
			ID:      model.CheckIDExecutable,
			Message: fmt.Sprintf("%s is not executable", s.executable),
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      model.CheckIDExecutable,
		Message: fmt.Sprintf("Module %s %s installed", s.module, s.version),
		Status:  model.CheckStatusOK,
	}
}

func (s *Session) checkVersion(ctx context.Context) model.CheckResult {
	v, err := s.installedVersion(ctx)
	if err != nil {
		return model.CheckResult{
			ID:      model.CheckIDVersion,
			Message: fmt.Sprintf("Cannot get module version: %v", err),
			Status:  model.CheckStatusError,
		}
	}

	if v != s.version {
		return model.CheckResult{
			ID:      model.CheckIDVersion,
			Message: fmt.Sprintf("Installed version %s doesn't match %s", v, s.version),
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      model.CheckIDVersion,
		Message: fmt.Sprintf("Version %s", v),
		Status:  model.CheckStatusOK,
	}
}
