package runner

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/apk/ubik/pkg/lib"
)

// SpawnRequest describes one start of a job.
type SpawnRequest struct {
	Name    string
	RunID   string
	Command lib.Command
	// Dir is entered before exec. If it cannot be used, the child starts
	// in the supervisor's directory.
	Dir string
	// User is the account to switch to before exec, by name or numeric uid.
	User string
}

// Spawn starts the process and returns its pid. onExit is invoked from
// Reap once the process has terminated.
//
// A *SetupError means the job's program never started but the supervisor
// may carry on; any other error means no process could be created.
func (runner *Runner) Spawn(req SpawnRequest, onExit ExitFunc) (int, error) {
	if req.Command.Command == "" {
		return 0, errors.New("command is required")
	}

	var ident *Identity
	if req.User != "" {
		var err error
		ident, err = LookupUser(req.User)
		if err != nil {
			return 0, &SetupError{Code: lib.ExitUnknownUser, Err: err}
		}
	}

	cmd := exec.Command(req.Command.Command, req.Command.Args...)
	cmd.Env = runner.childEnv(req, ident)

	if req.Dir != "" {
		if fi, err := os.Stat(req.Dir); err != nil || !fi.IsDir() {
			if err == nil {
				err = &os.PathError{Op: "chdir", Path: req.Dir, Err: syscall.ENOTDIR}
			}
			runner.logger.Warn("cannot enter working directory, starting in current one",
				"job", req.Name, "dir", req.Dir, "err", err)
		} else {
			cmd.Dir = req.Dir
		}
	}

	// Own process group, so a terminal interrupt reaches only the
	// supervisor, which forwards it.
	attr := &syscall.SysProcAttr{Setpgid: true}
	if ident != nil {
		attr.Credential = &syscall.Credential{
			Uid:         ident.Uid,
			Gid:         ident.Gid,
			Groups:      ident.Groups,
			NoSetGroups: os.Geteuid() != 0,
		}
	}
	cmd.SysProcAttr = attr

	// cmd.Stdin is left nil, so it will use /dev/null
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	runner.logger.Debug("starting process", "job", req.Name, "run", req.RunID, "cmd", req.Command.String())
	if err := cmd.Start(); err != nil {
		if ident != nil && errors.Is(err, syscall.EPERM) {
			return 0, &SetupError{Code: lib.ExitCredentials, Err: err}
		}
		return 0, err
	}

	pid := cmd.Process.Pid
	// Reap owns the wait; drop the handle so nothing else waits on it.
	_ = cmd.Process.Release()

	runner.tracked[pid] = onExit
	return pid, nil
}

func (runner *Runner) childEnv(req SpawnRequest, ident *Identity) []string {
	env := append([]string(nil), runner.env...)
	env = append(env, "UBIK_JOB="+req.Name)
	if req.RunID != "" {
		env = append(env, "UBIK_RUN_ID="+req.RunID)
	}
	if ident != nil {
		env = append(env, ident.Env()...)
	}
	return env
}
