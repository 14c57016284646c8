// Package remote runs maintenance commands on remote hosts over ssh.
// It implements secondary.RemoteExecutor.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"

	"github.com/example/reproc/internal/logkeys"
)

// SSHExecutor shells out to the system ssh binary. Host access relies on
// the ambient ssh configuration (keys, known hosts).
type SSHExecutor struct {
	logger log.Logger
}

func NewSSHExecutor(logger log.Logger) *SSHExecutor {
	return &SSHExecutor{logger: logger}
}

// Execute implements secondary.RemoteExecutor. The commands run as one
// shell invocation and stop at the first failure.
func (e *SSHExecutor) Execute(ctx context.Context, host string, commands []string) error {
	if host == "" {
		return fmt.Errorf("no remote host given")
	}
	if len(commands) == 0 {
		return nil
	}
	script := strings.Join(commands, " && ")
	ctxlog.Logger(ctx, e.logger).Debug(
		logkeys.Message, "executing remote commands",
		logkeys.GenericCount, len(commands),
	)

	cmd := exec.CommandContext(ctx, "ssh", "-o", "BatchMode=yes", host, script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("ssh %s: %w: %s", host, err, detail)
		}
		return fmt.Errorf("ssh %s: %w", host, err)
	}
	return nil
}
