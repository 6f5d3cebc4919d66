// Package queue is the handoff side of the agent: it exposes the
// pending-upload queue to external consumers and applies their
// completions. The upload protocol itself is owned by the external
// tool; this package only issues "upload one asset" calls and reacts to
// the binary outcome.
package queue

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	errs "cheeseagent/pkg/errors"
)

// Uploader is the abstract "upload one asset" capability. An
// implementation uploads the file at localPath with the given tags and
// reports success or failure; nothing else is assumed.
type Uploader interface {
	Upload(ctx context.Context, localPath string, tags map[string]string) error
}

// ExecUploader delegates each upload to an external command. The
// command receives the file path followed by one --tag key=value pair
// per tag, in sorted key order.
type ExecUploader struct {
	Command []string
}

// NewExecUploader creates an uploader for the given command line.
func NewExecUploader(command []string) (*ExecUploader, error) {
	if len(command) == 0 {
		return nil, errs.New(errs.ErrorTypeValidation, "upload command is not configured")
	}
	return &ExecUploader{Command: command}, nil
}

func (u *ExecUploader) Upload(ctx context.Context, localPath string, tags map[string]string) error {
	args := make([]string, 0, len(u.Command)-1+1+2*len(tags))
	args = append(args, u.Command[1:]...)
	args = append(args, localPath)

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--tag", fmt.Sprintf("%s=%s", k, tags[k]))
	}

	cmd := exec.CommandContext(ctx, u.Command[0], args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("upload command failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
