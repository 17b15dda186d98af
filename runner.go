package godispatch

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

//commandRunner materializes one batch to its temp file and runs the external
//command on it. The command line is split on whitespace and the temp file
//path appended as the last argument; no shell is involved.
type commandRunner struct {
	command []string
	tempDir string
}

func newCommandRunner(command string, tempDir string) (*commandRunner, DispatchError) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, NewDispatchError(ErrCodeGeneral, "command must not be empty")
	}
	return &commandRunner{command: argv, tempDir: tempDir}, nil
}

//writeTempFile write the batch items verbatim, one per line, overwriting any
//file left behind by an earlier run with the same offsets.
func (r *commandRunner) writeTempFile(batch *Batch) (string, DispatchError) {
	path := filepath.Join(r.tempDir, batch.TempFileName())
	f, err := os.Create(path)
	if err != nil {
		return "", NewDispatchError(ErrCodeIO, "create temp file[%v] err:%v", path, err)
	}
	w := bufio.NewWriter(f)
	for _, item := range batch.Items {
		w.WriteString(item)
		w.WriteByte('\n')
	}
	if err = w.Flush(); err != nil {
		f.Close()
		return "", NewDispatchError(ErrCodeIO, "write temp file[%v] err:%v", path, err)
	}
	if err = f.Close(); err != nil {
		return "", NewDispatchError(ErrCodeIO, "close temp file[%v] err:%v", path, err)
	}
	return path, nil
}

//Run execute the external command for one batch, capturing stdout, stderr
//and the exit code into the execution. A launched process is never killed;
//the runner always waits for it to exit. Subprocess failure marks only this
//task failed, other batches keep running.
func (r *commandRunner) Run(ctx context.Context, execution *TaskExecution) {
	execution.start()
	path, e := r.writeTempFile(&execution.Batch)
	if e != nil {
		execution.finish(e)
		return
	}
	execution.TempFile = path

	args := append(append([]string{}, r.command[1:]...), path)
	cmd := exec.Command(r.command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	logger.Debug(ctx, "run batch command, dispatchName:%v, batch:[%v,%v), command:%v %v",
		execution.DispatchName, execution.Batch.Start, execution.Batch.End, r.command[0], strings.Join(args, " "))

	err := cmd.Run()
	execution.Stdout = stdout.Bytes()
	execution.Stderr = stderr.Bytes()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			execution.ExitCode = exitErr.ExitCode()
			execution.finish(NewDispatchError(ErrCodeSubprocess, "command for batch[%v,%v) exited with code:%v", execution.Batch.Start, execution.Batch.End, execution.ExitCode))
		} else {
			execution.ExitCode = -1
			execution.finish(NewDispatchError(ErrCodeSubprocess, "start command for batch[%v,%v) err:%v", execution.Batch.Start, execution.Batch.End, err))
		}
		return
	}
	execution.ExitCode = 0
	if len(execution.Stderr) > 0 {
		execution.finish(NewDispatchError(ErrCodeSubprocess, "command for batch[%v,%v) exited 0 but wrote %v bytes to stderr", execution.Batch.Start, execution.Batch.End, len(execution.Stderr)))
		return
	}
	execution.finish(nil)
}
