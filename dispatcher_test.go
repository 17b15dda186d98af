package godispatch

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/godispatch/godispatch/file"
	"github.com/godispatch/godispatch/status"
)

//handler script: fails a batch whose temp file contains "oops", echoes the
//batch items otherwise
func writeHandlerScript(t *testing.T, dir string) string {
	script := filepath.Join(dir, "handler.sh")
	content := "#!/bin/sh\nif grep -q oops \"$1\"; then echo \"found oops\" >&2; exit 3; fi\ncat \"$1\"\n"
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}
	return script
}

func writeInput(t *testing.T, dir string, items []string) string {
	path := filepath.Join(dir, "items.txt")
	if err := os.WriteFile(path, []byte(strings.Join(items, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readLines(t *testing.T, path string) []string {
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	lines := make([]string, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestDispatcher_Dispatch(t *testing.T) {
	dir := t.TempDir()
	items := make([]string, 7)
	for i := range items {
		items[i] = fmt.Sprintf("https://example.com/repo-%v.git", i)
	}
	outPath := filepath.Join(dir, "out.log")
	errPath := filepath.Join(dir, "err.log")

	dispatcher := NewDispatcher("clone_repos").
		Command("sh " + writeHandlerScript(t, dir)).
		Input(writeInput(t, dir, items)).
		Output(outPath).
		ErrorOutput(errPath).
		TempDir(dir).
		BatchSize(3).
		Concurrency(2).
		Checksum(file.MD5).
		Build()

	execution, err := dispatcher.Dispatch(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, status.COMPLETED, execution.DispatchStatus)
	assert.Equal(t, 3, len(execution.TaskExecutions))
	assert.Equal(t, 3, execution.CompletedCount())
	assert.Equal(t, 0, execution.FailedCount())
	assert.Equal(t, 7, execution.ItemCount)

	got := readLines(t, outPath)
	sort.Strings(got)
	want := append([]string(nil), items...)
	sort.Strings(want)
	assert.Equal(t, want, got)

	errContent, e := os.ReadFile(errPath)
	assert.Equal(t, nil, e)
	assert.Equal(t, 0, len(errContent))

	//checksum file flushed beside the output
	checksumer := file.GetChecksumer(file.MD5)
	ok, e := checksumer.Verify(localFd(outPath))
	assert.Equal(t, nil, e)
	assert.Equal(t, true, ok)
}

func TestDispatcher_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	items := []string{"good-0", "good-1", "good-2", "good-3", "good-4", "good-5", "oops"}
	outPath := filepath.Join(dir, "out.log")
	errPath := filepath.Join(dir, "err.log")

	dispatcher := NewDispatcher("clone_repos").
		Command("sh " + writeHandlerScript(t, dir)).
		Input(writeInput(t, dir, items)).
		Output(outPath).
		ErrorOutput(errPath).
		TempDir(dir).
		BatchSize(3).
		Concurrency(3).
		Build()

	execution, err := dispatcher.Dispatch(context.Background())
	//individual batch failures are not a run-level error
	assert.Equal(t, nil, err)
	assert.Equal(t, status.FAILED, execution.DispatchStatus)
	assert.Equal(t, 3, len(execution.TaskExecutions))
	assert.Equal(t, 2, execution.CompletedCount())
	assert.Equal(t, 1, execution.FailedCount())

	failed := execution.TaskExecutions[2]
	assert.Equal(t, status.FAILED, failed.TaskStatus)
	assert.Equal(t, 3, failed.ExitCode)
	assert.Equal(t, 6, failed.Batch.Start)
	assert.Equal(t, 7, failed.Batch.End)

	//the failing batch's stderr reached the error destination
	errContent, e := os.ReadFile(errPath)
	assert.Equal(t, nil, e)
	assert.Equal(t, "found oops\n", string(errContent))

	//the other batches' stdout reached the output destination
	got := readLines(t, outPath)
	sort.Strings(got)
	assert.Equal(t, []string{"good-0", "good-1", "good-2", "good-3", "good-4", "good-5"}, got)
}

func TestDispatcher_EmptyInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	dispatcher := NewDispatcher("clone_repos").
		Command("cat").
		Input(path).
		Output(filepath.Join(dir, "out.log")).
		ErrorOutput(filepath.Join(dir, "err.log")).
		TempDir(dir).
		BatchSize(10).
		Build()

	execution, err := dispatcher.Dispatch(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, status.COMPLETED, execution.DispatchStatus)
	assert.Equal(t, 0, len(execution.TaskExecutions))
}

func TestDispatcher_MissingInput(t *testing.T) {
	dir := t.TempDir()
	dispatcher := NewDispatcher("clone_repos").
		Command("cat").
		Input(filepath.Join(dir, "absent.txt")).
		Output(filepath.Join(dir, "out.log")).
		ErrorOutput(filepath.Join(dir, "err.log")).
		TempDir(dir).
		Build()

	execution, err := dispatcher.Dispatch(context.Background())
	assert.NotEqual(t, nil, err)
	assert.Equal(t, ErrCodeInput, err.Code())
	assert.Equal(t, status.FAILED, execution.DispatchStatus)
	assert.Equal(t, 0, len(execution.TaskExecutions))
}

//two dispatchers with different concurrency settings run at the same time;
//each owns its pool, so neither retunes or drains the other's workers
func TestDispatcher_IndependentPools(t *testing.T) {
	dir := t.TempDir()
	newDispatcher := func(name string, concurrency int, items []string) *Dispatcher {
		sub := filepath.Join(dir, name)
		if err := os.Mkdir(sub, 0755); err != nil {
			t.Fatal(err)
		}
		return NewDispatcher(name).
			Command("cat").
			Input(writeInput(t, sub, items)).
			Output(filepath.Join(sub, "out.log")).
			ErrorOutput(filepath.Join(sub, "err.log")).
			TempDir(sub).
			BatchSize(2).
			Concurrency(concurrency).
			Build()
	}
	items := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	serial := newDispatcher("serial", 1, items)
	fanOut := newDispatcher("fan_out", 0, items)
	defer serial.Release()
	defer fanOut.Release()

	var wg sync.WaitGroup
	executions := make([]*DispatchExecution, 2)
	for i, dispatcher := range []*Dispatcher{serial, fanOut} {
		wg.Add(1)
		go func(i int, dispatcher *Dispatcher) {
			defer wg.Done()
			execution, err := dispatcher.Dispatch(context.Background())
			assert.Equal(t, nil, err)
			executions[i] = execution
		}(i, dispatcher)
	}
	wg.Wait()

	for _, execution := range executions {
		assert.Equal(t, status.COMPLETED, execution.DispatchStatus)
		assert.Equal(t, 4, len(execution.TaskExecutions))
		assert.Equal(t, 4, execution.CompletedCount())
	}
}

func TestDispatcher_FullFanOut(t *testing.T) {
	dir := t.TempDir()
	items := make([]string, 12)
	for i := range items {
		items[i] = fmt.Sprintf("item-%v", i)
	}
	dispatcher := NewDispatcher("clone_repos").
		Command("cat").
		Input(writeInput(t, dir, items)).
		Output(filepath.Join(dir, "out.log")).
		ErrorOutput(filepath.Join(dir, "err.log")).
		TempDir(dir).
		BatchSize(2).
		Concurrency(0). //explicit full fan-out: one worker per batch
		Build()

	execution, err := dispatcher.Dispatch(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, status.COMPLETED, execution.DispatchStatus)
	assert.Equal(t, 6, len(execution.TaskExecutions))
	assert.Equal(t, 6, execution.CompletedCount())
}
