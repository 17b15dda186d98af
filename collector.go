package godispatch

import (
	"io"

	"github.com/godispatch/godispatch/file"
)

//resultCollector serializes every write to the shared aggregate output and
//error destinations. Concurrent tasks hand their completed executions to a
//single goroutine owning both writers, so each batch's captured output lands
//as one contiguous block with no byte-level interleaving between batches.
//Destinations are opened in append mode and never truncated during a run.
type resultCollector struct {
	out  io.WriteCloser
	err  io.WriteCloser
	ch   chan *TaskExecution
	done chan struct{}
}

func newResultCollector(outFd, errFd file.FileDescriptor) (*resultCollector, DispatchError) {
	out, err := outFd.Store.Append(outFd.FileName, outFd.Encoding)
	if err != nil {
		return nil, NewDispatchError(ErrCodeIO, "open output destination[%v] err:%v", outFd.FileName, err)
	}
	errWriter, err := errFd.Store.Append(errFd.FileName, errFd.Encoding)
	if err != nil {
		out.Close()
		return nil, NewDispatchError(ErrCodeIO, "open error destination[%v] err:%v", errFd.FileName, err)
	}
	c := &resultCollector{
		out:  out,
		err:  errWriter,
		ch:   make(chan *TaskExecution),
		done: make(chan struct{}),
	}
	go c.loop()
	return c, nil
}

func (c *resultCollector) loop() {
	for execution := range c.ch {
		if err := c.flush(execution); err != nil {
			//destination write failure fails this batch only
			execution.finish(NewDispatchError(ErrCodeIO, "flush output of batch[%v,%v) err:%v", execution.Batch.Start, execution.Batch.End, err))
		}
	}
	close(c.done)
}

func (c *resultCollector) flush(execution *TaskExecution) error {
	if len(execution.Stdout) > 0 {
		if _, err := c.out.Write(execution.Stdout); err != nil {
			return err
		}
	}
	if len(execution.Stderr) > 0 {
		if _, err := c.err.Write(execution.Stderr); err != nil {
			return err
		}
	}
	return nil
}

//Collect hand a completed execution over to the writer goroutine. Safe for
//concurrent use from any number of tasks.
func (c *resultCollector) Collect(execution *TaskExecution) {
	c.ch <- execution
}

//Close drain pending results and close both destinations. Task statuses may
//still be amended by the writer goroutine until Close returns, so callers
//must not aggregate results before calling it.
func (c *resultCollector) Close() DispatchError {
	close(c.ch)
	<-c.done
	var firstErr error
	if err := c.out.Close(); err != nil {
		firstErr = err
	}
	if err := c.err.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return NewDispatchError(ErrCodeIO, "close aggregate destination err:%v", firstErr)
	}
	return nil
}
