package godispatch

import (
	"context"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/godispatch/godispatch/file"
	"github.com/godispatch/godispatch/status"
	"github.com/godispatch/godispatch/util"
)

//Dispatcher partitions a work item list into fixed-size batches and fans each
//batch out to an external command on a bounded task pool, collecting every
//subprocess's output into shared aggregate destinations. Construct one with
//NewDispatcher.
type Dispatcher struct {
	name          string
	runner        *commandRunner
	inputFd       file.FileDescriptor
	outFd         file.FileDescriptor
	errFd         file.FileDescriptor
	batchSize     int
	concurrency   int
	checksum      string
	listeners     []DispatchListener
	taskListeners []TaskListener
	pool          *taskPool
}

//Name dispatcher name
func (d *Dispatcher) Name() string {
	return d.name
}

//Release free the dispatcher's worker pool. A released dispatcher must not
//be dispatched again.
func (d *Dispatcher) Release() {
	d.pool.Release()
}

//Dispatch run one full dispatch: load the work item list, partition it,
//execute the command once per batch and block until every launched task has
//completed. Individual batch failures never stop the run; the returned
//execution carries a per-task result for each batch and the And-merge of
//their statuses. A non-nil error is returned only for run-level failures
//(unreadable input, invalid partitioning, unwritable destinations) that
//abort before or after the batches run.
func (d *Dispatcher) Dispatch(ctx context.Context) (execution *DispatchExecution, err DispatchError) {
	execution = &DispatchExecution{
		DispatchName:   d.name,
		DispatchStatus: status.PENDING,
		TaskExecutions: make([]*TaskExecution, 0),
		CreateTime:     time.Now(),
	}
	defer func() {
		if er := recover(); er != nil {
			logger.Error(ctx, "panic in dispatch, dispatchName:%v, err:%v, stack:%v", d.name, er, string(debug.Stack()))
			err = NewDispatchError(ErrCodeGeneral, "panic in dispatch:%v, err:%v", d.name, er)
		}
		if err != nil {
			execution.finish(err)
		}
		if e := saveDispatchExecution(execution); e != nil {
			logger.Error(ctx, "save dispatch execution failed, dispatchName:%v, err:%v", d.name, e)
		}
	}()
	logger.Info(ctx, "start dispatch, dispatchName:%v, input:%v", d.name, d.inputFd.FileName)
	for _, listener := range d.listeners {
		if err = listener.BeforeDispatch(execution); err != nil {
			logger.Error(ctx, "dispatch listener executing error, dispatchName:%v, listener:%v, err:%v", d.name, reflect.TypeOf(listener).String(), err)
			return execution, err
		}
	}

	items, err := LoadWorkItems(d.inputFd)
	if err != nil {
		logger.Error(ctx, "load work items failed, dispatchName:%v, input:%v, err:%v", d.name, d.inputFd.FileName, err)
		return execution, err
	}
	batches, err := Partition(items, d.batchSize)
	if err != nil {
		return execution, err
	}
	execution.ItemCount = len(items)
	execution.BatchSize = d.batchSize
	execution.DispatchKey, execution.DispatchParams = d.dispatchKey()
	logger.Info(ctx, "work items partitioned, dispatchName:%v, items:%v, batchSize:%v, batches:%v", d.name, len(items), d.batchSize, len(batches))

	if len(batches) == 0 {
		execution.start()
		execution.DispatchStatus = status.COMPLETED
		execution.EndTime = time.Now()
		return execution, d.afterDispatch(ctx, execution)
	}

	collector, err := newResultCollector(d.outFd, d.errFd)
	if err != nil {
		logger.Error(ctx, "open aggregate destinations failed, dispatchName:%v, err:%v", d.name, err)
		return execution, err
	}

	//the pool belongs to this dispatcher, tuning it never affects other
	//dispatchers running in the same process
	if d.concurrency <= 0 {
		//full fan-out was explicitly requested: one worker per batch
		d.pool.SetMaxSize(len(batches))
	} else {
		d.pool.SetMaxSize(d.concurrency)
	}

	execution.start()
	if e := saveDispatchExecution(execution); e != nil {
		logger.Error(ctx, "save dispatch execution failed, dispatchName:%v, err:%v", d.name, e)
	}

	futures := make([]Future, 0, len(batches))
	for _, batch := range batches {
		task := &TaskExecution{
			DispatchName: d.name,
			Batch:        batch,
			TaskStatus:   status.PENDING,
			CreateTime:   time.Now(),
		}
		execution.AddTaskExecution(task)
		if e := saveTaskExecution(execution, task); e != nil {
			logger.Error(ctx, "save task execution failed, dispatchName:%v, batch:[%v,%v), err:%v", d.name, batch.Start, batch.End, e)
		}
		fu := d.pool.Submit(ctx, d.taskFunc(ctx, task, collector))
		futures = append(futures, fu)
	}

	for i, fu := range futures {
		if _, er := fu.Get(); er != nil {
			//the pool rejected the task or it panicked before finishing
			task := execution.TaskExecutions[i]
			if task.TaskStatus != status.FAILED {
				task.finish(NewDispatchError(ErrCodeGeneral, "batch task aborted, batch:[%v,%v), err:%v", task.Batch.Start, task.Batch.End, er))
			}
		}
	}
	closeErr := collector.Close()
	if closeErr != nil {
		logger.Error(ctx, "close aggregate destinations failed, dispatchName:%v, err:%v", d.name, closeErr)
	}

	dispatchStatus := status.COMPLETED
	for _, task := range execution.TaskExecutions {
		if task.TaskStatus == status.FAILED {
			logger.Error(ctx, "batch task failed, dispatchName:%v, batch:[%v,%v), exitCode:%v, err:%v", d.name, task.Batch.Start, task.Batch.End, task.ExitCode, task.FailError)
		} else {
			logger.Info(ctx, "batch task completed, dispatchName:%v, batch:[%v,%v)", d.name, task.Batch.Start, task.Batch.End)
		}
		if e := saveTaskExecution(execution, task); e != nil {
			logger.Error(ctx, "save task execution failed, dispatchName:%v, batch:[%v,%v), err:%v", d.name, task.Batch.Start, task.Batch.End, e)
		}
		dispatchStatus = dispatchStatus.And(task.TaskStatus)
	}
	if closeErr != nil {
		dispatchStatus = status.FAILED
		execution.FailError = closeErr
	} else if d.checksum != "" {
		if e := file.GetChecksumer(d.checksum).Checksum(d.outFd); e != nil {
			logger.Error(ctx, "flush output checksum failed, dispatchName:%v, alg:%v, err:%v", d.name, d.checksum, e)
			dispatchStatus = status.FAILED
			execution.FailError = NewDispatchError(ErrCodeIO, "flush output checksum err:%v", e)
		}
	}
	execution.DispatchStatus = dispatchStatus
	execution.EndTime = time.Now()
	return execution, d.afterDispatch(ctx, execution)
}

func (d *Dispatcher) taskFunc(ctx context.Context, task *TaskExecution, collector *resultCollector) func() (interface{}, error) {
	return func() (interface{}, error) {
		for _, listener := range d.taskListeners {
			if err := listener.BeforeTask(task); err != nil {
				logger.Error(ctx, "task listener executing error, dispatchName:%v, batch:[%v,%v), listener:%v, err:%v", d.name, task.Batch.Start, task.Batch.End, reflect.TypeOf(listener).String(), err)
				task.finish(err)
				return nil, nil
			}
		}
		d.runner.Run(ctx, task)
		for _, listener := range d.taskListeners {
			if err := listener.AfterTask(task); err != nil {
				logger.Error(ctx, "task listener executing error, dispatchName:%v, batch:[%v,%v), listener:%v, err:%v", d.name, task.Batch.Start, task.Batch.End, reflect.TypeOf(listener).String(), err)
				task.finish(err)
				break
			}
		}
		collector.Collect(task)
		return nil, nil
	}
}

func (d *Dispatcher) afterDispatch(ctx context.Context, execution *DispatchExecution) DispatchError {
	for _, listener := range d.listeners {
		if err := listener.AfterDispatch(execution); err != nil {
			logger.Error(ctx, "dispatch listener executing error, dispatchName:%v, listener:%v, err:%v", d.name, reflect.TypeOf(listener).String(), err)
			execution.finish(err)
			return err
		}
	}
	logger.Info(ctx, "finish dispatch, dispatchName:%v, status:%v, completed:%v, failed:%v", d.name, execution.DispatchStatus, execution.CompletedCount(), execution.FailedCount())
	return nil
}

//dispatchKey identity of this dispatcher's parameters, used to correlate
//runs of the same work in the history repository
func (d *Dispatcher) dispatchKey() (string, string) {
	params, err := util.JsonString(map[string]interface{}{
		"command":    d.runner.command,
		"input":      d.inputFd.FileName,
		"batch_size": d.batchSize,
	})
	if err != nil {
		return "", ""
	}
	return util.MD5(params), params
}
