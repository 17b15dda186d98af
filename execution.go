package godispatch

import (
	"fmt"
	"time"

	"github.com/godispatch/godispatch/status"
)

//Batch an ordered, contiguous slice of work items identified by its
//[Start, End) offsets into the source list. Batches never overlap and the
//last batch of a run may be shorter than the configured batch size.
type Batch struct {
	Start int
	End   int
	Items []string
}

//Size number of work items in the batch
func (b *Batch) Size() int {
	return b.End - b.Start
}

//TempFileName name of the temp file holding the batch items. Offsets are
//unique per batch by construction, so names never collide within a run.
func (b *Batch) TempFileName() string {
	return fmt.Sprintf("%d~%d.csv", b.Start, b.End)
}

//TaskExecution one external command invocation bound to a single batch.
//The task exclusively owns its temp file and output buffers.
type TaskExecution struct {
	TaskExecutionId int64
	DispatchName    string
	Batch           Batch
	TaskStatus      status.TaskStatus
	TempFile        string
	Stdout          []byte
	Stderr          []byte
	ExitCode        int
	CreateTime      time.Time
	StartTime       time.Time
	EndTime         time.Time
	FailError       error
	Version         int64
}

func (execution *TaskExecution) start() {
	execution.StartTime = time.Now()
	execution.TaskStatus = status.RUNNING
}

func (execution *TaskExecution) finish(err error) {
	if err != nil {
		execution.TaskStatus = status.FAILED
		execution.FailError = err
	} else {
		execution.TaskStatus = status.COMPLETED
	}
	execution.EndTime = time.Now()
}

//DispatchExecution aggregate result of one dispatch run
type DispatchExecution struct {
	DispatchExecutionId int64
	DispatchName        string
	DispatchKey         string
	DispatchParams      string
	DispatchStatus      status.TaskStatus
	TaskExecutions      []*TaskExecution
	ItemCount           int
	BatchSize           int
	CreateTime          time.Time
	StartTime           time.Time
	EndTime             time.Time
	FailError           error
	Version             int64
}

func (e *DispatchExecution) AddTaskExecution(execution *TaskExecution) {
	e.TaskExecutions = append(e.TaskExecutions, execution)
}

//CompletedCount number of tasks that finished successfully
func (e *DispatchExecution) CompletedCount() int {
	count := 0
	for _, task := range e.TaskExecutions {
		if task.TaskStatus == status.COMPLETED {
			count++
		}
	}
	return count
}

//FailedCount number of tasks that finished with an error
func (e *DispatchExecution) FailedCount() int {
	count := 0
	for _, task := range e.TaskExecutions {
		if task.TaskStatus == status.FAILED {
			count++
		}
	}
	return count
}

func (e *DispatchExecution) start() {
	e.StartTime = time.Now()
	e.DispatchStatus = status.RUNNING
}

func (e *DispatchExecution) finish(err error) {
	if err != nil {
		e.DispatchStatus = status.FAILED
		e.FailError = err
	}
	e.EndTime = time.Now()
}
