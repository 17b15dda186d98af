package godispatch

import (
	"time"

	"github.com/pkg/errors"
)

//Dispatch history is persisted when a *sql.DB has been registered with
//SetDB; without one every save is a no-op. Expected schema:
//
//  create table dispatch_execution (
//    dispatch_execution_id bigint primary key auto_increment,
//    dispatch_name    varchar(128) not null,
//    dispatch_key     varchar(64),
//    dispatch_params  text,
//    item_count       int,
//    batch_size       int,
//    create_time      datetime,
//    start_time       datetime,
//    end_time         datetime,
//    status           varchar(16),
//    exit_message     varchar(2048),
//    last_updated     datetime,
//    version          bigint
//  );
//
//  create table task_execution (
//    task_execution_id     bigint primary key auto_increment,
//    dispatch_execution_id bigint not null,
//    dispatch_name         varchar(128) not null,
//    batch_start           int,
//    batch_end             int,
//    temp_file             varchar(512),
//    exit_code             int,
//    create_time           datetime,
//    start_time            datetime,
//    end_time              datetime,
//    status                varchar(16),
//    exit_message          varchar(2048),
//    last_updated          datetime,
//    version               bigint
//  );

const maxExitMessageLength = 2048

func exitMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxExitMessageLength {
		msg = msg[:maxExitMessageLength]
	}
	return msg
}

func saveDispatchExecution(execution *DispatchExecution) DispatchError {
	if db == nil {
		return nil
	}
	if execution.DispatchExecutionId == 0 {
		res, err := db.Exec("insert into dispatch_execution(dispatch_name, dispatch_key, dispatch_params, item_count, batch_size, create_time, start_time, end_time, status, exit_message, last_updated, version) values(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			execution.DispatchName, execution.DispatchKey, execution.DispatchParams, execution.ItemCount, execution.BatchSize, execution.CreateTime, execution.StartTime, execution.EndTime, string(execution.DispatchStatus), exitMessage(execution.FailError), time.Now(), 1)
		if err != nil {
			return NewDispatchError(ErrCodeDbFail, "insert dispatch_execution err:%v", err)
		}
		if id, er := res.LastInsertId(); er == nil {
			execution.DispatchExecutionId = id
		}
		execution.Version = 1
		return nil
	}
	res, err := db.Exec("update dispatch_execution set item_count=?, batch_size=?, start_time=?, end_time=?, status=?, exit_message=?, last_updated=?, version=? where dispatch_execution_id=? and version=?",
		execution.ItemCount, execution.BatchSize, execution.StartTime, execution.EndTime, string(execution.DispatchStatus), exitMessage(execution.FailError), time.Now(), execution.Version+1, execution.DispatchExecutionId, execution.Version)
	if err != nil {
		return NewDispatchError(ErrCodeDbFail, "update dispatch_execution err:%v", err)
	}
	if rows, _ := res.RowsAffected(); rows <= 0 {
		return NewDispatchError(ErrCodeConcurrency, "update dispatch_execution conflict:%v", errors.Errorf("dispatch_execution_id:%v version:%v", execution.DispatchExecutionId, execution.Version))
	}
	execution.Version++
	return nil
}

func saveTaskExecution(dispatch *DispatchExecution, execution *TaskExecution) DispatchError {
	if db == nil {
		return nil
	}
	if execution.TaskExecutionId == 0 {
		res, err := db.Exec("insert into task_execution(dispatch_execution_id, dispatch_name, batch_start, batch_end, temp_file, exit_code, create_time, start_time, end_time, status, exit_message, last_updated, version) values(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			dispatch.DispatchExecutionId, execution.DispatchName, execution.Batch.Start, execution.Batch.End, execution.TempFile, execution.ExitCode, execution.CreateTime, execution.StartTime, execution.EndTime, string(execution.TaskStatus), exitMessage(execution.FailError), time.Now(), 1)
		if err != nil {
			return NewDispatchError(ErrCodeDbFail, "insert task_execution err:%v", err)
		}
		if id, er := res.LastInsertId(); er == nil {
			execution.TaskExecutionId = id
		}
		execution.Version = 1
		return nil
	}
	res, err := db.Exec("update task_execution set temp_file=?, exit_code=?, start_time=?, end_time=?, status=?, exit_message=?, last_updated=?, version=? where task_execution_id=? and version=?",
		execution.TempFile, execution.ExitCode, execution.StartTime, execution.EndTime, string(execution.TaskStatus), exitMessage(execution.FailError), time.Now(), execution.Version+1, execution.TaskExecutionId, execution.Version)
	if err != nil {
		return NewDispatchError(ErrCodeDbFail, "update task_execution err:%v", err)
	}
	if rows, _ := res.RowsAffected(); rows <= 0 {
		return NewDispatchError(ErrCodeConcurrency, "update task_execution conflict:%v", errors.Errorf("task_execution_id:%v version:%v", execution.TaskExecutionId, execution.Version))
	}
	execution.Version++
	return nil
}
