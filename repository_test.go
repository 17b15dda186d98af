package godispatch

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/godispatch/godispatch/status"
)

//minimal database/sql driver recording executed statements, enough to cover
//the history save paths without a running database
type historyStubState struct {
	queries      []string
	lastInsertId int64
	rowsAffected int64
	execErr      error
}

var historyStub = &historyStubState{}

type historyStubDriver struct{}

func (historyStubDriver) Open(name string) (driver.Conn, error) { return historyStubConn{}, nil }

type historyStubConn struct{}

func (historyStubConn) Prepare(query string) (driver.Stmt, error) {
	return historyStubStmt{query: query}, nil
}
func (historyStubConn) Close() error              { return nil }
func (historyStubConn) Begin() (driver.Tx, error) { return nil, errors.New("not supported") }

type historyStubStmt struct{ query string }

func (s historyStubStmt) Close() error  { return nil }
func (s historyStubStmt) NumInput() int { return -1 }
func (s historyStubStmt) Exec(args []driver.Value) (driver.Result, error) {
	historyStub.queries = append(historyStub.queries, s.query)
	if historyStub.execErr != nil {
		return nil, historyStub.execErr
	}
	return historyStubResult{}, nil
}
func (s historyStubStmt) Query(args []driver.Value) (driver.Rows, error) {
	return nil, errors.New("not supported")
}

type historyStubResult struct{}

func (historyStubResult) LastInsertId() (int64, error) { return historyStub.lastInsertId, nil }
func (historyStubResult) RowsAffected() (int64, error) { return historyStub.rowsAffected, nil }

func init() {
	sql.Register("historystub", historyStubDriver{})
}

func openHistoryStub(t *testing.T) func() {
	sqlDb, err := sql.Open("historystub", "")
	if err != nil {
		t.Fatal(err)
	}
	SetDB(sqlDb)
	*historyStub = historyStubState{lastInsertId: 1, rowsAffected: 1}
	return func() {
		db = nil
		sqlDb.Close()
	}
}

func TestSaveDispatchExecution(t *testing.T) {
	defer openHistoryStub(t)()
	historyStub.lastInsertId = 42

	execution := &DispatchExecution{
		DispatchName:   "clone_repos",
		DispatchStatus: status.COMPLETED,
		CreateTime:     time.Now(),
	}
	err := saveDispatchExecution(execution)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(42), execution.DispatchExecutionId)
	assert.Equal(t, int64(1), execution.Version)
	assert.Equal(t, true, strings.HasPrefix(historyStub.queries[0], "insert into dispatch_execution"))

	//saving again takes the versioned update path
	err = saveDispatchExecution(execution)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(2), execution.Version)
	assert.Equal(t, true, strings.HasPrefix(historyStub.queries[1], "update dispatch_execution"))

	//a stale version loses the update
	historyStub.rowsAffected = 0
	err = saveDispatchExecution(execution)
	assert.NotEqual(t, nil, err)
	assert.Equal(t, ErrCodeConcurrency, err.Code())
	assert.Equal(t, int64(2), execution.Version)
}

func TestSaveTaskExecution(t *testing.T) {
	defer openHistoryStub(t)()
	historyStub.lastInsertId = 7

	dispatch := &DispatchExecution{DispatchExecutionId: 42, DispatchName: "clone_repos"}
	task := &TaskExecution{
		DispatchName: "clone_repos",
		Batch:        Batch{Start: 0, End: 3},
		TaskStatus:   status.COMPLETED,
		CreateTime:   time.Now(),
	}
	err := saveTaskExecution(dispatch, task)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(7), task.TaskExecutionId)
	assert.Equal(t, int64(1), task.Version)
	assert.Equal(t, true, strings.HasPrefix(historyStub.queries[0], "insert into task_execution"))

	err = saveTaskExecution(dispatch, task)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(2), task.Version)

	historyStub.rowsAffected = 0
	err = saveTaskExecution(dispatch, task)
	assert.NotEqual(t, nil, err)
	assert.Equal(t, ErrCodeConcurrency, err.Code())
}

func TestSaveDispatchExecution_DbFail(t *testing.T) {
	defer openHistoryStub(t)()
	historyStub.execErr = errors.New("server has gone away")

	execution := &DispatchExecution{DispatchName: "clone_repos"}
	err := saveDispatchExecution(execution)
	assert.NotEqual(t, nil, err)
	assert.Equal(t, ErrCodeDbFail, err.Code())
	assert.Equal(t, int64(0), execution.DispatchExecutionId)
}

func TestSaveDispatchExecution_NoDb(t *testing.T) {
	err := saveDispatchExecution(&DispatchExecution{DispatchName: "clone_repos"})
	assert.Equal(t, nil, err)
}

func TestExitMessage(t *testing.T) {
	assert.Equal(t, "", exitMessage(nil))
	long := errors.New(strings.Repeat("x", maxExitMessageLength+100))
	assert.Equal(t, maxExitMessageLength, len(exitMessage(long)))
}
