package godispatch

import (
	"database/sql"
	"os"

	"github.com/godispatch/godispatch/internal/logs"
)

//log
var logger logs.Logger = logs.NewLogger(os.Stdout, logs.Info)

//SetLogger set a logger instance for godispatch
func SetLogger(l logs.Logger) {
	logger = l
}

const (
	//DefaultBatchSize default number of work items per batch
	DefaultBatchSize = 100
	//DefaultConcurrency default number of batch tasks running in parallel
	DefaultConcurrency = 10
)

//db
var db *sql.DB

//SetDB register a *sql.DB instance to persist dispatch and task history.
//Without it history persistence is disabled.
func SetDB(sqlDb *sql.DB) {
	if sqlDb == nil {
		panic("sqlDb must not be nil")
	}
	db = sqlDb
}
