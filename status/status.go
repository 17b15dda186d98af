package status

//TaskStatus status of a dispatch run or a single batch task
type TaskStatus string

const (
	//PENDING task or dispatch is created but not yet running
	PENDING TaskStatus = "PENDING"
	//RUNNING task or dispatch is executing
	RUNNING TaskStatus = "RUNNING"
	//COMPLETED task or dispatch finished successfully
	COMPLETED TaskStatus = "COMPLETED"
	//FAILED task or dispatch finished with an error
	FAILED TaskStatus = "FAILED"
	//UNKNOWN task or dispatch aborted for an unknown reason
	UNKNOWN TaskStatus = "UNKNOWN"
)

var statuses = map[TaskStatus]int{
	PENDING:   0,
	RUNNING:   1,
	COMPLETED: 2,
	FAILED:    3,
	UNKNOWN:   4,
}

//And merge two statuses, the more severe one wins. Used to fold per-task
//statuses into the status of the whole dispatch run.
func (s TaskStatus) And(other TaskStatus) TaskStatus {
	i1, ok1 := statuses[s]
	i2, ok2 := statuses[other]
	if ok1 && ok2 {
		if i1 < i2 {
			return other
		}
		return s
	} else if ok1 {
		return other
	}
	return s
}
