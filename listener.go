package godispatch

//DispatchListener dispatch run listener
type DispatchListener interface {
	//BeforeDispatch execute before any batch starts
	BeforeDispatch(execution *DispatchExecution) DispatchError
	//AfterDispatch execute after every task completed, either normally or abnormally
	AfterDispatch(execution *DispatchExecution) DispatchError
}

//TaskListener batch task listener
type TaskListener interface {
	//BeforeTask execute before a batch task starts
	BeforeTask(execution *TaskExecution) DispatchError
	//AfterTask execute after a batch task completed, either normally or abnormally
	AfterTask(execution *TaskExecution) DispatchError
}
