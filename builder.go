package godispatch

import (
	"fmt"

	"github.com/godispatch/godispatch/file"
)

type dispatcherBuilder struct {
	name          string
	config        *Config
	listeners     []DispatchListener
	taskListeners []TaskListener
}

//NewDispatcher new instance of dispatcher builder
func NewDispatcher(name string) *dispatcherBuilder {
	if name == "" {
		panic("dispatcher name must not be empty")
	}
	return &dispatcherBuilder{
		name:   name,
		config: NewConfig(),
	}
}

//Config replace the whole configuration value
func (builder *dispatcherBuilder) Config(config *Config) *dispatcherBuilder {
	if config == nil {
		panic(fmt.Sprintf("config must not be nil for dispatcher:%v", builder.name))
	}
	builder.config = config
	return builder
}

func (builder *dispatcherBuilder) Command(command string) *dispatcherBuilder {
	builder.config.Command = command
	return builder
}

func (builder *dispatcherBuilder) Input(path string) *dispatcherBuilder {
	builder.config.InputPath = path
	return builder
}

func (builder *dispatcherBuilder) Output(path string) *dispatcherBuilder {
	builder.config.OutputPath = path
	return builder
}

func (builder *dispatcherBuilder) ErrorOutput(path string) *dispatcherBuilder {
	builder.config.ErrorPath = path
	return builder
}

func (builder *dispatcherBuilder) TempDir(dir string) *dispatcherBuilder {
	builder.config.TempDir = dir
	return builder
}

func (builder *dispatcherBuilder) BatchSize(size int) *dispatcherBuilder {
	builder.config.BatchSize = size
	return builder
}

//Concurrency max parallel batch tasks; zero or negative requests full fan-out
func (builder *dispatcherBuilder) Concurrency(concurrency int) *dispatcherBuilder {
	builder.config.Concurrency = concurrency
	return builder
}

func (builder *dispatcherBuilder) Checksum(alg string) *dispatcherBuilder {
	builder.config.Checksum = alg
	return builder
}

func (builder *dispatcherBuilder) Listener(listener ...interface{}) *dispatcherBuilder {
	for _, l := range listener {
		valid := false
		if dl, ok := l.(DispatchListener); ok {
			builder.listeners = append(builder.listeners, dl)
			valid = true
		}
		if tl, ok := l.(TaskListener); ok {
			builder.taskListeners = append(builder.taskListeners, tl)
			valid = true
		}
		if !valid {
			panic(fmt.Sprintf("not supported listener:%+v for dispatcher:%v", l, builder.name))
		}
	}
	return builder
}

func (builder *dispatcherBuilder) Build() *Dispatcher {
	if err := builder.config.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config for dispatcher:%v, err:%v", builder.name, err))
	}
	runner, err := newCommandRunner(builder.config.Command, builder.config.TempDir)
	if err != nil {
		panic(fmt.Sprintf("invalid command for dispatcher:%v, err:%v", builder.name, err))
	}
	local := &file.LocalFileSystem{}
	poolSize := builder.config.Concurrency
	if poolSize <= 0 {
		//full fan-out retunes the pool to the batch count at dispatch time
		poolSize = DefaultConcurrency
	}
	return &Dispatcher{
		name:          builder.name,
		runner:        runner,
		inputFd:       file.FileDescriptor{Store: builder.config.inputStorage(), FileName: builder.config.InputPath, Encoding: "utf-8"},
		outFd:         file.FileDescriptor{Store: local, FileName: builder.config.OutputPath, Encoding: "utf-8"},
		errFd:         file.FileDescriptor{Store: local, FileName: builder.config.ErrorPath, Encoding: "utf-8"},
		batchSize:     builder.config.BatchSize,
		concurrency:   builder.config.Concurrency,
		checksum:      builder.config.Checksum,
		listeners:     builder.listeners,
		taskListeners: builder.taskListeners,
		pool:          newTaskPool(poolSize),
	}
}
