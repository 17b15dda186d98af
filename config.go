package godispatch

import (
	"os"
	"time"

	"github.com/godispatch/godispatch/file"
)

//FTPConfig connection parameters for an FTP-hosted work item list
type FTPConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	ConnTimeout time.Duration `mapstructure:"conn_timeout"`
}

//Config runtime parameters for one dispatcher. All parameters travel in
//this value, there is no implicit process-wide configuration state.
type Config struct {
	//Command external executable plus fixed arguments, split on whitespace;
	//the per-batch temp file path is appended as the last argument
	Command string `mapstructure:"command"`
	//InputPath location of the work item list, one item per line
	InputPath string `mapstructure:"input_path"`
	//InputStore storage holding the work item list: "local" or "ftp"
	InputStore string `mapstructure:"input_store"`
	//TempDir directory for the per-batch temp files
	TempDir string `mapstructure:"temp_dir"`
	//OutputPath aggregated stdout destination, appended to for the whole run
	OutputPath string `mapstructure:"output_path"`
	//ErrorPath aggregated stderr destination, appended to for the whole run
	ErrorPath string `mapstructure:"error_path"`
	//BatchSize number of work items per batch, must be positive
	BatchSize int `mapstructure:"batch_size"`
	//Concurrency max number of batch tasks running in parallel; zero or
	//negative explicitly requests one worker per batch (full fan-out)
	Concurrency int `mapstructure:"concurrency"`
	//Checksum optional check file flushed beside the output once the run
	//completes: "MD5", "SHA1", "SHA256", "SHA512" or "OK"
	Checksum string `mapstructure:"checksum"`
	//FTP connection parameters, required when InputStore is "ftp"
	FTP FTPConfig `mapstructure:"ftp"`
}

//NewConfig creates a Config with defaults filled in
func NewConfig() *Config {
	return &Config{
		InputStore:  file.LocalFileStorage,
		TempDir:     os.TempDir(),
		BatchSize:   DefaultBatchSize,
		Concurrency: DefaultConcurrency,
	}
}

//Validate check required fields and value ranges
func (c *Config) Validate() DispatchError {
	if c.Command == "" {
		return NewDispatchError(ErrCodeGeneral, "command must not be empty")
	}
	if c.InputPath == "" {
		return NewDispatchError(ErrCodeGeneral, "input_path must not be empty")
	}
	if c.OutputPath == "" {
		return NewDispatchError(ErrCodeGeneral, "output_path must not be empty")
	}
	if c.ErrorPath == "" {
		return NewDispatchError(ErrCodeGeneral, "error_path must not be empty")
	}
	if c.BatchSize <= 0 {
		return NewDispatchError(ErrCodeGeneral, "batch_size must be positive, got:%v", c.BatchSize)
	}
	switch c.InputStore {
	case "", file.LocalFileStorage:
	case file.FTPFileStorage:
		if c.FTP.Host == "" {
			return NewDispatchError(ErrCodeGeneral, "ftp.host must not be empty when input_store is %v", file.FTPFileStorage)
		}
	default:
		return NewDispatchError(ErrCodeGeneral, "unsupported input_store:%v", c.InputStore)
	}
	if c.Checksum != "" && file.GetChecksumer(c.Checksum) == nil {
		return NewDispatchError(ErrCodeGeneral, "unsupported checksum algorithm:%v", c.Checksum)
	}
	return nil
}

//inputStorage storage the work item list is read from
func (c *Config) inputStorage() file.FileStorage {
	if c.InputStore == file.FTPFileStorage {
		return &file.FTPFileSystem{
			Host:        c.FTP.Host,
			Port:        c.FTP.Port,
			User:        c.FTP.User,
			Password:    c.FTP.Password,
			ConnTimeout: c.FTP.ConnTimeout,
		}
	}
	return &file.LocalFileSystem{}
}
