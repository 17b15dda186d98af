package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/godispatch/godispatch"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "godispatch",
	Short: "Partition a work item list and fan it out to an external command",
	Long: `godispatch reads a list of work items (one per line), splits it into
fixed-size batches, writes each batch to a temp file and runs the configured
command once per batch on a bounded worker pool. Captured stdout and stderr
of every batch are appended to shared output and error files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "godispatch.yaml", "config file")
	rootCmd.Flags().String("command", "", "external command to run per batch")
	rootCmd.Flags().String("input", "", "work item list file")
	rootCmd.Flags().String("output", "", "aggregated stdout destination")
	rootCmd.Flags().String("error-output", "", "aggregated stderr destination")
	rootCmd.Flags().String("temp-dir", "", "directory for per-batch temp files")
	rootCmd.Flags().Int("batch-size", godispatch.DefaultBatchSize, "work items per batch")
	rootCmd.Flags().Int("concurrency", godispatch.DefaultConcurrency, "max parallel batch tasks (<=0 for one per batch)")

	viper.BindPFlag("command", rootCmd.Flags().Lookup("command"))
	viper.BindPFlag("input_path", rootCmd.Flags().Lookup("input"))
	viper.BindPFlag("output_path", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("error_path", rootCmd.Flags().Lookup("error-output"))
	viper.BindPFlag("temp_dir", rootCmd.Flags().Lookup("temp-dir"))
	viper.BindPFlag("batch_size", rootCmd.Flags().Lookup("batch-size"))
	viper.BindPFlag("concurrency", rootCmd.Flags().Lookup("concurrency"))
}

func loadConfig(cmd *cobra.Command) (*godispatch.Config, error) {
	viper.SetEnvPrefix("GODISPATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		//the default config file is optional when flags and env carry everything
		if _, statErr := os.Stat(cfgFile); statErr == nil || cmd.Flags().Changed("config") {
			return nil, err
		}
	}
	config := godispatch.NewConfig()
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	return config, nil
}

func run(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if dsn := viper.GetString("history_dsn"); dsn != "" {
		sqlDb, err := sql.Open("mysql", dsn)
		if err != nil {
			return err
		}
		defer sqlDb.Close()
		godispatch.SetDB(sqlDb)
	}

	dispatcher := godispatch.NewDispatcher("godispatch").Config(config).Build()
	defer dispatcher.Release()
	execution, err := dispatcher.Dispatch(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dispatch %v: %v batches, %v completed, %v failed\n",
		execution.DispatchStatus, len(execution.TaskExecutions), execution.CompletedCount(), execution.FailedCount())
	if failed := execution.FailedCount(); failed > 0 {
		return fmt.Errorf("%v of %v batches failed, see %v", failed, len(execution.TaskExecutions), config.ErrorPath)
	}
	if execution.FailError != nil {
		return execution.FailError
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "godispatch: %v\n", err)
		os.Exit(1)
	}
}
