package cmd

import (
	"strings"

	"github.com/gantryhq/gantry/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "gantry",
	Short: "Dependency-gated task orchestrator",
	Long: `Gantry executes multi-phase task plans: tasks declare dependencies on
earlier work, phases run in order, and checkpoint gates hold the run
between phases until an operator approves, rejects, or lets them time out.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// exitCode is set by commands that finish a run, mapping the terminal run
// status onto the documented process exit codes. Zero otherwise.
var exitCode int

// ExitCode returns the exit code the process should finish with after a
// successful Execute.
func ExitCode() int {
	return exitCode
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/gantry/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding run state (default from config)")
	_ = viper.BindPFlag("storage.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/gantry")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GANTRY")
	// Replace dots with underscores for nested keys in env vars
	// e.g., GANTRY_STORAGE_DATA_DIR for storage.data_dir
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
