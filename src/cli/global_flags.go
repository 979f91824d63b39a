package cli

import (
	"github.com/spf13/cobra"

	"hostbackup/src/safety"
)

// addGlobalFlags adds persistent flags to the root command.
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config-dir", "", "Configuration directory (default /etc/hostbackup)")
	cmd.PersistentFlags().String("staging-dir", "", "Staging directory for volume archives")
	cmd.PersistentFlags().String("log-file", "", "Append-only log file")
	cmd.PersistentFlags().String("lock-file", "", "Single-instance lock file")
	cmd.PersistentFlags().BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

func getGlobalFlags(cmd *cobra.Command) (configDir, stagingDir, logFile, lockFile string, verbose bool) {
	flags := cmd.Root().PersistentFlags()
	configDir, _ = flags.GetString("config-dir")
	stagingDir, _ = flags.GetString("staging-dir")
	logFile, _ = flags.GetString("log-file")
	lockFile, _ = flags.GetString("lock-file")
	verbose, _ = flags.GetBool("verbose")
	return
}

// getSafetyOptions reads the global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	yes, _ := cmd.Root().PersistentFlags().GetBool("yes")
	return safety.Options{Yes: yes}
}
