// Command storagectl is a developer inspection tool for the storage
// engine: connect to a space, read an address, push a JSON patch, and
// watch the notifications a space's replica emits. It exercises only
// the transaction/notification surface — it has no opinion about
// recipes or schemas, unlike the runtime it inspects.
package main

import (
	"fmt"
	"os"

	"github.com/commontoolsinc/memory/pkg/engine"
	"github.com/commontoolsinc/memory/pkg/log"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "storagectl",
	Short:   "Inspect and exercise a replicated fact space",
	Long:    `storagectl is a manual smoke-testing tool for the storage engine: it reads and writes facts through the same Transaction/Session surface application code uses, and can tail a space's notification stream.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("storagectl version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().String("api-url", "", "Toolshed websocket endpoint (defaults to TOOLSHED_API_URL, or an in-process local space if unset)")
	rootCmd.PersistentFlags().String("data-dir", "", "Local cache directory (defaults to TOOLSHED_DATA_DIR)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(spaceCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// sessionConfig builds an engine.Config from the persistent flags,
// falling back to the environment for anything left unset on the
// command line.
func sessionConfig(cmd *cobra.Command) engine.Config {
	cfg := engine.ConfigFromEnv()
	if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg
}

func openSession(cmd *cobra.Command) (*engine.Session, error) {
	s, err := engine.New(sessionConfig(cmd))
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	return s, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
