// Package cmd provides the command-line interface for qnet.
package cmd

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "qnet",
	Short: "qnet simulates admission control and resource management in quantum networks.",
	Long: `qnet simulates quantum routers that reserve memories along a path, ` +
		`load entanglement rules for the reserved interval and pair local ` +
		`protocols with their remote counterparts.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := loadEnv(".env"); err != nil {
		logrus.WithError(err).Warn("cannot load .env")
	}

	rootCmd.AddCommand(newRunCmd())

	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// loadEnv reads defaults from a dotenv file. A missing file is not an error.
func loadEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}
