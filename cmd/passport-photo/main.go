package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "passport-photo",
	Short: "Build printable passport and visa photo sheets",
	Long: `passport-photo turns a portrait into a 300 DPI sheet of passport or visa
photos. It can run once on a file, on a whole directory, or as an HTTP service
that keeps a record of every job.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON config file (defaults apply when empty)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
