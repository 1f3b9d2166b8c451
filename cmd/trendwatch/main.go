package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trendwatch",
		Short: "Watch trending lists, match keyword rules, push digests",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")

	root.AddCommand(runCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(digestCmd())
	root.AddCommand(historyCmd())

	return root
}

func runCmd() *cobra.Command {
	var (
		mode     string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll all platforms once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(mode, jsonMode)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "report mode: daily, current or incremental (default from config)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print the run summary as JSON")

	return cmd
}

func watchCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "status server address, e.g. :8080 (default from config)")

	return cmd
}

func digestCmd() *cobra.Command {
	var (
		mode     string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Render a digest from saved history without fetching or pushing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(mode, jsonMode)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "daily", "report mode to synthesize")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print the digest as JSON")

	return cmd
}

func historyCmd() *cobra.Command {
	var (
		days     int
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show aggregate statistics from the run archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(days, jsonMode)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "how many days back to aggregate")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print the report as JSON")

	return cmd
}
