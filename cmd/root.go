package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/qKV/cmd/kv"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "qkv",
		Short: "embedded key-value store",
		Long: fmt.Sprintf(`qKV (v%s)

An embedded, single file key-value store written in Go. Values are typed,
every write is appended to a binary log and the log is replayed into an
in-memory cache when the store is opened.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of qKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qKV v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
