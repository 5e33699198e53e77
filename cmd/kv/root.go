package kv

import (
	"github.com/ValentinKolb/qKV/cmd/util"
	"github.com/ValentinKolb/qKV/lib/store"
	"github.com/ValentinKolb/qKV/lib/store/lstore"
	"github.com/spf13/cobra"
)

var (
	kvStore  store.IStore
	kvConfig store.Config

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  openStore,
		PersistentPostRunE: closeStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add store flags to the KV command
	util.SetupStoreFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(allCmd)
	KeyValueCommands.AddCommand(mgetCmd)
	KeyValueCommands.AddCommand(msetCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(metricsCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// openStore opens the local store described by the flags and environment
func openStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	if kvConfig, err = util.GetStoreConfig(); err != nil {
		return err
	}

	kvStore, err = lstore.Open(kvConfig)
	return err
}

// closeStore flushes and closes the store after the command ran
func closeStore(_ *cobra.Command, _ []string) error {
	if kvStore == nil {
		return nil
	}
	err := kvStore.Close()
	kvStore = nil
	return err
}
