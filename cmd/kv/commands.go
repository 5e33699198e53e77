package kv

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/qKV/cmd/util"
	"github.com/ValentinKolb/qKV/lib/store"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, _ := cmd.Flags().GetString("type")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			v, err := util.ParseValue(typ, args[1])
			if err != nil {
				return err
			}
			if err := kvStore.SetE(args[0], v, ttl); err != nil {
				return err
			}
			fmt.Printf("set successfully (ttl %s)\n", util.FormatTTL(ttl))
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			v, ok, err := kvStore.Get(key)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("key=%s, found=false\n", key)
				return nil
			}
			fmt.Printf("key=%s, found=true, type=%s, value=%s\n", key, v.Kind(), v)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key...]",
		Short: "Deletes one or more keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.DeleteMany(args); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found, err := kvStore.Has(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists all keys in sorted order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := kvStore.Keys()
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	}
	allCmd = &cobra.Command{
		Use:   "all",
		Short: "Prints every live key-value pair in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := kvStore.GetAll()
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s=%s\n", r.Key, r.Value)
			}
			return nil
		},
	}
	mgetCmd = &cobra.Command{
		Use:   "mget [key...]",
		Short: "Reads several keys at once, missing keys are not printed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := kvStore.GetMany(args)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s=%s\n", r.Key, r.Value)
			}
			return nil
		},
	}
	msetCmd = &cobra.Command{
		Use:   "mset [key=value...]",
		Short: "Sets several keys with a single write",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, _ := cmd.Flags().GetString("type")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			records := make([]store.Record, 0, len(args))
			for _, arg := range args {
				key, raw, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid pair %q, expected key=value", arg)
				}
				v, err := util.ParseValue(typ, raw)
				if err != nil {
					return err
				}
				records = append(records, store.Record{Key: key, Value: v, TTL: ttl})
			}
			if err := kvStore.SetMany(records); err != nil {
				return err
			}
			fmt.Printf("set %d keys successfully\n", len(records))
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes all keys and resets the data file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Clear(); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints the configuration and cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(kvConfig.String())

			info, err := kvStore.GetDBInfo()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
	metricsCmd = &cobra.Command{
		Use:   "metrics",
		Short: "Prints the store metrics in Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kvStore.WriteMetrics(os.Stdout)
			return nil
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{setCmd, msetCmd} {
		c.Flags().String("type", "string", util.WrapString("Type of the value ("+strings.Join(util.ValueTypes, ", ")+")"))
		c.Flags().Duration("ttl", 0, util.WrapString("Time to live of the value (0 = default ttl, negative = never expire)"))
	}
}
