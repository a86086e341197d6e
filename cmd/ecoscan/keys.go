package main

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zen-systems/ecoscan/pkg/config"
	"github.com/zen-systems/ecoscan/pkg/credential"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys stored in the OS keyring",
		Long: `Keys are stored per provider in the OS keyring. When a Google model is
	not available to the active key, the next stored key is selected
	automatically.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [provider] [key]",
		Short: "Store an API key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkProvider(args[0]); err != nil {
				return err
			}
			if err := credential.NewStore(args[0]).Add(args[1]); err != nil {
				return err
			}
			fmt.Printf("Stored %s key %s\n", args[0], credential.MaskKey(args[1]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list [provider]",
		Short: "List stored keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.Providers
			if len(args) == 1 {
				if err := checkProvider(args[0]); err != nil {
					return err
				}
				names = args
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tINDEX\tKEY\tACTIVE")
			for _, name := range names {
				keys, active, err := credential.NewStore(name).List()
				if err != nil {
					return err
				}
				for i, k := range keys {
					mark := ""
					if i == active {
						mark = "*"
					}
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", name, i, credential.MaskKey(k), mark)
				}
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use [provider] [index]",
		Short: "Make a stored key active",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0], args[1])
			if err != nil {
				return err
			}
			return credential.NewStore(args[0]).Use(idx)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove [provider] [index]",
		Short: "Delete a stored key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0], args[1])
			if err != nil {
				return err
			}
			return credential.NewStore(args[0]).Remove(idx)
		},
	})

	return cmd
}

func checkProvider(name string) error {
	if !slices.Contains(config.Providers, name) {
		return fmt.Errorf("unknown provider %q (want one of %s)", name, strings.Join(config.Providers, ", "))
	}
	return nil
}

func parseIndex(provider, raw string) (int, error) {
	if err := checkProvider(provider); err != nil {
		return 0, err
	}
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid key index %q", raw)
	}
	return idx, nil
}
