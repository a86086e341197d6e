package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zen-systems/ecoscan/pkg/adapter"
	"github.com/zen-systems/ecoscan/pkg/config"
	"github.com/zen-systems/ecoscan/pkg/fallback"
)

// providerStatus is one row of the models listing.
type providerStatus struct {
	adapter.AdapterInfo
	Keys string `json:"keys"`
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List providers, their models and the fallback order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			fb := a.cfg.Routing.FallbackConfig()
			statuses, err := a.providerStatuses(fb)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]any{"providers": statuses, "routing": fb})
			}
			return printModels(os.Stdout, statuses, fb)
		},
	}
}

// providerStatuses describes every known provider against the routing.
func (a *app) providerStatuses(fb fallback.Config) ([]providerStatus, error) {
	routed := make(map[string][]string)
	targets := fb.Candidates
	if fb.Terminal != nil {
		targets = append(targets[:len(targets):len(targets)], *fb.Terminal)
	}
	for _, c := range targets {
		routed[c.Provider] = append(routed[c.Provider], c.Model)
	}

	var out []providerStatus
	for _, name := range config.Providers {
		impl, err := listingAdapter(name)
		if err != nil {
			return nil, err
		}
		out = append(out, providerStatus{
			AdapterInfo: adapter.Describe(impl, routed[name]...),
			Keys:        a.keySource(name),
		})
	}
	return out, nil
}

// listingAdapter builds an adapter only to read its model list.
func listingAdapter(name string) (adapter.Adapter, error) {
	const placeholder = "unused"
	switch name {
	case "google":
		return adapter.NewGoogleAdapter(adapter.StaticKey(placeholder))
	case "deepseek":
		return adapter.NewDeepSeekAdapter(placeholder)
	case "openai":
		return adapter.NewOpenAIAdapter(placeholder)
	case "anthropic":
		return adapter.NewAnthropicAdapter(placeholder)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

func printModels(out io.Writer, statuses []providerStatus, fb fallback.Config) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tKEYS\tMODELS")
	for _, s := range statuses {
		models := make([]string, 0, len(s.Models))
		for _, m := range s.Models {
			if m.Routed {
				models = append(models, m.ID+"*")
			} else {
				models = append(models, m.ID)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Keys, strings.Join(models, ", "))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "ORDER\tCANDIDATE\t")
	for i, c := range fb.Candidates {
		fmt.Fprintf(w, "%d\t%s\t\n", i+1, c)
	}
	if fb.Terminal != nil {
		fmt.Fprintf(w, "terminal\t%s\t\n", fb.Terminal)
	}
	fmt.Fprintf(w, "timeout\t%s\t\n", fb.AttemptTimeout)
	return w.Flush()
}
