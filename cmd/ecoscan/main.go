package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/zen-systems/ecoscan/pkg/adapter"
	"github.com/zen-systems/ecoscan/pkg/config"
	"github.com/zen-systems/ecoscan/pkg/credential"
	"github.com/zen-systems/ecoscan/pkg/fallback"
	"github.com/zen-systems/ecoscan/pkg/history"
	"github.com/zen-systems/ecoscan/pkg/logging"
	"github.com/zen-systems/ecoscan/pkg/product"
	"github.com/zen-systems/ecoscan/pkg/schema"
	"github.com/zen-systems/ecoscan/pkg/task"
)

var (
	configFile string
	logLevel   string
	jsonOutput bool
	verbose    bool
	dryRun     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ecoscan",
		Short: "Product health and sustainability analysis from a barcode",
		Long: `Ecoscan looks up a product by barcode, asks an LLM for a health and
	sustainability assessment, and keeps a local history of scans.

	Requests go to the configured models in order. Quota and availability
	failures move on to the next model, and a terminal provider is tried
	once when every model is exhausted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default ~/.ecoscan/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print the attempt report for each request")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "answer with canned responses instead of calling providers")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(tipCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(keysCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles what commands need after configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	keys   map[string]*credential.Store
}

func loadApp() (*app, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, err := logging.New(logging.Config{Level: level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	return newApp(cfg, logger), nil
}

// newApp opens a key store per provider. A key selected in the keyring wins
// over the environment and the config file, which serve as the fallback.
func newApp(cfg *config.Config, logger *log.Logger) *app {
	a := &app{cfg: cfg, logger: logger, keys: make(map[string]*credential.Store)}
	for _, name := range config.Providers {
		a.keys[name] = credential.NewStore(name,
			credential.WithFallbackKey(cfg.APIKey(name)),
			credential.WithLogger(logger),
		)
	}
	return a
}

// apiKey returns the active key for provider, or "" when none is available.
func (a *app) apiKey(ctx context.Context, provider string) string {
	store, ok := a.keys[provider]
	if !ok {
		return ""
	}
	key, err := store.APIKey(ctx)
	if err != nil {
		a.logger.Debug("no API key", "provider", provider, "err", err)
		return ""
	}
	return key
}

// keySource reports where provider's key comes from.
func (a *app) keySource(provider string) string {
	if store, ok := a.keys[provider]; ok {
		if keys, _, err := store.List(); err == nil && len(keys) > 0 {
			return "keyring"
		}
	}
	if a.cfg.HasAdapter(provider) {
		return "env/config"
	}
	return "no key"
}

// createAdapters builds the adapters the routing section refers to, skipping
// those without a key. Their candidates are then skipped during a run.
func (a *app) createAdapters(ctx context.Context) (map[string]adapter.Adapter, error) {
	adapters := make(map[string]adapter.Adapter)

	for _, name := range a.cfg.Routing.Adapters() {
		key := a.apiKey(ctx, name)
		if key == "" {
			a.logger.Debug("adapter not configured", "adapter", name)
			continue
		}

		var (
			impl adapter.Adapter
			err  error
		)
		switch name {
		case "google":
			impl, err = adapter.NewGoogleAdapter(a.keys[name])
		case "deepseek":
			impl, err = adapter.NewDeepSeekAdapter(key)
		case "openai":
			impl, err = adapter.NewOpenAIAdapter(key)
		case "anthropic":
			impl, err = adapter.NewAnthropicAdapter(key)
		default:
			return nil, fmt.Errorf("unknown adapter %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create %s adapter: %w", name, err)
		}
		adapters[name] = impl
	}

	return adapters, nil
}

// mockAdapters answers every routed model with content, for --dry-run.
func (a *app) mockAdapters(content string) map[string]adapter.Adapter {
	adapters := make(map[string]adapter.Adapter)
	fb := a.cfg.Routing.FallbackConfig()
	targets := fb.Candidates
	if fb.Terminal != nil {
		targets = append(targets, *fb.Terminal)
	}
	for _, c := range targets {
		m, ok := adapters[c.Provider].(*adapter.MockAdapter)
		if !ok {
			m = adapter.NewNamedMockAdapter(c.Provider)
			adapters[c.Provider] = m
		}
		m.Respond(c.Model, content)
	}
	return adapters
}

func (a *app) service(ctx context.Context, dryRunContent string) (*task.Service, error) {
	var adapters map[string]adapter.Adapter
	if dryRun {
		adapters = a.mockAdapters(dryRunContent)
	} else {
		var err error
		adapters, err = a.createAdapters(ctx)
		if err != nil {
			return nil, err
		}
		if len(adapters) == 0 {
			return nil, fmt.Errorf("no API keys configured; set GEMINI_API_KEY or run 'ecoscan keys add google <key>'")
		}
	}

	orch, err := fallback.New(adapters, a.cfg.Routing.FallbackConfig(),
		fallback.WithLogger(a.logger),
		fallback.WithProviderSelector("google", a.keys["google"]),
	)
	if err != nil {
		return nil, err
	}

	opts := []task.Option{task.WithLogger(a.logger)}
	if verbose {
		opts = append(opts, task.WithObserver(printReport))
	}
	return task.NewService(orch, opts...), nil
}

func (a *app) openHistory() (*history.Store, error) {
	return history.Open(a.cfg.History.Path, history.WithLimit(a.cfg.History.Limit))
}

// userError logs the raw error and returns the message safe to show.
func (a *app) userError(err error) error {
	a.logger.Debug("request failed", "err", err)
	return errors.New(task.UserMessage(err))
}

const dryRunAnalysis = `{"healthInsight":"Dry run: no provider was called.","sustainabilityInsight":"Dry run: no provider was called.","healthScore":50,"ecoScore":50}`

func analyzeCmd() *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:   "analyze [barcode]",
		Short: "Look up a product and analyze it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp()
			if err != nil {
				return err
			}

			lookup := product.NewClient(
				product.WithBaseURL(a.cfg.Lookup.BaseURL),
				product.WithUserAgent(a.cfg.Lookup.UserAgent),
				product.WithHTTPClient(&http.Client{Timeout: a.cfg.Lookup.Timeout}),
				product.WithLogger(a.logger),
			)
			p, err := lookup.Lookup(ctx, args[0])
			if err != nil {
				return a.userError(err)
			}

			svc, err := a.service(ctx, dryRunAnalysis)
			if err != nil {
				return err
			}

			var store *history.Store
			if !noSave {
				if store, err = a.openHistory(); err != nil {
					return err
				}
				defer store.Close()
				if _, err := store.Add(ctx, *p, nil); err != nil {
					a.logger.Warn("failed to save scan", "barcode", p.Barcode, "err", err)
				}
			}

			analysis, err := svc.AnalyzeProduct(ctx, *p)
			if err != nil {
				printProduct(os.Stdout, p, nil)
				return a.userError(err)
			}

			if store != nil {
				if _, err := store.Add(ctx, *p, analysis); err != nil {
					a.logger.Warn("failed to save analysis", "barcode", p.Barcode, "err", err)
				}
			}

			if jsonOutput {
				return printJSON(history.Entry{Product: *p, Analysis: analysis, ScannedAt: p.ScannedAt})
			}
			printProduct(os.Stdout, p, analysis)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the scan in history")
	return cmd
}

func tipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tip",
		Short: "Print an eco-friendly shopping tip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context(), "Dry run: carry a reusable bag.")
			if err != nil {
				return err
			}

			tip, err := svc.QuickTip(cmd.Context())
			if err != nil {
				return a.userError(err)
			}
			if jsonOutput {
				return printJSON(map[string]string{"tip": tip})
			}
			fmt.Println(tip)
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	var contextFlag string
	var barcodeFlag string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the eco assistant a question",
		Long: `Sends a single message when one is given, otherwise reads messages
	from stdin line by line until EOF.

	Use --barcode to give the assistant the context of a product in your
	history, or --context to pass free text.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp()
			if err != nil {
				return err
			}
			svc, err := a.service(ctx, "Dry run reply.")
			if err != nil {
				return err
			}

			viewing := contextFlag
			if barcodeFlag != "" {
				store, err := a.openHistory()
				if err != nil {
					return err
				}
				entry, err := store.Get(ctx, barcodeFlag)
				store.Close()
				if err != nil {
					return err
				}
				viewing = strings.TrimSpace(task.ProductContext(entry.Product) + " " + viewing)
			}

			if len(args) > 0 {
				reply, err := svc.Chat(ctx, []task.Message{{Role: task.RoleUser, Text: strings.Join(args, " ")}}, viewing)
				if err != nil {
					return a.userError(err)
				}
				fmt.Println(reply)
				return nil
			}
			return chatLoop(ctx, a, svc, viewing, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&contextFlag, "context", "", "context for the assistant, e.g. the product being viewed")
	cmd.Flags().StringVar(&barcodeFlag, "barcode", "", "use a product from history as context")
	return cmd
}

func printReport(r *fallback.Report) {
	w := tabwriter.NewWriter(os.Stderr, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RUN %s\t%s\n", r.RunID, r.Task)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tRESULT\tLATENCY")
	for _, at := range r.Attempts {
		result := "ok"
		if at.Error != "" {
			result = at.Class
		}
		if at.Skipped {
			result = "skipped"
		}
		model := at.Model
		if at.Terminal {
			model += " (terminal)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", at.Provider, model, result, at.Latency.Round(time.Millisecond))
	}
	w.Flush()
}

func printProduct(w io.Writer, p *product.Product, analysis *schema.AnalysisResult) {
	fmt.Fprintf(w, "%s (%s)\n", p.Name, p.Brand)
	fmt.Fprintf(w, "Barcode: %s  Nutri-Score: %s  Eco-Score: %s\n", p.Barcode, p.HealthGrade, p.EcoGrade)
	if len(p.Ingredients) > 0 {
		fmt.Fprintf(w, "Ingredients: %s\n", strings.Join(p.Ingredients, ", "))
	}
	if analysis == nil {
		return
	}

	fmt.Fprintf(w, "\nHealth score: %.0f/100\n%s\n", analysis.HealthScore, analysis.HealthInsight)
	fmt.Fprintf(w, "\nEco score: %.0f/100\n%s\n", analysis.EcoScore, analysis.SustainabilityInsight)
	if analysis.Alternative != nil {
		fmt.Fprintf(w, "\nTry instead: %s - %s\n", analysis.Alternative.Name, analysis.Alternative.Reason)
	}
	if len(analysis.ConcerningIngredients) > 0 {
		fmt.Fprintln(w, "\nConcerning ingredients:")
		for _, s := range analysis.ConcerningIngredients {
			fmt.Fprintf(w, "  - %s: %s\n", s.Name, s.Reason)
		}
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
