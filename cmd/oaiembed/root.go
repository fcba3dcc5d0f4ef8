package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevemurr/oaiembed"
	"github.com/stevemurr/oaiembed/discovery"
	"github.com/stevemurr/oaiembed/tokenizer"
	"github.com/stevemurr/oaiembed/types"
)

const defaultModel = types.ModelTextEmbedding3Small

type app struct {
	envFile string
	verbose bool

	cfg    *Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "oaiembed",
		Short:         "oaiembed requests text embeddings from an OpenAI-compatible API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = setupLogger(a.verbose)
			slog.SetDefault(a.logger)

			cfg, err := LoadConfig(a.envFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(a.embedCmd(), a.tokensCmd(), a.discoverCmd(), a.modelsCmd())
	return root
}

// resolveModel picks the flag value, then OAIEMBED_MODEL, then the default.
func (a *app) resolveModel(flag string) (types.Model, error) {
	name := flag
	if name == "" {
		name = a.cfg.Model
	}
	if name == "" {
		return defaultModel, nil
	}
	return types.ParseModel(name)
}

func inputFromArgs(args []string) types.Input {
	if len(args) == 1 {
		return types.Text(args[0])
	}
	return types.Texts(args...)
}

func (a *app) embedCmd() *cobra.Command {
	var (
		model          string
		dimensions     int
		user           string
		encodingFormat string
		baseURL        string
		discover       bool
		timeout        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "embed [text...]",
		Short: "Embed one text, or several texts as a list input",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.resolveModel(model)
			if err != nil {
				return err
			}

			req := types.NewEmbeddingRequest(inputFromArgs(args), m)
			if cmd.Flags().Changed("dimensions") {
				req = req.WithDimensions(dimensions)
			} else if a.cfg.Dimensions > 0 {
				req = req.WithDimensions(a.cfg.Dimensions)
			}
			if cmd.Flags().Changed("user") {
				req = req.WithUser(user)
			}
			if encodingFormat != "" {
				req = req.WithEncodingFormat(types.EncodingFormat(encodingFormat))
			}

			baseURL = trimVersion(baseURL)
			if baseURL == "" {
				baseURL = a.cfg.BaseURL
			}
			if discover {
				d, err := discovery.NewDockerDiscoverer()
				if err != nil {
					return err
				}
				defer d.Close()

				ep, err := d.Lookup(cmd.Context(), string(m))
				if err != nil {
					return err
				}
				a.logger.Info("using discovered endpoint", "id", ep.ID, "url", ep.BaseURL)
				baseURL = ep.BaseURL.String()
			}

			if a.cfg.APIKey == "" && baseURL == "" {
				return errors.New("OPENAI_API_KEY is required for the default API host")
			}

			opts := []oaiembed.Option{
				oaiembed.WithLogger(a.logger),
				oaiembed.WithTimeout(timeout),
			}
			if baseURL != "" {
				opts = append(opts, oaiembed.WithBaseURL(baseURL))
			}
			if a.cfg.Organization != "" {
				opts = append(opts, oaiembed.WithOrganization(a.cfg.Organization))
			}

			client, err := oaiembed.NewClient(a.cfg.APIKey, opts...)
			if err != nil {
				return err
			}

			resp, err := client.Embeddings(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "embedding model (default "+string(defaultModel)+")")
	cmd.Flags().IntVar(&dimensions, "dimensions", 0, "number of output dimensions")
	cmd.Flags().StringVar(&user, "user", "", "end-user identifier")
	cmd.Flags().StringVar(&encodingFormat, "encoding-format", "", "float or base64 (default: server's choice)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL (default "+oaiembed.DefaultBaseURL+")")
	cmd.Flags().BoolVar(&discover, "discover", false, "use a Docker-discovered server for the model")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "request timeout")

	return cmd
}

func (a *app) tokensCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "tokens [text...]",
		Short: "Estimate the prompt tokens of an embeddings request locally",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.resolveModel(model)
			if err != nil {
				return err
			}

			n, err := tokenizer.New().CountRequest(types.NewEmbeddingRequest(inputFromArgs(args), m))
			if err != nil {
				return fmt.Errorf("failed to count tokens: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "embedding model (default "+string(defaultModel)+")")
	return cmd
}

func (a *app) discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List embedding servers found in labeled Docker containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := discovery.NewDockerDiscoverer()
			if err != nil {
				return err
			}
			defer d.Close()

			endpoints, err := d.Discover(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tURL\tMODEL")
			for _, ep := range endpoints {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ep.ID, ep.Type, ep.BaseURL, ep.Model)
			}
			return w.Flush()
		},
	}
}

func (a *app) modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported models and their default dimensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tDIMENSIONS")
			for _, m := range types.Models() {
				fmt.Fprintf(w, "%s\t%d\n", m, m.Dimensions())
			}
			return w.Flush()
		},
	}
}
