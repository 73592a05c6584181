package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/marcelsud/webhook-sink/capture"
	"github.com/marcelsud/webhook-sink/config"
	"github.com/marcelsud/webhook-sink/presets"
	"github.com/marcelsud/webhook-sink/store"
	"github.com/marcelsud/webhook-sink/store/redis"
	"github.com/marcelsud/webhook-sink/token"
	"github.com/spf13/cobra"
)

// app is the wiring shared by every command, built once in PersistentPreRunE
type app struct {
	tokens   *token.Service
	captures *capture.Service
	presets  *presets.Loader
	close    func() error
}

var current app

var rootCmd = &cobra.Command{
	Use:   "webhook-sink",
	Short: "Operator CLI for the webhook sink store",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.GetConfig()
		if err != nil {
			return err
		}
		client, err := redis.NewClient(redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Timeout:  cfg.StoreTimeout(),
		})
		if err != nil {
			return err
		}

		loader := presets.NewLoader()
		if cfg.PresetsFile != "" {
			if err := loader.Load(cfg.PresetsFile); err != nil {
				client.Close()
				return err
			}
		}

		keys := store.NewKeyspace(cfg.KeyPrefix)
		tokenRepo := redis.NewTokenRepository(client, keys)
		captures := capture.NewService(redis.NewCaptureRepository(client, keys), tokenRepo)
		current = app{
			tokens:   token.NewService(tokenRepo, captures, token.WithTTL(cfg.TokenTTL())),
			captures: captures,
			presets:  loader,
			close:    client.Close,
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current.close != nil {
			return current.close()
		}
		return nil
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Manage webhook tokens",
}

var tokensListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live tokens, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		all, err := current.tokens.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOKEN\tNAME\tCREATED\tSTATUS\tTYPE")
		for _, t := range all {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				t.ID, t.DisplayName(), t.CreatedAt.UTC().Format(time.RFC3339),
				t.Config.StatusCode, t.Config.BodyKind)
		}
		return w.Flush()
	},
}

var (
	createName   string
	createPreset string
)

var tokensCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []token.CreateOption
		if createName != "" {
			opts = append(opts, token.WithName(createName))
		}
		if createPreset != "" {
			preset, err := current.presets.Get(createPreset)
			if err != nil {
				return err
			}
			opts = append(opts, token.WithConfig(preset.Config))
		}
		t, err := current.tokens.Create(cmd.Context(), opts...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.ID, t.Name)
		return nil
	},
}

var tokensShowCmd = &cobra.Command{
	Use:   "show <token>",
	Short: "Show a token, its response config and remaining lifetime",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		t, err := current.tokens.Get(ctx, args[0])
		if err != nil {
			return err
		}
		ttl, err := current.tokens.TTL(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Token:    %s\n", t.ID)
		fmt.Fprintf(out, "Name:     %s\n", t.DisplayName())
		fmt.Fprintf(out, "Created:  %s\n", t.CreatedAt.UTC().Format(time.RFC3339))
		if ttl == token.NoExpiry {
			fmt.Fprintf(out, "Expires:  never\n")
		} else {
			fmt.Fprintf(out, "Expires:  in %s\n", ttl.Round(time.Second))
		}
		fmt.Fprintf(out, "Status:   %d\n", t.Config.StatusCode)
		fmt.Fprintf(out, "Type:     %s\n", t.Config.BodyKind)
		fmt.Fprintf(out, "Body:     %s\n", t.Config.Body)
		for _, h := range t.Config.Headers {
			fmt.Fprintf(out, "Header:   %s: %s\n", h.Key, h.Value)
		}
		return nil
	},
}

var tokensRenameCmd = &cobra.Command{
	Use:   "rename <token> <name>",
	Short: "Rename a token without touching its lifetime",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := current.tokens.Rename(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.ID, t.Name)
		return nil
	},
}

var tokensDeleteCmd = &cobra.Command{
	Use:   "delete <token>",
	Short: "Delete a token and its captured requests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.tokens.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var requestsLimit int

var requestsCmd = &cobra.Command{
	Use:   "requests <token>",
	Short: "List captured requests of a token, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := current.tokens.Get(ctx, args[0]); err != nil {
			return err
		}
		all, err := current.captures.List(ctx, args[0])
		if err != nil {
			return err
		}
		if requestsLimit > 0 && len(all) > requestsLimit {
			all = all[:requestsLimit]
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRECEIVED\tMETHOD\tPATH\tBODY\tSIZE\tREPLIED")
		for _, c := range all {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
				c.ID, c.ReceivedAt.UTC().Format(time.RFC3339Nano), c.Method, c.Path,
				c.Body.Kind, c.Size, c.RespondedWith.Status)
		}
		return w.Flush()
	},
}

func init() {
	tokensCreateCmd.Flags().StringVar(&createName, "name", "", "token name (default: generated)")
	tokensCreateCmd.Flags().StringVar(&createPreset, "preset", "", "response preset to start from")
	requestsCmd.Flags().IntVar(&requestsLimit, "limit", 0, "show at most this many requests (0 = all)")

	tokensCmd.AddCommand(tokensListCmd, tokensCreateCmd, tokensShowCmd, tokensRenameCmd, tokensDeleteCmd)
	rootCmd.AddCommand(tokensCmd, requestsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
