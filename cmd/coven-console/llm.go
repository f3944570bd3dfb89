// ABOUTME: LLM configuration commands: list, add, update, remove, switch and reset
// ABOUTME: API keys are masked by the backend; pass --api-key - to type one without echo

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389/coven-console/internal/client"
)

func printLLMConfig(a *app, c *client.LLMConfig) {
	if a.emit(c) {
		return
	}
	cyan.Print(c.Name)
	if c.IsActive {
		green.Print(" (active)")
	}
	fmt.Println()
	fmt.Printf("  ID:          %s\n", c.ID)
	fmt.Printf("  Provider:    %s\n", c.Provider)
	fmt.Printf("  Model:       %s\n", c.Model)
	fmt.Printf("  Base URL:    %s\n", orDash(c.BaseURL))
	fmt.Printf("  API key:     %s\n", orDash(c.APIKey))
	fmt.Printf("  Temperature: %.2f\n", c.Temperature)
	fmt.Printf("  Max tokens:  %d\n", c.MaxTokens)
}

// llmFlags binds the flags shared by add and update
type llmFlags struct {
	in client.LLMConfigInput
}

func (f *llmFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&f.in.Provider, "provider", "", "provider, e.g. openai or anthropic")
	cmd.Flags().StringVar(&f.in.Model, "model", "", "model identifier")
	cmd.Flags().StringVar(&f.in.BaseURL, "base-url", "", "provider endpoint override")
	cmd.Flags().StringVar(&f.in.APIKey, "api-key", "", "provider API key, or - to prompt")
	cmd.Flags().Float64Var(&f.in.Temperature, "temperature", 0.7, "sampling temperature")
	cmd.Flags().IntVar(&f.in.MaxTokens, "max-tokens", 2048, "maximum reply tokens")
}

func (f *llmFlags) resolveKey() error {
	if f.in.APIKey != "-" {
		return nil
	}
	key, err := promptSecret("API key: ")
	if err != nil {
		return err
	}
	f.in.APIKey = key
	return nil
}

func llmCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Manage language model configurations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List LLM configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := a.client().ListLLMConfigs(cmd.Context())
			if err != nil {
				return err
			}
			if a.emit(configs) {
				return nil
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tNAME\tPROVIDER\tMODEL\tACTIVE")
			for _, c := range configs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Provider, c.Model, yesNo(c.IsActive))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "active",
		Short: "Show the active LLM configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client().ActiveLLMConfig(cmd.Context())
			if err != nil {
				return err
			}
			printLLMConfig(a, c)
			return nil
		},
	})

	var af llmFlags
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an LLM configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := af.resolveKey(); err != nil {
				return err
			}
			c, err := a.client().CreateLLMConfig(cmd.Context(), af.in)
			if err != nil {
				return err
			}
			printLLMConfig(a, c)
			return nil
		},
	}
	af.bind(add)
	cmd.AddCommand(add)

	var uf llmFlags
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an LLM configuration (omit --api-key to keep the stored key)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cur, err := findLLMConfig(cmd, a, args[0])
			if err != nil {
				return err
			}

			in := client.LLMConfigInput{
				Name:        cur.Name,
				Provider:    cur.Provider,
				Model:       cur.Model,
				BaseURL:     cur.BaseURL,
				Temperature: cur.Temperature,
				MaxTokens:   cur.MaxTokens,
			}
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.Name = uf.in.Name
			}
			if flags.Changed("provider") {
				in.Provider = uf.in.Provider
			}
			if flags.Changed("model") {
				in.Model = uf.in.Model
			}
			if flags.Changed("base-url") {
				in.BaseURL = uf.in.BaseURL
			}
			if flags.Changed("temperature") {
				in.Temperature = uf.in.Temperature
			}
			if flags.Changed("max-tokens") {
				in.MaxTokens = uf.in.MaxTokens
			}
			if flags.Changed("api-key") {
				if err := uf.resolveKey(); err != nil {
					return err
				}
				in.APIKey = uf.in.APIKey
			}

			c, err := a.client().UpdateLLMConfig(ctx, args[0], in)
			if err != nil {
				return err
			}
			printLLMConfig(a, c)
			return nil
		},
	}
	uf.bind(update)
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an LLM configuration (not the active one)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteLLMConfig(cmd.Context(), args[0]); err != nil {
				return err
			}
			green.Println("✓ LLM configuration removed")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "switch <id>",
		Short: "Make an LLM configuration active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client().ActivateLLMConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.emit(c) {
				return nil
			}
			green.Print("✓ ")
			fmt.Printf("Now using %s (%s/%s)\n", c.Name, c.Provider, c.Model)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the built-in LLM configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().ResetLLMConfigs(cmd.Context()); err != nil {
				return err
			}
			green.Println("✓ LLM configurations reset")
			return nil
		},
	})

	return cmd
}

// findLLMConfig looks an id up in the list; the API has no single-config read.
func findLLMConfig(cmd *cobra.Command, a *app, id string) (*client.LLMConfig, error) {
	configs, err := a.client().ListLLMConfigs(cmd.Context())
	if err != nil {
		return nil, err
	}
	for i := range configs {
		if configs[i].ID == id {
			return &configs[i], nil
		}
	}
	return nil, fmt.Errorf("no LLM configuration with id %s", id)
}
