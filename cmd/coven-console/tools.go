// ABOUTME: Tool commands: custom RAG tools, the combined tool catalog and MCP servers
// ABOUTME: Updates overlay only the flags given on top of the current definition

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/coven-console/internal/client"
)

func printRAGTool(a *app, t *client.CustomRAGTool) {
	if a.emit(t) {
		return
	}
	cyan.Println(t.Name)
	fmt.Printf("  ID:          %s\n", t.ID)
	fmt.Printf("  Description: %s\n", orDash(t.Description))
	fmt.Printf("  Collections: %s\n", orDash(strings.Join(t.CollectionIDs, ", ")))
	fmt.Printf("  Top K:       %d\n", t.TopK)
	fmt.Printf("  State:       %s\n", enabled(t.Enabled))
}

// ragToolFlags binds the flags shared by create and update
type ragToolFlags struct {
	description string
	collections []string
	topK        int
	disabled    bool
}

func (f *ragToolFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.description, "description", "", "what the tool searches")
	cmd.Flags().StringSliceVar(&f.collections, "collections", nil, "collection ids to search (comma separated)")
	cmd.Flags().IntVar(&f.topK, "top-k", 5, "number of passages returned")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "create or leave the tool disabled")
}

func (f *ragToolFlags) overlay(cmd *cobra.Command, in *client.RAGToolInput) {
	if cmd.Flags().Changed("description") {
		in.Description = f.description
	}
	if cmd.Flags().Changed("collections") {
		in.CollectionIDs = f.collections
	}
	if cmd.Flags().Changed("top-k") {
		in.TopK = f.topK
	}
	if cmd.Flags().Changed("disabled") {
		in.Enabled = !f.disabled
	}
}

func ragToolsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag-tools",
		Short: "Manage custom RAG search tools",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List custom RAG tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := a.client().ListRAGTools(cmd.Context())
			if err != nil {
				return err
			}
			if a.emit(tools) {
				return nil
			}
			if len(tools) == 0 {
				yellow.Println("No custom RAG tools.")
				return nil
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tNAME\tCOLLECTIONS\tTOP K\tSTATE")
			for _, t := range tools {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", t.ID, t.Name, len(t.CollectionIDs), t.TopK, enabled(t.Enabled))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one RAG tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.client().GetRAGTool(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRAGTool(a, t)
			return nil
		},
	})

	var cf ragToolFlags
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a RAG tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := client.RAGToolInput{
				Name:          args[0],
				Description:   cf.description,
				CollectionIDs: cf.collections,
				TopK:          cf.topK,
				Enabled:       !cf.disabled,
			}
			t, err := a.client().CreateRAGTool(cmd.Context(), in)
			if err != nil {
				return err
			}
			printRAGTool(a, t)
			return nil
		},
	}
	cf.bind(create)
	cmd.AddCommand(create)

	var uf ragToolFlags
	var newName string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a RAG tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cur, err := a.client().GetRAGTool(ctx, args[0])
			if err != nil {
				return err
			}
			in := client.RAGToolInput{
				Name:          cur.Name,
				Description:   cur.Description,
				CollectionIDs: cur.CollectionIDs,
				TopK:          cur.TopK,
				Enabled:       cur.Enabled,
			}
			if cmd.Flags().Changed("name") {
				in.Name = newName
			}
			uf.overlay(cmd, &in)

			t, err := a.client().UpdateRAGTool(ctx, args[0], in)
			if err != nil {
				return err
			}
			printRAGTool(a, t)
			return nil
		},
	}
	uf.bind(update)
	update.Flags().StringVar(&newName, "name", "", "new tool name")
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a RAG tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteRAGTool(cmd.Context(), args[0]); err != nil {
				return err
			}
			green.Println("✓ RAG tool deleted")
			return nil
		},
	})

	return cmd
}

func toolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List every tool available to the assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := a.client().ListTools(cmd.Context())
			if err != nil {
				return err
			}
			if a.emit(tools) {
				return nil
			}
			w := newTable()
			fmt.Fprintln(w, "NAME\tSOURCE\tSTATE\tDESCRIPTION")
			for _, t := range tools {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Source, enabled(t.Enabled), orDash(t.Description))
			}
			return w.Flush()
		},
	}
}

func printMCPServer(a *app, s *client.MCPServer) {
	if a.emit(s) {
		return
	}
	cyan.Println(s.Name)
	fmt.Printf("  Transport: %s\n", s.Transport)
	if s.Command != "" {
		fmt.Printf("  Command:   %s %s\n", s.Command, strings.Join(s.Args, " "))
	}
	if s.URL != "" {
		fmt.Printf("  URL:       %s\n", s.URL)
	}
	if len(s.Env) > 0 {
		keys := make([]string, 0, len(s.Env))
		for k := range s.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("  Env:       %s\n", strings.Join(keys, ", "))
	}
	fmt.Printf("  State:     %s\n", enabled(s.Enabled))
}

// mcpFlags binds the flags shared by add and update
type mcpFlags struct {
	command   string
	args      []string
	env       map[string]string
	url       string
	transport string
	disabled  bool
}

func (f *mcpFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.command, "command", "", "executable for stdio servers")
	cmd.Flags().StringSliceVar(&f.args, "args", nil, "command arguments (comma separated)")
	cmd.Flags().StringToStringVar(&f.env, "env", nil, "environment as KEY=VALUE pairs")
	cmd.Flags().StringVar(&f.url, "url", "", "endpoint for sse and http servers")
	cmd.Flags().StringVar(&f.transport, "transport", client.TransportStdio, "stdio, sse or http")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "add or leave the server disabled")
}

func (f *mcpFlags) overlay(cmd *cobra.Command, s *client.MCPServer) {
	if cmd.Flags().Changed("command") {
		s.Command = f.command
	}
	if cmd.Flags().Changed("args") {
		s.Args = f.args
	}
	if cmd.Flags().Changed("env") {
		s.Env = f.env
	}
	if cmd.Flags().Changed("url") {
		s.URL = f.url
	}
	if cmd.Flags().Changed("transport") {
		s.Transport = f.transport
	}
	if cmd.Flags().Changed("disabled") {
		s.Enabled = !f.disabled
	}
}

func mcpCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage MCP tool servers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			servers, err := a.client().ListMCPServers(cmd.Context())
			if err != nil {
				return err
			}
			if a.emit(servers) {
				return nil
			}
			if len(servers) == 0 {
				yellow.Println("No MCP servers.")
				return nil
			}
			w := newTable()
			fmt.Fprintln(w, "NAME\tTRANSPORT\tTARGET\tSTATE")
			for _, s := range servers {
				target := s.URL
				if s.Transport == client.TransportStdio {
					target = strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, s.Transport, orDash(target), enabled(s.Enabled))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show one MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client().GetMCPServer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMCPServer(a, s)
			return nil
		},
	})

	var af mcpFlags
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := client.MCPServer{
				Name:      args[0],
				Command:   af.command,
				Args:      af.args,
				Env:       af.env,
				URL:       af.url,
				Transport: af.transport,
				Enabled:   !af.disabled,
			}
			s, err := a.client().CreateMCPServer(cmd.Context(), in)
			if err != nil {
				return err
			}
			printMCPServer(a, s)
			return nil
		},
	}
	af.bind(add)
	cmd.AddCommand(add)

	var uf mcpFlags
	update := &cobra.Command{
		Use:   "update <name>",
		Short: "Change an MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cur, err := a.client().GetMCPServer(ctx, args[0])
			if err != nil {
				return err
			}
			uf.overlay(cmd, cur)
			s, err := a.client().UpdateMCPServer(ctx, args[0], *cur)
			if err != nil {
				return err
			}
			printMCPServer(a, s)
			return nil
		},
	}
	uf.bind(update)
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteMCPServer(cmd.Context(), args[0]); err != nil {
				return err
			}
			green.Println("✓ MCP server removed")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <name>",
		Short: "Enable or disable an MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client().ToggleMCPServer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.emit(s) {
				return nil
			}
			fmt.Printf("%s is now %s\n", s.Name, enabled(s.Enabled))
			return nil
		},
	})

	return cmd
}
