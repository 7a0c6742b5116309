package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quailyquaily/auditdesk/internal/clifmt"
	"github.com/quailyquaily/auditdesk/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write the durable settings store",
	}
	cmd.AddCommand(newSettingsGetCmd())
	cmd.AddCommand(newSettingsSetCmd())
	cmd.AddCommand(newSettingsListCmd())
	cmd.AddCommand(newSettingsImportCmd())
	return cmd
}

func withSettingsStore(fn func(ctx context.Context, store settings.Writer) error) error {
	ctx := context.Background()
	store, closer, err := openSettingsStore(ctx)
	if err != nil {
		return err
	}
	defer closer()
	return fn(ctx, store)
}

func isSecretSetting(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "token") || strings.Contains(key, "api_key") || strings.Contains(key, "secret")
}

func displayValue(key, value string, reveal bool) string {
	if reveal || !isSecretSetting(key) || value == "" {
		return value
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

func newSettingsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a key (store first, then environment)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			reveal, _ := cmd.Flags().GetBool("reveal")
			return withSettingsStore(func(ctx context.Context, store settings.Writer) error {
				r := settings.NewResolver(settings.ResolverOptions{Store: store})
				v, ok := r.Get(ctx, key)
				if !ok {
					return fmt.Errorf("%s is not set (env %s)", key, settings.EnvName(key))
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), displayValue(key, v, reveal))
				return nil
			})
		},
	}
	cmd.Flags().Bool("reveal", false, "Print secret values unmasked.")
	return cmd
}

func newSettingsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a key to the store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, _ := cmd.Flags().GetString("description")
			entry := settings.Entry{Key: strings.TrimSpace(args[0]), Value: args[1], Description: desc}
			if entry.Key == "" {
				return fmt.Errorf("empty key")
			}
			return withSettingsStore(func(ctx context.Context, store settings.Writer) error {
				if err := store.Set(ctx, entry); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "set %s\n", entry.Key)
				return nil
			})
		},
	}
	cmd.Flags().String("description", "", "Optional note stored with the key.")
	return cmd
}

func newSettingsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			reveal, _ := cmd.Flags().GetBool("reveal")
			return withSettingsStore(func(ctx context.Context, store settings.Writer) error {
				entries, err := store.List(ctx)
				if err != nil {
					return err
				}
				rows := make([]clifmt.Row, 0, len(entries))
				for _, e := range entries {
					detail := displayValue(e.Key, e.Value, reveal)
					if d := strings.TrimSpace(e.Description); d != "" {
						detail += " (" + d + ")"
					}
					rows = append(rows, clifmt.Row{Name: e.Key, Detail: detail})
				}
				clifmt.PrintTable(cmd.OutOrStdout(), rows, clifmt.TableOptions{
					Title:        "Settings",
					NameHeader:   "KEY",
					DetailHeader: "VALUE",
					EmptyText:    "No keys stored; values come from the environment.",
				})
				return nil
			})
		},
	}
	cmd.Flags().Bool("reveal", false, "Print secret values unmasked.")
	return cmd
}

func newSettingsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Bulk-write keys from a YAML file",
		Long: "The file is either a list of {key, value, description} entries or a plain\n" +
			"mapping of key to value.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			entries, err := parseSettingsYAML(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return withSettingsStore(func(ctx context.Context, store settings.Writer) error {
				for _, e := range entries {
					if err := store.Set(ctx, e); err != nil {
						return fmt.Errorf("set %s: %w", e.Key, err)
					}
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d keys\n", len(entries))
				return nil
			})
		},
	}
}

func parseSettingsYAML(raw []byte) ([]settings.Entry, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	doc := node.Content[0]
	var entries []settings.Entry
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&entries); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var m map[string]string
		if err := doc.Decode(&m); err != nil {
			return nil, err
		}
		for k, v := range m {
			entries = append(entries, settings.Entry{Key: k, Value: v})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	default:
		return nil, fmt.Errorf("expected a list or a mapping")
	}
	out := entries[:0]
	for _, e := range entries {
		e.Key = strings.TrimSpace(e.Key)
		if e.Key == "" {
			return nil, fmt.Errorf("entry with empty key")
		}
		out = append(out, e)
	}
	return out, nil
}
