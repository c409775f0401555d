package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/lla/internal/config"
)

func newShortcutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shortcut",
		Short: "Manage and run named plugin actions",
	}
	cmd.AddCommand(newShortcutListCmd(), newShortcutAddCmd(), newShortcutRemoveCmd(), newShortcutRunCmd())
	return cmd
}

func newShortcutListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List shortcuts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if len(cfg.Shortcuts) == 0 {
				fmt.Fprintln(out, "No shortcuts defined.")
				return
			}
			names := make([]string, 0, len(cfg.Shortcuts))
			for n := range cfg.Shortcuts {
				names = append(names, n)
			}
			slices.Sort(names)
			for _, n := range names {
				sc := cfg.Shortcuts[n]
				line := fmt.Sprintf("%s -> %s %s", n, sc.PluginName, sc.Action)
				if sc.Description != "" {
					line += "  # " + sc.Description
				}
				fmt.Fprintln(out, line)
			}
		},
	}
}

func newShortcutAddCmd() *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "add <name> <plugin> <action>",
		Short: "Add a shortcut",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				return err
			}
			entry := map[string]any{"plugin_name": args[1], "action": args[2]}
			if desc != "" {
				entry["description"] = desc
			}
			config.SetValueAtPath(raw, []string{"shortcuts", args[0]}, entry)
			if err := config.SaveRaw(paths.Config, raw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added shortcut %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&desc, "description", "", "what the shortcut does")
	return cmd
}

func newShortcutRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a shortcut",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				return err
			}
			if !config.UnsetValueAtPath(raw, []string{"shortcuts", args[0]}) {
				return fmt.Errorf("no shortcut named %q", args[0])
			}
			if err := config.SaveRaw(paths.Config, raw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed shortcut %s\n", args[0])
			return nil
		},
	}
}

func newShortcutRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name> [args...]",
		Short: "Run a shortcut",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, ok := cfg.Shortcuts[args[0]]
			if !ok {
				known := make([]string, 0, len(cfg.Shortcuts))
				for n := range cfg.Shortcuts {
					known = append(known, n)
				}
				slices.Sort(known)
				return fmt.Errorf("no shortcut named %q (have: %s)", args[0], strings.Join(known, ", "))
			}
			rt, err := openRuntime(runtimeOptions{out: cmd.OutOrStdout(), discover: true})
			if err != nil {
				return err
			}
			defer rt.close()
			return runAction(rt, sc.PluginName, sc.Action, args[1:])
		},
	}
}
