package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newPluginCmd() *cobra.Command {
	var name, action string
	var actionArgs []string
	cmd := &cobra.Command{
		Use:   "plugin --name <plugin> --action <action> [--args a,b] [-- args...]",
		Short: "Run a plugin action",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(runtimeOptions{out: cmd.OutOrStdout(), discover: true})
			if err != nil {
				return err
			}
			defer rt.close()
			return runAction(rt, name, action, append(actionArgs, args...))
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "plugin name")
	cmd.Flags().StringVarP(&action, "action", "a", "", "action to perform")
	cmd.Flags().StringSliceVar(&actionArgs, "args", nil, "action arguments")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func runAction(rt *pluginRuntime, name, action string, args []string) error {
	resp, err := rt.manager.Action(name, action, args)
	if err != nil {
		return err
	}
	if !resp.Success {
		if resp.Error == "" {
			return fmt.Errorf("%s: action %q failed", name, action)
		}
		return errors.New(resp.Error)
	}
	return nil
}
