package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/phantomhand/internal/action"
	"github.com/ayusman/phantomhand/internal/store"
)

var (
	bindingParams   []string
	bindingDisabled bool
)

func newBindingsCmd() *cobra.Command {
	bindingsCmd := &cobra.Command{
		Use:   "bindings",
		Short: "Manage gesture to action bindings",
	}

	bindingsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List effective bindings",
		Args:  cobra.NoArgs,
		RunE:  runBindingsListCmd,
	})

	setCmd := &cobra.Command{
		Use:   "set <trigger> <action>",
		Short: "Bind a gesture or slide to an action",
		Long: "Bind a gesture (open, fist, pinch, point, victory, ok) or a slide " +
			"(slide_left, slide_right, slide_up, slide_down) to an action.\n" +
			"Actions: " + strings.Join(action.KnownActions(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: runBindingsSetCmd,
	}
	setCmd.Flags().StringArrayVar(&bindingParams, "param", nil, "action parameter as key=value (repeatable)")
	setCmd.Flags().BoolVar(&bindingDisabled, "disable", false, "store the binding disabled, removing the default for the trigger")
	bindingsCmd.AddCommand(setCmd)

	bindingsCmd.AddCommand(&cobra.Command{
		Use:   "delete <trigger>",
		Short: "Remove a stored binding, restoring the default",
		Args:  cobra.ExactArgs(1),
		RunE:  runBindingsDeleteCmd,
	})

	return bindingsCmd
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func runBindingsListCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	stored, err := st.Bindings().List()
	if err != nil {
		return fmt.Errorf("failed to list bindings: %w", err)
	}
	custom := make(map[string]bool, len(stored))
	for _, b := range stored {
		custom[b.Trigger] = true
	}

	merged := action.Merge(action.DefaultBindings(), stored)
	triggers := make([]string, 0, len(merged))
	for t := range merged {
		triggers = append(triggers, t)
	}
	sort.Strings(triggers)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIGGER\tACTION\tPARAMS\tSOURCE")
	for _, t := range triggers {
		b := merged[t]
		source := "default"
		if custom[t] {
			source = "stored"
		}
		params := ""
		if len(b.Params) > 0 {
			data, _ := json.Marshal(b.Params)
			params = string(data)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Trigger, b.Action, params, source)
	}
	return w.Flush()
}

// parseParams turns key=value pairs into params. Values that parse as JSON
// (numbers, booleans, arrays) keep their type; anything else is a string.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, want key=value", p)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		params[key] = v
	}
	return params, nil
}

func runBindingsSetCmd(cmd *cobra.Command, args []string) error {
	params, err := parseParams(bindingParams)
	if err != nil {
		return err
	}

	b := action.Binding{
		Trigger: args[0],
		Action:  args[1],
		Params:  params,
		Enabled: !bindingDisabled,
	}
	if err := b.Validate(); err != nil {
		return err
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Bindings().Put(&b); err != nil {
		return fmt.Errorf("failed to save binding: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", b.Trigger, b.Action)
	return nil
}

func runBindingsDeleteCmd(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	b, err := st.Bindings().GetByTrigger(args[0])
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no stored binding for %s", args[0])
	}
	if err != nil {
		return err
	}
	if err := st.Bindings().Delete(b.ID); err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}
