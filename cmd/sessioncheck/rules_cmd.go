package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kx0101/sessioncheck/internal/cli"
	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/output"
	"github.com/kx0101/sessioncheck/internal/rules"
	"github.com/kx0101/sessioncheck/internal/ruleset"
)

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage validation rules",
	}

	cmd.AddCommand(newRulesListCmd(a))
	cmd.AddCommand(newRulesAddCmd(a))
	cmd.AddCommand(newRulesToggleCmd(a))
	cmd.AddCommand(newRulesDeleteCmd(a))
	cmd.AddCommand(newRulesSeedCmd(a))

	return cmd
}

func newRulesListCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, _, err := a.loadRuleSet(cmd.Context())
			if err != nil {
				return err
			}

			list := set.List()
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), map[string]any{"rules": list}); err != nil {
					return cli.Exit(cli.ExitRuntime, err)
				}
				return nil
			}

			_, err = io.WriteString(cmd.OutOrStdout(), formatRules(list))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print rules as JSON")

	return cmd
}

func formatRules(list []models.ValidationRule) string {
	if len(list) == 0 {
		return "No rules configured.\n"
	}

	rows := make([][]string, 0, len(list))
	for _, rule := range list {
		enabled := "no"
		if rule.Enabled {
			enabled = "yes"
		}

		rows = append(rows, []string{
			rule.ID,
			enabled,
			rule.Name,
			rule.Field,
			string(rule.Operator),
			string(rule.Condition),
			output.FormatValue(rule.Value),
		})
	}

	return output.FormatGrid([]string{"ID", "ENABLED", "NAME", "FIELD", "KIND", "CONDITION", "VALUE"}, rows)
}

func newRulesAddCmd(a *app) *cobra.Command {
	var (
		rule     models.ValidationRule
		operator string
		cond     string
		value    string
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a rule",
		Example: `  sessioncheck rules add --name "Min FPS" --field fps.min --condition ">=" --value 30
  sessioncheck rules add --field cpu.avg --condition between --value "[0, 80]"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rule.Operator = models.Kind(operator)
			rule.Condition = models.Condition(cond)
			rule.Enabled = !disabled

			if value != "" {
				parsed, err := parseValue(value)
				if err != nil {
					return cli.Exit(cli.ExitInvalid, err)
				}
				rule.Value = parsed
			}

			return a.mutateRules(cmd.Context(), cmd.OutOrStdout(), func(set *ruleset.Set) (string, error) {
				added, err := set.Add(rule)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Added rule %s (%s %s %s)\n", added.ID, added.Field, added.Condition, output.FormatValue(added.Value)), nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&rule.ID, "id", "", "rule id (generated when empty)")
	f.StringVar(&rule.Name, "name", "", "display name (defaults to the field)")
	f.StringVar(&rule.Field, "field", "", "field path, e.g. fps.min or device.cpu.cores")
	f.StringVar(&operator, "kind", "", "value kind: number, string, boolean, date (inferred from the field when empty)")
	f.StringVar(&cond, "condition", "", "condition, see `sessioncheck conditions`")
	f.StringVar(&value, "value", "", "expected value; YAML syntax, so [a, b] is a pair")
	f.StringVar(&rule.Description, "description", "", "free text description")
	f.BoolVar(&disabled, "disabled", false, "add the rule disabled")

	return cmd
}

// parseValue reads a flag value as a YAML scalar or flow sequence so numbers,
// booleans and [min, max] pairs keep their types.
func parseValue(raw string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", raw, err)
	}

	return v, nil
}

func newRulesToggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable or disable a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutateRules(cmd.Context(), cmd.OutOrStdout(), func(set *ruleset.Set) (string, error) {
				rule, err := set.Toggle(args[0])
				if err != nil {
					return "", err
				}

				state := "disabled"
				if rule.Enabled {
					state = "enabled"
				}
				return fmt.Sprintf("Rule %s %s\n", rule.ID, state), nil
			})
		},
	}
}

func newRulesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutateRules(cmd.Context(), cmd.OutOrStdout(), func(set *ruleset.Set) (string, error) {
				if err := set.Delete(args[0]); err != nil {
					return "", err
				}
				return fmt.Sprintf("Deleted rule %s\n", args[0]), nil
			})
		},
	}
}

func newRulesSeedCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the default rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rs, err := openRuleStoreFn(a.cfg.RulesPath)
			if err != nil {
				return cli.Exit(cli.ExitRuntime, err)
			}

			ctx := cmd.Context()
			existing, err := rs.Load(ctx)
			switch {
			case err == nil && len(existing) > 0 && !force:
				return cli.Exit(cli.ExitInvalid, fmt.Errorf("%s already has %d rules, use --force to overwrite", a.cfg.RulesPath, len(existing)))
			case err != nil && !errors.Is(err, fs.ErrNotExist) && !force:
				return cli.Exit(cli.ExitInvalid, err)
			}

			if err := rs.Save(ctx, ruleset.Defaults()); err != nil {
				return cli.Exit(cli.ExitRuntime, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d default rules to %s\n", len(ruleset.Defaults()), a.cfg.RulesPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing rules")

	return cmd
}

// mutateRules loads the rule set, applies fn and saves the result.
func (a *app) mutateRules(ctx context.Context, w io.Writer, fn func(*ruleset.Set) (string, error)) error {
	set, rs, err := a.loadRuleSet(ctx)
	if err != nil {
		return err
	}

	msg, err := fn(set)
	if err != nil {
		if errors.Is(err, ruleset.ErrNotFound) || errors.Is(err, models.ErrInvalidRule) {
			return cli.Exit(cli.ExitInvalid, err)
		}
		return cli.Exit(cli.ExitRuntime, err)
	}

	if err := rs.Save(ctx, set.List()); err != nil {
		return cli.Exit(cli.ExitRuntime, fmt.Errorf("saving rules: %w", err))
	}

	_, err = io.WriteString(w, msg)
	return err
}

func newConditionsCmd() *cobra.Command {
	var (
		kind  string
		field string
	)

	cmd := &cobra.Command{
		Use:   "conditions",
		Short: "List the conditions available for each value kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()

			kinds := rules.Kinds()
			switch {
			case field != "":
				inferred := rules.KindFor(field)
				fmt.Fprintf(w, "%s is a %s field\n", field, inferred)
				kinds = []models.Kind{inferred}
			case kind != "":
				k := models.Kind(strings.ToLower(kind))
				if !rules.IsValidKind(k) {
					return cli.Exit(cli.ExitInvalid, fmt.Errorf("unknown kind %q", kind))
				}
				kinds = []models.Kind{k}
			}

			rows := make([][]string, 0)
			for _, k := range kinds {
				for _, opt := range rules.ConditionsFor(k) {
					rows = append(rows, []string{string(k), string(opt.Condition), opt.Label})
				}
			}

			_, err := io.WriteString(w, output.FormatGrid([]string{"KIND", "CONDITION", "LABEL"}, rows))
			return err
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only this kind: number, string, boolean, date")
	cmd.Flags().StringVar(&field, "field", "", "infer the kind from this field path")

	return cmd
}
