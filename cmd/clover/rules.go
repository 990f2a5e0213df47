package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Inspect categorisation rules created from suggestions",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesDeactivateCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rules, err := store.GetActiveCategoryRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			if len(rules) == 0 {
				fmt.Println("No rules yet. Accept a suggestion to create one.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tPATTERN\tMATCH\tCATEGORY\tCONFIDENCE\tUSE COUNT")
			for _, rule := range rules {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.0f%%\t%d\n",
					rule.ID, rule.Pattern, rule.MatchType, rule.CategoryID,
					rule.Confidence*100, rule.UseCount)
			}
			return w.Flush()
		},
	}
}

func rulesDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a rule without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var id int64
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid rule ID %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeactivateCategoryRule(ctx, id); err != nil {
				return err
			}

			fmt.Printf("Deactivated rule #%d\n", id)
			return nil
		},
	}
}
