package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cloverfin/clover/internal/model"
	"github.com/cloverfin/clover/internal/tui"
)

func suggestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "suggestions",
		Aliases: []string{"suggestion", "suggest"},
		Short:   "Review rule suggestions mined from your corrections",
	}

	cmd.AddCommand(suggestionsListCmd())
	cmd.AddCommand(suggestionsReviewCmd())
	cmd.AddCommand(suggestionsAcceptCmd())
	cmd.AddCommand(suggestionsDismissCmd())

	return cmd
}

func suggestionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current suggestions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			manager, err := initLifecycle(store)
			if err != nil {
				return err
			}
			if err := manager.Refresh(ctx); err != nil {
				return err
			}

			suggestions := manager.Suggestions()
			if len(suggestions) == 0 {
				fmt.Println("Nothing to suggest yet. Keep correcting categories and check back.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "PATTERN\tMATCH\tCATEGORY\tEVIDENCE\tCONFIDENCE")
			for _, s := range suggestions {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.0f%%\n",
					s.Pattern, s.MatchType, s.CategoryName,
					s.CorrectionCount, s.Confidence*100)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Printf("\n%d corrections in the analysis window\n", manager.TotalCorrections())
			return nil
		},
	}
}

func suggestionsReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Review suggestions interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			manager, err := initLifecycle(store)
			if err != nil {
				return err
			}

			program := tea.NewProgram(tui.NewReviewModel(ctx, manager))
			_, err = program.Run()
			return err
		},
	}
}

func suggestionsAcceptCmd() *cobra.Command {
	var (
		pattern  string
		category string
	)

	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Accept a suggestion, creating a categorisation rule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categoryID, err := resolveCategory(ctx, store, category)
			if err != nil {
				return err
			}

			// Rule creation is not idempotent, so refuse a repeat accept for
			// a pattern that already has an active rule.
			existing, err := store.FindCategoryRule(ctx, pattern, categoryID)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("rule #%d already covers %q for this category", existing.ID, pattern)
			}

			manager, err := initLifecycle(store)
			if err != nil {
				return err
			}
			if err := manager.Refresh(ctx); err != nil {
				return err
			}

			key := model.SuggestionKey{
				Pattern:    strings.ToLower(strings.TrimSpace(pattern)),
				CategoryID: categoryID,
			}
			rule, err := manager.Accept(ctx, key)
			if err != nil {
				return err
			}

			fmt.Printf("Created rule #%d: %q (%s) → category %d at %.0f%% confidence\n",
				rule.ID, rule.Pattern, rule.MatchType, rule.CategoryID, rule.Confidence*100)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "suggestion pattern (required)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "suggestion category name or ID (required)")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func suggestionsDismissCmd() *cobra.Command {
	var permanent bool

	cmd := &cobra.Command{
		Use:   "dismiss <pattern>",
		Short: "Dismiss a suggested pattern",
		Long: `Dismiss a suggestion for this run, or with --forever add the pattern to
the persisted blocklist so it is never suggested again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			pattern := strings.Join(args, " ")

			if !permanent {
				fmt.Printf("%q will simply reappear on the next fetch; use --forever to block it\n", pattern)
				return nil
			}

			dismissals, err := initDismissals()
			if err != nil {
				return err
			}
			if err := dismissals.Dismiss(pattern); err != nil {
				return err
			}

			fmt.Printf("Never suggesting %q again\n", pattern)
			return nil
		},
	}

	cmd.Flags().BoolVar(&permanent, "forever", false, "persist the dismissal across sessions")

	return cmd
}
