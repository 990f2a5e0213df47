package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cloverfin/clover/internal/model"
	"github.com/cloverfin/clover/internal/recorder"
	"github.com/cloverfin/clover/internal/service"
)

func correctionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "corrections",
		Aliases: []string{"correction"},
		Short:   "Record and inspect category corrections",
		Long: `Corrections are the learning signal: every time a transaction's
category is fixed by hand, record it here and clover will mine the log
for patterns worth turning into rules.`,
	}

	cmd.AddCommand(correctionsRecordCmd())
	cmd.AddCommand(correctionsImportCmd())
	cmd.AddCommand(correctionsListCmd())

	return cmd
}

func correctionsRecordCmd() *cobra.Command {
	var (
		description string
		category    string
		original    int64
		source      string
		session     string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one category correction",
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

			input := recorder.Input{
				Description:         description,
				CorrectedCategoryID: categoryID,
			}
			if original > 0 {
				input.OriginalCategoryID = &original
			}
			if source != "" {
				src := model.CorrectionSource(source)
				if !model.ValidCorrectionSource(src) {
					return fmt.Errorf("unknown source %q", source)
				}
				input.OriginalSource = &src
			}
			if session != "" {
				input.ImportSessionID = &session
			}

			rec := recorder.New(store, recorder.Options{})
			defer rec.Close()

			id := rec.Record(ctx, input)
			if id == "" {
				return fmt.Errorf("correction was not recorded")
			}
			if err := rec.Flush(ctx); err != nil {
				return err
			}

			fmt.Printf("Recorded correction %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "t", "", "transaction description text (required)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "corrected category name or ID (required)")
	cmd.Flags().Int64Var(&original, "original-category", 0, "category the engine originally assigned")
	cmd.Flags().StringVar(&source, "source", "", "engine match source (exact-rule, pattern-rule, similarity, ai-assisted, none)")
	cmd.Flags().StringVar(&session, "session", "", "import session grouping key")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

// correctionFile is one entry of a corrections import file.
type correctionFile struct {
	OriginalCategoryID  *int64  `json:"original_category_id,omitempty"`
	OriginalSource      *string `json:"original_source,omitempty"`
	ImportSessionID     *string `json:"import_session_id,omitempty"`
	Description         string  `json:"description"`
	CorrectedCategoryID int64   `json:"corrected_category_id"`
}

func correctionsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Bulk-record corrections from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var entries []correctionFile
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}
			if len(entries) == 0 {
				fmt.Println("Nothing to import")
				return nil
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rec := recorder.New(store, recorder.Options{})
			defer rec.Close()

			bar := progressbar.NewOptions(len(entries),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Recording corrections..."),
			)

			var result service.BatchResult
			for _, entry := range entries {
				input := recorder.Input{
					Description:         entry.Description,
					OriginalCategoryID:  entry.OriginalCategoryID,
					CorrectedCategoryID: entry.CorrectedCategoryID,
					ImportSessionID:     entry.ImportSessionID,
				}
				if entry.OriginalSource != nil {
					src := model.CorrectionSource(*entry.OriginalSource)
					input.OriginalSource = &src
				}
				batch := rec.RecordBatch(ctx, []recorder.Input{input})
				result.Recorded += batch.Recorded
				result.Failed += batch.Failed
				_ = bar.Add(1)
			}
			_, _ = fmt.Fprintln(os.Stderr)

			fmt.Printf("Recorded %d corrections, %d failed\n", result.Recorded, result.Failed)
			return nil
		},
	}
}

func correctionsListCmd() *cobra.Command {
	var (
		limit int
		days  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent corrections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			since := time.Now().UTC().AddDate(0, 0, -days)
			corrections, err := store.GetRecentCorrections(ctx, since, limit)
			if err != nil {
				return fmt.Errorf("failed to get corrections: %w", err)
			}

			if len(corrections) == 0 {
				fmt.Println("No corrections recorded in this window")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "WHEN\tDESCRIPTION\tCATEGORY\tSOURCE\tRULE")
			for _, c := range corrections {
				source := "-"
				if c.OriginalSource != nil {
					source = string(*c.OriginalSource)
				}
				rule := "-"
				if c.CreatedRuleID != nil {
					rule = fmt.Sprintf("#%d", *c.CreatedRuleID)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					c.CreatedAt.Format("2006-01-02 15:04"), c.Description,
					c.CorrectedCategoryID, source, rule)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum corrections to show")
	cmd.Flags().IntVar(&days, "days", 90, "window in days")

	return cmd
}

// resolveCategory accepts a category name or numeric ID and returns the ID.
func resolveCategory(ctx context.Context, store service.CategoryStore, ref string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(ref, "%d", &id); err == nil && id > 0 {
		cat, err := store.GetCategoryByID(ctx, id)
		if err != nil {
			return 0, err
		}
		if cat == nil {
			return 0, fmt.Errorf("category %d not found", id)
		}
		return cat.ID, nil
	}

	cat, err := store.GetCategoryByName(ctx, ref)
	if err != nil {
		return 0, err
	}
	if cat == nil {
		return 0, fmt.Errorf("category %q not found", ref)
	}
	return cat.ID, nil
}
