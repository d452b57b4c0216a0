package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"myGreenStorefront/business/personalization"
	"myGreenStorefront/domain"

	"github.com/spf13/cobra"
)

var errOperationFailed = errors.New("operation failed, see log output")

func newRecordCmd(opts *options, e *env) *cobra.Command {
	var (
		path     string
		pageType string
		meta     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a browsing event",
		Example: `  personalize -s abc record --path /products/42 --type product --meta productId=42
  personalize -s abc record --path /search --type search --meta searchTerm=kale`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata := make(map[string]any, len(meta))
			for k, v := range meta {
				metadata[k] = v
			}
			if !e.engine(opts).RecordEvent(cmd.Context(), path, domain.PageType(pageType), metadata) {
				return errOperationFailed
			}
			fmt.Fprintln(cmd.OutOrStdout(), "recorded")
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Page path")
	cmd.Flags().StringVarP(&pageType, "type", "t", string(domain.PageTypePage), "Page type: page, product, category or search")
	cmd.Flags().StringToStringVarP(&meta, "meta", "m", nil, "Event metadata as key=value pairs")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}

func newFeedbackCmd(opts *options, e *env) *cobra.Command {
	var notRelevant bool

	cmd := &cobra.Command{
		Use:     "feedback SECTION PRODUCT",
		Short:   "Mark a recommended product as relevant or not",
		Example: `  personalize -s abc feedback recommended 42 --not-relevant`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !e.engine(opts).RecordFeedback(cmd.Context(), args[0], args[1], !notRelevant) {
				return errOperationFailed
			}
			fmt.Fprintln(cmd.OutOrStdout(), "feedback recorded")
			return nil
		},
	}

	cmd.Flags().BoolVar(&notRelevant, "not-relevant", false, "Record negative feedback")
	return cmd
}

func newScoreCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "score PRODUCT...",
		Short: "Explain the relevance score of products",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := e.engine(opts)
			out := make([]domain.ScoreBreakdown, 0, len(args))
			for _, id := range args {
				out = append(out, svc.ExplainScore(cmd.Context(), id))
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newRecommendCmd(opts *options, e *env) *cobra.Command {
	var (
		n        int
		exclude  []string
		category string
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Pick recommendations from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.catalog == nil {
				return errNoCatalog
			}
			products, err := e.catalog.FindAll(cmd.Context())
			if err != nil {
				return err
			}
			if category != "" {
				filtered := products[:0]
				for _, p := range products {
					if strings.EqualFold(p.ProductCategory, category) {
						filtered = append(filtered, p)
					}
				}
				products = filtered
			}
			recs := e.engine(opts).SelectRecommendations(cmd.Context(), products, n, exclude)
			return printJSON(cmd.OutOrStdout(), recs)
		},
	}

	cmd.Flags().IntVarP(&n, "n", "n", 10, "Number of recommendations")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Product ids to leave out")
	cmd.Flags().StringVar(&category, "category", "", "Only recommend from this category")
	return cmd
}

func newSectionsCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sections",
		Short: "Build the homepage recommendation sections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.catalog == nil {
				return errNoCatalog
			}
			products, err := e.catalog.FindAll(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e.engine(opts).BuildSections(cmd.Context(), products))
		},
	}
}

func newProfileCmd(opts *options, e *env) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the personalization profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := e.engine(opts)
			if refresh && !svc.UpdatePersonalizationProfile(cmd.Context()) {
				return errOperationFailed
			}
			return printJSON(cmd.OutOrStdout(), svc.GetProfile(cmd.Context()))
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Recompute the profile first")
	return cmd
}

func newHistoryCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the browsing history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), e.engine(opts).History(cmd.Context()))
		},
	}
}

func newMetricsCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show per-section impression, click and feedback counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), e.engine(opts).GetMetrics(cmd.Context()))
		},
	}
}

func newSettingsCmd(opts *options, e *env) *cobra.Command {
	var patchJSON string

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or update the session settings",
		Example: `  personalize -s abc settings
  personalize -s abc settings --set '{"enabled":false}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := e.engine(opts)
			if patchJSON == "" {
				return printJSON(cmd.OutOrStdout(), svc.GetSettings(cmd.Context()))
			}

			var patch personalization.SettingsPatch
			dec := json.NewDecoder(strings.NewReader(patchJSON))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&patch); err != nil {
				return fmt.Errorf("invalid settings patch: %w", err)
			}
			cfg, err := svc.UpdateSettings(cmd.Context(), patch)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringVar(&patchJSON, "set", "", "JSON object with the settings to change")
	return cmd
}

func newClearCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every personalization key of the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !e.engine(opts).ClearPersonalizationData(cmd.Context()) {
				return errOperationFailed
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared session %s\n", opts.session)
			return nil
		},
	}
}

func newSessionsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions with stored state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scopes, err := e.provider.Scopes(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range scopes {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}
