// Package cli implements the personalize operator command, which inspects
// and edits personalization state kept in a local BadgerDB.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"myGreenStorefront/business/personalization"
	"myGreenStorefront/internal/repository/badger"
	"myGreenStorefront/internal/repository/memory"
	"myGreenStorefront/pkg/logger"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
)

var errNoCatalog = errors.New("no catalog: pass --catalog FILE")

// options are the persistent flags shared by every subcommand.
type options struct {
	dataDir      string
	session      string
	catalogFile  string
	settingsFile string
	eligibility  string
	verbose      bool
}

// env is opened before a subcommand runs and closed after it.
type env struct {
	db       *badgerdb.DB
	provider *badger.Provider
	manager  *personalization.Manager
	catalog  *memory.Catalog
}

func (e *env) engine(opts *options) *personalization.Service {
	return e.manager.ForScope(opts.session)
}

// Execute runs the personalize command with args and always releases the
// database, including when the subcommand fails.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	e := &env{}
	defer func() { _ = e.close() }()

	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(e *env) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "personalize",
		Short: "Inspect and edit storefront personalization state",
		Long: `personalize runs the relevance engine against a local BadgerDB, one
session at a time. It records browsing events, scores products and
produces the same recommendations the storefront API would.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.open(opts, cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return e.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.dataDir, "data-dir", "d", "./personalize-data", "BadgerDB directory")
	pf.StringVarP(&opts.session, "session", "s", "default", "Session id to operate on")
	pf.StringVar(&opts.catalogFile, "catalog", "", "JSON product catalog used by recommend and sections")
	pf.StringVar(&opts.settingsFile, "settings", "", "YAML file with default engine settings")
	pf.StringVar(&opts.eligibility, "eligibility", "", "CEL rule a product must satisfy to be recommended")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine debug output to stderr")

	root.AddCommand(
		newRecordCmd(opts, e),
		newFeedbackCmd(opts, e),
		newScoreCmd(opts, e),
		newRecommendCmd(opts, e),
		newSectionsCmd(opts, e),
		newProfileCmd(opts, e),
		newHistoryCmd(opts, e),
		newMetricsCmd(opts, e),
		newSettingsCmd(opts, e),
		newClearCmd(opts, e),
		newSessionsCmd(e),
	)

	return root
}

func (e *env) open(opts *options, stderr io.Writer) error {
	level := "production"
	if opts.verbose {
		level = "development"
	}
	logger.InitWithWriter(level, stderr)

	defaults := personalization.DefaultSettings()
	if opts.settingsFile != "" {
		var err error
		if defaults, err = personalization.LoadSettingsFile(opts.settingsFile); err != nil {
			return err
		}
	}

	checker, err := personalization.NewEligibilityChecker(opts.eligibility)
	if err != nil {
		return err
	}

	if opts.catalogFile != "" {
		if e.catalog, err = memory.LoadCatalogFile(opts.catalogFile); err != nil {
			return err
		}
	}

	db, err := badger.Open(opts.dataDir)
	if err != nil {
		return err
	}

	e.db = db
	e.provider = badger.NewProvider(db)
	e.manager = personalization.NewManager(e.provider,
		personalization.WithDefaults(defaults),
		personalization.WithEligibilityChecker(checker),
	)
	return nil
}

func (e *env) close() error {
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	if err != nil {
		return fmt.Errorf("failed to close badger: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
