package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/reconcile"
	"github.com/spf13/cobra"
)

var (
	surveyID    int64
	techniqueID int64
	ids         []int64
	inputPath   string
)

var getCmd = &cobra.Command{
	Use:       "get [sites|techniques|blocks|stratums]",
	Short:     "Print a survey read model as JSON",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"sites", "techniques", "blocks", "stratums"},
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		var (
			v   any
			err error
		)
		switch args[0] {
		case "sites":
			v, err = a.svc.GetSampleSites(ctx, surveyID, ids...)
		case "techniques":
			v, err = a.svc.GetTechniques(ctx, surveyID, ids...)
		case "blocks":
			v, err = a.svc.GetBlockDefinitions(ctx, surveyID)
		case "stratums":
			v, err = a.svc.GetStratumDefinitions(ctx, surveyID)
		}
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), v)
	}),
}

var syncCmd = &cobra.Command{
	Use:   "sync [site|blocks|stratums|attributes|observations]",
	Short: "Reconcile a desired state read from a JSON file",
	Long: `Reads the desired state from --file (or stdin with "-") and reconciles it:

  site          one sample site object with its methods, periods and memberships
  blocks        an array of block definitions (full replace)
  stratums      an array of stratum definitions (full replace)
  attributes    {"qualitative_attributes": [...], "quantitative_attributes": [...]}
                of the technique given by --technique
  observations  an array of observation rows (full replace)`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"site", "blocks", "stratums", "attributes", "observations"},
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		var (
			summary *reconcile.Summary
			err     error
		)
		switch args[0] {
		case "site":
			var desired models.SampleSite
			if err := readJSON(inputPath, &desired); err != nil {
				return err
			}
			summary, err = a.svc.SyncSite(ctx, surveyID, desired)
		case "blocks":
			var desired []models.BlockDefinition
			if err := readJSON(inputPath, &desired); err != nil {
				return err
			}
			summary, err = a.svc.SyncBlockDefinitions(ctx, surveyID, desired)
		case "stratums":
			var desired []models.StratumDefinition
			if err := readJSON(inputPath, &desired); err != nil {
				return err
			}
			summary, err = a.svc.SyncStratumDefinitions(ctx, surveyID, desired)
		case "attributes":
			if techniqueID == 0 {
				return fmt.Errorf("--technique is required")
			}
			var desired models.TechniqueAttributes
			if err := readJSON(inputPath, &desired); err != nil {
				return err
			}
			summary, err = a.svc.SyncTechniqueAttributes(ctx, surveyID, techniqueID, desired)
		case "observations":
			var rows []models.Observation
			if err := readJSON(inputPath, &rows); err != nil {
				return err
			}
			summary, err = a.svc.SyncObservations(ctx, surveyID, rows)
		}
		if err != nil {
			return err
		}
		return writeSummary(cmd.OutOrStdout(), summary)
	}),
}

var createSitesCmd = &cobra.Command{
	Use:   "create-sites",
	Short: "Create sites with their subtrees from a JSON array",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		var sites []models.SampleSite
		if err := readJSON(inputPath, &sites); err != nil {
			return err
		}
		created, summary, err := a.svc.CreateSites(ctx, surveyID, sites)
		if err != nil {
			return err
		}
		if err := writeJSON(cmd.OutOrStdout(), map[string]any{"survey_sample_site_ids": created}); err != nil {
			return err
		}
		return writeSummary(cmd.OutOrStdout(), summary)
	}),
}

var deleteSitesCmd = &cobra.Command{
	Use:   "delete-sites",
	Short: "Delete sites with their methods, periods and memberships",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		if len(ids) == 0 {
			return fmt.Errorf("--ids is required")
		}
		summary, err := a.svc.DeleteSites(ctx, surveyID, ids)
		if err != nil {
			return err
		}
		return writeSummary(cmd.OutOrStdout(), summary)
	}),
}

func init() {
	for _, cmd := range []*cobra.Command{getCmd, syncCmd, createSitesCmd, deleteSitesCmd} {
		cmd.Flags().Int64VarP(&surveyID, "survey", "s", 0, "Survey id")
		_ = cmd.MarkFlagRequired("survey")
	}
	getCmd.Flags().Int64SliceVar(&ids, "ids", nil, "Limit sites or techniques to these ids")
	deleteSitesCmd.Flags().Int64SliceVar(&ids, "ids", nil, "Site ids to delete")
	syncCmd.Flags().Int64Var(&techniqueID, "technique", 0, "Technique id, for attributes")
	for _, cmd := range []*cobra.Command{syncCmd, createSitesCmd} {
		cmd.Flags().StringVarP(&inputPath, "file", "f", "-", `Desired state JSON file, "-" for stdin`)
	}
}

// withApp opens the application around a command body
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), a, cmd, args)
	}
}

func readJSON(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open desired state: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode desired state: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSummary(w io.Writer, summary *reconcile.Summary) error {
	counts := make(map[models.Kind]reconcile.Counts)
	for _, kind := range summary.Kinds() {
		counts[kind] = summary.Get(kind)
	}
	return writeJSON(w, counts)
}
