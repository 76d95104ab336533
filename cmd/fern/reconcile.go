package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/pkg/merging"
)

func newReconcileCommand(envFile *string) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Report organizations in the registry that score as the same entity",
		Long: "Scores every pair of stored organizations with the matching policy and prints the\n" +
			"resulting clusters as JSON. The registry is not modified.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			a, err := newApp(ctx, cfg, logger, db)
			if err != nil {
				return err
			}

			report, err := merging.NewReconciler(a.engine, logger).Reconcile(ctx, a.registry.All())
			if err != nil {
				return err
			}

			return writeTo(out, cmd.OutOrStdout(), func(w io.Writer) error {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "report file, - for stdout")
	return cmd
}
