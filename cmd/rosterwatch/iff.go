package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"rosterwatch/internal/platform/metrics"
	"rosterwatch/pkg/domain"
)

func newIFFCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "iff <nation>",
		Short: "Classify one nation against the configured policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			client, err := newAPIClient(cfg, log, metrics.NewWithRegistry(prometheus.NewRegistry()))
			if err != nil {
				return wrapStartup("identify to the API", err)
			}
			region, err := homeRegion(ctx, cfg, client)
			if err != nil {
				return err
			}
			classifier, err := buildClassifier(ctx, cfg, region, client, log)
			if err != nil {
				return err
			}

			id := domain.Canonicalize(args[0])
			decision := classifier.Classify(id)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tengage=%t\n", id, decision.Classification, decision.Engage)
			return err
		},
	}
}
