package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/dealmap/internal/features"
)

func newFilterCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "filter <selection>",
		Short: "Print the CQL filter for a country selection (nothing for the all sentinel)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.style()
			if err != nil {
				return err
			}
			if cql, ok := st.Filter.Build(args[0]); ok {
				fmt.Fprintln(cmd.OutOrStdout(), cql)
			}
			return nil
		},
	}
}

func newLegendCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "legend",
		Short: "Print the marker legend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.style()
			if err != nil {
				return err
			}
			for _, e := range st.Legend() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Color, e.Label)
			}
			return nil
		},
	}
}

func newRowsCmd(opts *rootOpts) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Render a deal's attributes read from stdin (properties object or FeatureCollection)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.style()
			if err != nil {
				return err
			}
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			props, err := readProperties(b)
			if err != nil {
				return err
			}
			rows := st.Formatter.RenderRows(props)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			for _, r := range rows {
				fmt.Fprintf(out, "%s: %s\n", r.Label, r.Value)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	return cmd
}

// readProperties accepts a FeatureCollection (first feature wins) or a bare
// properties object.
func readProperties(b []byte) (map[string]any, error) {
	var probe struct {
		Type any `json:"type"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if probe.Type != "FeatureCollection" {
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var props map[string]any
		if err := dec.Decode(&props); err != nil {
			return nil, fmt.Errorf("parse properties: %w", err)
		}
		return props, nil
	}
	props, ok, err := features.FirstProperties(b)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("feature collection is empty")
	}
	return props, nil
}
