package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/extract"
)

func newExtractCmd(st *cliState) *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "extract statement.pdf",
		Short: "Extract the entity document (or --text) from a local PDF with Gemini",
		Long: `extract sends a local statement PDF to Gemini and prints the entity
document as JSON, ready for "normalize", or with --text the statement text,
ready for "parse".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pdf, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			client, err := extract.New(cmd.Context(), st.cfg.Gemini.Model)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if text {
				body, err := client.ExtractText(cmd.Context(), pdf)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, body)
				return nil
			}

			doc, err := client.ExtractEntities(cmd.Context(), pdf)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "print the statement text instead of the entity document")
	return cmd
}
