package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/xlsxexport"
)

func newExportXLSXCmd(st *cliState) *cobra.Command {
	var (
		in     inputFlags
		out    string
		sheet  string
		hashes bool
	)
	cmd := &cobra.Command{
		Use:   "export-xlsx [statement] --out ledger.xlsx",
		Short: "Write transactions to an Excel workbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("--out is required")
			}
			txs, err := loadTransactions(cmd, argOrEmpty(args), in)
			if err != nil {
				return err
			}
			if err := xlsxexport.WriteFile(out, txs, xlsxexport.Options{SheetName: sheet, WithHashes: hashes}); err != nil {
				return err
			}
			log := logger.FromContext(cmd.Context())
			log.Info().
				Int("transactions", len(domain.Exportable(txs))).
				Str("out", out).
				Msg("workbook written")
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "workbook path")
	cmd.Flags().StringVar(&sheet, "sheet", xlsxexport.DefaultSheet, "transactions sheet name")
	cmd.Flags().BoolVar(&hashes, "with-hashes", true, "add the hidden Hashes sheet")
	return cmd
}
