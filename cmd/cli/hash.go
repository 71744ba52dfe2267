package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/csvexport"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
)

func newHashCmd(st *cliState) *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "hash [statement]",
		Short: "Print the dedup hash of every exportable transaction",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := loadTransactions(cmd, argOrEmpty(args), in)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			seen := make(map[dedup.Hash]struct{})
			for _, tx := range domain.Exportable(txs) {
				h := dedup.HashTransaction(tx)
				mark := ""
				if _, dup := seen[h]; dup {
					mark = "duplicate"
				}
				seen[h] = struct{}{}
				amount, _ := csvexport.FormatAmount(tx.SignedAmount())
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h, csvexport.FormatDate(tx), amount, tx.Description, mark)
			}
			return tw.Flush()
		},
	}
	in.register(cmd)
	return cmd
}
