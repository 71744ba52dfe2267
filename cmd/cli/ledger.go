package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/app"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func newLedgerCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Create or append to ledger spreadsheets",
		Long: `ledger writes transactions to a spreadsheet backend: Google Sheets with
Drive folders, or local .xlsx workbooks (ledger.backend: workbook). Every
ledger keeps a hidden Hashes sheet so appends skip transactions it already
holds.`,
	}
	cmd.AddCommand(newLedgerCreateCmd(st), newLedgerAppendCmd(st))
	return cmd
}

func newLedgerCreateCmd(st *cliState) *cobra.Command {
	var (
		in     inputFlags
		title  string
		folder string
	)
	cmd := &cobra.Command{
		Use:   "create [statement]",
		Short: "Create a new ledger from a statement",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := argOrEmpty(args)
			txs, err := loadTransactions(cmd, path, in)
			if err != nil {
				return err
			}
			svc, err := app.LedgerService(cmd.Context(), st.cfg, st.tokens)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("folder") {
				folder = st.cfg.Ledger.FolderID
			}
			if title == "" {
				title = defaultTitle(st.cfg.Ledger.TitlePrefix, path)
			}
			res, err := ledger.NewExporter(svc).Create(cmd.Context(), ledger.CreateRequest{
				Title:        title,
				Transactions: txs,
				Move:         folder != "",
				FolderID:     folder,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "spreadsheet: %s\n", res.SpreadsheetID)
			if res.SpreadsheetURL != "" {
				fmt.Fprintf(out, "url: %s\n", res.SpreadsheetURL)
			}
			fmt.Fprintf(out, "rows: %d\n", res.Rows)
			if res.Moved {
				fmt.Fprintf(out, "folder: %s\n", folder)
			}
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "spreadsheet title (default: title prefix and file name)")
	cmd.Flags().StringVar(&folder, "folder", "", "folder to move the ledger into (default: ledger.folder_id)")
	return cmd
}

func newLedgerAppendCmd(st *cliState) *cobra.Command {
	var (
		in            inputFlags
		spreadsheetID string
		tab           string
	)
	cmd := &cobra.Command{
		Use:   "append [statement] --spreadsheet ID",
		Short: "Append new transactions to an existing ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if spreadsheetID == "" {
				return errors.New("--spreadsheet is required")
			}
			txs, err := loadTransactions(cmd, argOrEmpty(args), in)
			if err != nil {
				return err
			}
			svc, err := app.LedgerService(cmd.Context(), st.cfg, st.tokens)
			if err != nil {
				return err
			}

			if tab == "" {
				tab = st.cfg.Ledger.TabName
			}
			if tab == "" {
				tab = pipeline.DefaultTabName
			}
			res, err := ledger.NewExporter(svc).Append(cmd.Context(), ledger.AppendRequest{
				SpreadsheetID: spreadsheetID,
				TabName:       tab,
				Transactions:  txs,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "spreadsheet: %s\n", res.SpreadsheetID)
			fmt.Fprintf(out, "appended: %d\n", res.Appended)
			fmt.Fprintf(out, "duplicates: %d\n", res.Duplicates)
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&spreadsheetID, "spreadsheet", "", "id of the ledger to append to")
	cmd.Flags().StringVar(&tab, "tab", "", "tab to append to (default: ledger.tab_name or Sheet1)")
	return cmd
}

func defaultTitle(prefix, path string) string {
	if prefix == "" {
		prefix = pipeline.DefaultTitlePrefix
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if path == "" || path == "-" || base == "" {
		return prefix
	}
	return prefix + " " + base
}
