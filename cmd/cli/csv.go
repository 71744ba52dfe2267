package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/app"
	"github.com/dvloznov/statement-ledger/internal/csvexport"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// csvFlags override the csv section of the config.
type csvFlags struct {
	out       string
	mode      string
	delimiter string
	bom       bool
	emptyZero bool
}

func (f *csvFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "amount layout: signed or debit_credit")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", `field delimiter, "tab" for tabs`)
	cmd.Flags().BoolVar(&f.bom, "bom", false, "prefix the output with a UTF-8 byte order mark")
	cmd.Flags().BoolVar(&f.emptyZero, "empty-zero", false, "leave zero debit/credit cells empty")
}

func (f *csvFlags) options(cmd *cobra.Command, st *cliState) (csvexport.Options, error) {
	c := st.cfg.CSV
	if cmd.Flags().Changed("mode") {
		c.Mode = f.mode
	}
	if cmd.Flags().Changed("delimiter") {
		c.Delimiter = f.delimiter
	}
	if cmd.Flags().Changed("bom") {
		c.BOM = f.bom
	}
	if cmd.Flags().Changed("empty-zero") {
		c.EmptyZero = f.emptyZero
	}
	return app.CSVOptions(c)
}

func (f *csvFlags) write(cmd *cobra.Command, st *cliState, txs []domain.Transaction) error {
	opts, err := f.options(cmd, st)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if f.out != "" {
		file, err := os.Create(f.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}
	if err := csvexport.Write(w, txs, opts); err != nil {
		return err
	}
	if f.out == "" {
		fmt.Fprintln(w)
	}

	log := logger.FromContext(cmd.Context())
	log.Info().
		Int("transactions", len(domain.Exportable(txs))).
		Str("out", f.out).
		Msg("csv written")
	return nil
}

func newParseCmd(st *cliState) *cobra.Command {
	var (
		in  = inputFlags{format: formatText}
		out csvFlags
	)
	cmd := &cobra.Command{
		Use:   "parse [statement.txt]",
		Short: "Parse statement text into CSV",
		Long: `parse reads the text of a bank statement (a file, or stdin when no file
or "-" is given), recognizes transaction lines by section and writes them as
CSV.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.format = formatText
			txs, err := loadTransactions(cmd, argOrEmpty(args), in)
			if err != nil {
				return err
			}
			return out.write(cmd, st, txs)
		},
	}
	cmd.Flags().StringVar(&in.bank, "bank", "", "source bank recorded on each transaction")
	cmd.Flags().IntVar(&in.year, "year", 0, "year for dates printed without one (default: current year)")
	out.register(cmd)
	return cmd
}

func newNormalizeCmd(st *cliState) *cobra.Command {
	var (
		in  inputFlags
		out csvFlags
	)
	cmd := &cobra.Command{
		Use:   "normalize [document.json]",
		Short: "Normalize an extracted entity document into CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.format = formatEntities
			txs, err := loadTransactions(cmd, argOrEmpty(args), in)
			if err != nil {
				return err
			}
			return out.write(cmd, st, txs)
		},
	}
	cmd.Flags().IntVar(&in.year, "year", 0, "year for dates printed without one (default: current year)")
	out.register(cmd)
	return cmd
}
