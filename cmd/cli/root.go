package main

import (
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/app"
	"github.com/dvloznov/statement-ledger/internal/auth"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// cliState is shared by every command of one invocation.
type cliState struct {
	cfgFile  string
	logLevel string

	cfg    *config.Config
	tokens *auth.TokenCache
}

func newRootCmd() *cobra.Command {
	st := &cliState{tokens: auth.NewTokenCache(nil)}

	root := &cobra.Command{
		Use:   "ledger",
		Short: "Normalize bank statements and export deduplicated ledgers",
		Long: `ledger reads bank statement text or extracted entity documents, turns
them into canonical transactions and exports them as CSV, Excel workbooks or
ledger spreadsheets that skip transactions they already hold.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.cfgFile)
			if err != nil {
				return err
			}
			if st.logLevel != "" {
				cfg.Logging.Level = st.logLevel
			}
			log, err := app.Logger(cfg)
			if err != nil {
				return err
			}
			st.cfg = cfg
			cmd.SetContext(logger.WithContext(cmd.Context(), log))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&st.cfgFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newParseCmd(st),
		newNormalizeCmd(st),
		newHashCmd(st),
		newExportXLSXCmd(st),
		newLedgerCmd(st),
		newExtractCmd(st),
		newIngestCmd(st),
		newUploadCmd(st),
		newVersionCmd(),
	)
	return root
}
