package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ean_lookup_backend/internal/lookups/export"
	lookupservice "ean_lookup_backend/internal/lookups/service"
	"ean_lookup_backend/internal/lookups/transport"
	"ean_lookup_backend/internal/meteringpoint"
	"ean_lookup_backend/platform/apperr"
	"ean_lookup_backend/platform/cache"
	"ean_lookup_backend/platform/config"
	"ean_lookup_backend/platform/logger"
	"ean_lookup_backend/platform/validator"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ean-batch",
		Short:        "Look up electricity and gas EANs for a CSV of Dutch addresses",
		SilenceUsage: true,
	}

	cmd.AddCommand(lookupCmd())
	cmd.AddCommand(validateCmd())
	return cmd
}

func lookupCmd() *cobra.Command {
	var out string
	var format string

	c := &cobra.Command{
		Use:   "lookup <input.csv>",
		Short: "Run every row against the registry and write the result table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != string(transport.FormatCSV) && format != string(transport.FormatXLSX) {
				return fmt.Errorf("--format must be csv or xlsx, got %q", format)
			}
			if format == string(transport.FormatXLSX) && out == "" {
				return fmt.Errorf("--out is required for xlsx output")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.NewWithWriter(cfg.Env, os.Stderr)

			var redisClient *redis.Client
			if cfg.IsRedisEnabled() {
				redisClient, err = cache.NewRedisClient(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer func() {
					_ = redisClient.Close()
				}()
			}

			processor, err := newProcessor(meteringpoint.NewModule(cfg, redisClient, log).Service(), log)
			if err != nil {
				return err
			}

			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = in.Close()
			}()

			table, err := processor.ProcessCSV(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("%s: %s", args[0], apperr.Message(err))
			}

			if err := writeTable(cmd.OutOrStdout(), out, format, table); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%d rows: %d success, %d not found, %d errors\n",
				table.Summary.Total, table.Summary.Success, table.Summary.NotFound, table.Summary.Error)
			return nil
		},
	}

	c.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	c.Flags().StringVarP(&format, "format", "f", string(transport.FormatCSV), "Output format: csv or xlsx")
	return c
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <input.csv>",
		Short: "Check the rows of a CSV without calling the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = in.Close()
			}()

			rows, err := lookupservice.ParseTable(in)
			if err != nil {
				return fmt.Errorf("%s: %s", args[0], apperr.Message(err))
			}

			processor, err := newProcessor(nil, logger.Discard())
			if err != nil {
				return err
			}

			failures := processor.Validate(rows)
			for _, f := range failures {
				fmt.Fprintf(cmd.OutOrStdout(), "line %d: %s\n", f.Input.Line, *f.ErrorDetail)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d of %d rows are invalid", len(failures), len(rows))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d rows\n", len(rows))
			return nil
		},
	}
}

func newProcessor(lookup meteringpoint.Lookuper, log *logger.Logger) (*lookupservice.Processor, error) {
	rowValidator, err := lookupservice.NewRowValidator(validator.New())
	if err != nil {
		return nil, err
	}
	return lookupservice.NewProcessor(rowValidator, lookup, log), nil
}

// createOutput opens the --out file.
var createOutput = func(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

func writeTable(stdout io.Writer, out, format string, table transport.ResultTable) (err error) {
	if out == "" {
		return encodeTable(stdout, format, table)
	}

	f, err := createOutput(out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", out, cerr)
		}
	}()

	return encodeTable(f, format, table)
}

func encodeTable(w io.Writer, format string, table transport.ResultTable) error {
	if format == string(transport.FormatXLSX) {
		return export.WriteXLSX(w, table)
	}
	return export.WriteCSV(w, table)
}
