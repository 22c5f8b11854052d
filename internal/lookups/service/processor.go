// Package service provides the batch lookup pipeline: parse, validate, look up
// and aggregate.
package service

import (
	"context"
	"io"
	"time"

	"ean_lookup_backend/internal/lookups/transport"
	"ean_lookup_backend/internal/meteringpoint"
	mptransport "ean_lookup_backend/internal/meteringpoint/transport"
	"ean_lookup_backend/platform/apperr"
	"ean_lookup_backend/platform/logger"
)

// Processor runs uploaded tables through validation and registry lookup.
// Rows are handled strictly in order with one registry call at a time.
type Processor struct {
	validator *RowValidator
	lookup    meteringpoint.Lookuper
	log       *logger.Logger
}

// NewProcessor creates a new batch processor.
func NewProcessor(validator *RowValidator, lookup meteringpoint.Lookuper, log *logger.Logger) *Processor {
	return &Processor{
		validator: validator,
		lookup:    lookup,
		log:       log,
	}
}

// ProcessCSV parses r and processes every row. Only a table that cannot be
// read at all is reported as an error.
func (p *Processor) ProcessCSV(ctx context.Context, r io.Reader) (transport.ResultTable, error) {
	rows, err := ParseTable(r)
	if err != nil {
		return transport.ResultTable{}, err
	}
	return p.Process(ctx, rows), nil
}

// Process returns exactly one result per row, in row order. Once ctx is done
// the remaining rows are reported as network errors without calling the
// registry.
func (p *Processor) Process(ctx context.Context, rows []mptransport.RawRow) transport.ResultTable {
	start := time.Now()
	results := make([]mptransport.LookupResult, 0, len(rows))

	table := transport.NewResultTable(nil)
	ctx = context.WithValue(ctx, logger.BatchIDKey, table.ID.String())
	log := p.log.WithContext(ctx)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			results = append(results, mptransport.ErrorResult(row, mptransport.ErrorKindNetwork, "lookup canceled: "+err.Error()))
			continue
		}
		results = append(results, p.processRow(ctx, row))
	}

	table.Results = results
	table.Summary = transport.Summarize(results)

	log.Info("lookup batch processed",
		"rows", table.Summary.Total,
		"success", table.Summary.Success,
		"not_found", table.Summary.NotFound,
		"errors", table.Summary.Error,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return table
}

// ProcessOne validates and looks up a single row.
func (p *Processor) ProcessOne(ctx context.Context, row mptransport.RawRow) mptransport.LookupResult {
	return p.processRow(ctx, row)
}

// Validate runs only the validation step and returns one result per row that
// would fail.
func (p *Processor) Validate(rows []mptransport.RawRow) []mptransport.LookupResult {
	var failures []mptransport.LookupResult
	for _, row := range rows {
		if _, err := p.validator.ValidateRow(row); err != nil {
			failures = append(failures, mptransport.ErrorResult(row, mptransport.ErrorKindValidation, apperr.Message(err)))
		}
	}
	return failures
}

func (p *Processor) processRow(ctx context.Context, row mptransport.RawRow) mptransport.LookupResult {
	addr, err := p.validator.ValidateRow(row)
	if err != nil {
		p.log.WithContext(ctx).Debug("row rejected", "line", row.Line, "reason", apperr.Message(err))
		return mptransport.ErrorResult(row, mptransport.ErrorKindValidation, apperr.Message(err))
	}
	return p.lookup.Lookup(ctx, addr)
}
