// Package service provides business logic for metering-point lookups.
package service

import (
	"context"
	"strconv"

	"ean_lookup_backend/internal/meteringpoint/transport"
	"ean_lookup_backend/platform/apperr"
	"ean_lookup_backend/platform/config"
	"ean_lookup_backend/platform/logger"
)

// Registry is the remote source of metering points.
type Registry interface {
	GetMeteringPoints(ctx context.Context, addr transport.AddressRecord, product transport.Product) ([]transport.MeteringPoint, error)
}

// Service turns registry answers into lookup results, using the cache when
// one is configured.
type Service struct {
	registry Registry
	cache    Cache
	mode     string
	log      *logger.Logger
}

// New creates a new metering-point service. cache may be nil.
func New(registry Registry, cache Cache, mode string, log *logger.Logger) *Service {
	if mode == "" {
		mode = config.QueryModeCombined
	}
	return &Service{
		registry: registry,
		cache:    cache,
		mode:     mode,
		log:      log,
	}
}

// Lookup resolves the EANs registered at addr. It never fails: registry
// problems are reported as an Error result for the row.
func (s *Service) Lookup(ctx context.Context, addr transport.AddressRecord) transport.LookupResult {
	points, err := s.fetch(ctx, addr)
	if err != nil {
		s.log.WithContext(ctx).Warn("metering point lookup failed",
			"line", addr.Source.Line,
			"postal_code", addr.PostalCode,
			"kind", apperr.GetKind(err).String(),
			"error", err,
		)
		return transport.ErrorResult(addr.Source, errorKindFor(err), apperr.Message(err))
	}

	return BuildResult(addr.Source, points)
}

func (s *Service) fetch(ctx context.Context, addr transport.AddressRecord) ([]transport.MeteringPoint, error) {
	if s.mode != config.QueryModePerProduct {
		return s.query(ctx, addr, "")
	}

	var all []transport.MeteringPoint
	for _, product := range transport.Products {
		points, err := s.query(ctx, addr, product)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			if p.Product == product {
				all = append(all, p)
			}
		}
	}
	return all, nil
}

func (s *Service) query(ctx context.Context, addr transport.AddressRecord, product transport.Product) ([]transport.MeteringPoint, error) {
	key := buildAddressCacheKey(s.mode, product, addr)

	if s.cache != nil {
		if points, ok := s.cache.Get(ctx, key); ok {
			return points, nil
		}
	}

	points, err := s.registry.GetMeteringPoints(ctx, addr, product)
	if err != nil {
		return nil, err
	}

	// Empty answers are cached too, errors never.
	if s.cache != nil {
		s.cache.Set(ctx, key, points)
	}
	return points, nil
}

// BuildResult selects one EAN per product from points and builds the result
// for row. Without any electricity or gas point the row is NotFound.
func BuildResult(row transport.RawRow, points []transport.MeteringPoint) transport.LookupResult {
	elk := SelectPoint(points, transport.ProductElectricity)
	gas := SelectPoint(points, transport.ProductGas)
	if elk == nil && gas == nil {
		return transport.NotFoundResult(row)
	}

	result := transport.LookupResult{Input: row, Status: transport.StatusSuccess}
	if elk != nil {
		result.EANElectricity = stringPtr(elk.EAN)
		result.BAGID = nonEmptyPtr(elk.BAGID)
	}
	if gas != nil {
		result.EANGas = stringPtr(gas.EAN)
		if result.BAGID == nil {
			result.BAGID = nonEmptyPtr(gas.BAGID)
		}
	}
	return result
}

// SelectPoint picks the point of the given product. Regular connections win
// over special metering points; otherwise registry order decides.
func SelectPoint(points []transport.MeteringPoint, product transport.Product) *transport.MeteringPoint {
	var fallback *transport.MeteringPoint
	for i := range points {
		p := &points[i]
		if p.Product != product {
			continue
		}
		if !p.SpecialMeteringPoint {
			return p
		}
		if fallback == nil {
			fallback = p
		}
	}
	return fallback
}

func errorKindFor(err error) transport.ErrorKind {
	switch apperr.GetKind(err) {
	case apperr.KindNetwork:
		return transport.ErrorKindNetwork
	case apperr.KindValidation:
		return transport.ErrorKindValidation
	default:
		return transport.ErrorKindUpstream
	}
}

func buildAddressCacheKey(mode string, product transport.Product, addr transport.AddressRecord) string {
	return mode + ":" + string(product) + ":" + addr.PostalCode + ":" + strconv.Itoa(addr.StreetNumber) + ":" + addr.StreetNumberAddition
}

func stringPtr(s string) *string {
	return &s
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
