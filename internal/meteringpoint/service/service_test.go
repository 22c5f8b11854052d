package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ean_lookup_backend/internal/meteringpoint/transport"
	"ean_lookup_backend/platform/apperr"
	"ean_lookup_backend/platform/config"
	"ean_lookup_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegistry struct {
	points map[transport.Product][]transport.MeteringPoint
	err    error
	calls  []transport.Product
}

func (s *stubRegistry) GetMeteringPoints(_ context.Context, _ transport.AddressRecord, product transport.Product) ([]transport.MeteringPoint, error) {
	s.calls = append(s.calls, product)
	if s.err != nil {
		return nil, s.err
	}
	return s.points[product], nil
}

func point(ean string, product transport.Product, special bool) transport.MeteringPoint {
	return transport.MeteringPoint{EAN: ean, Product: product, BAGID: "0363010000000001", SpecialMeteringPoint: special}
}

func address() transport.AddressRecord {
	return transport.AddressRecord{
		PostalCode:   "1234AB",
		StreetNumber: 10,
		Source:       transport.RawRow{Line: 2, PostalCode: "1234ab", StreetNumber: "10"},
	}
}

func TestLookupBothProducts(t *testing.T) {
	registry := &stubRegistry{points: map[transport.Product][]transport.MeteringPoint{
		"": {point("871000000000000001", transport.ProductElectricity, false), point("871000000000000002", transport.ProductGas, false)},
	}}
	svc := New(registry, nil, config.QueryModeCombined, logger.Discard())

	result := svc.Lookup(context.Background(), address())

	assert.Equal(t, transport.StatusSuccess, result.Status)
	require.NotNil(t, result.EANElectricity)
	require.NotNil(t, result.EANGas)
	assert.Equal(t, "871000000000000001", *result.EANElectricity)
	assert.Equal(t, "871000000000000002", *result.EANGas)
	require.NotNil(t, result.BAGID)
	assert.Nil(t, result.ErrorDetail)
	assert.Equal(t, "1234ab", result.Input.PostalCode, "input must echo the uploaded row")
}

func TestLookupZeroPointsIsNotFound(t *testing.T) {
	svc := New(&stubRegistry{}, nil, config.QueryModeCombined, logger.Discard())

	result := svc.Lookup(context.Background(), address())

	assert.Equal(t, transport.StatusNotFound, result.Status)
	assert.Nil(t, result.EANElectricity)
	assert.Nil(t, result.EANGas)
	assert.Nil(t, result.ErrorDetail)
	assert.Equal(t, transport.ErrorKindNone, result.ErrorKind)
}

func TestLookupRegistryErrorsBecomeErrorResults(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		kind   transport.ErrorKind
		detail string
	}{
		{"upstream", apperr.Upstream("registry returned HTTP 500"), transport.ErrorKindUpstream, "registry returned HTTP 500"},
		{"timeout", apperr.Network("registry request timed out after 10s", context.DeadlineExceeded), transport.ErrorKindNetwork, "registry request timed out after 10s"},
		{"untyped", errors.New("boom"), transport.ErrorKindUpstream, "boom"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&stubRegistry{err: tc.err}, nil, config.QueryModeCombined, logger.Discard())
			result := svc.Lookup(context.Background(), address())

			assert.Equal(t, transport.StatusError, result.Status)
			assert.Equal(t, tc.kind, result.ErrorKind)
			require.NotNil(t, result.ErrorDetail)
			assert.Equal(t, tc.detail, *result.ErrorDetail)
		})
	}
}

func TestLookupPerProductQueriesEachProduct(t *testing.T) {
	registry := &stubRegistry{points: map[transport.Product][]transport.MeteringPoint{
		transport.ProductElectricity: {point("871000000000000001", transport.ProductElectricity, false)},
		transport.ProductGas:         {point("871000000000000002", transport.ProductGas, false), point("871000000000000003", transport.ProductElectricity, false)},
	}}
	svc := New(registry, nil, config.QueryModePerProduct, logger.Discard())

	result := svc.Lookup(context.Background(), address())

	assert.Equal(t, []transport.Product{transport.ProductElectricity, transport.ProductGas}, registry.calls)
	require.NotNil(t, result.EANElectricity)
	assert.Equal(t, "871000000000000001", *result.EANElectricity, "points of another product in a filtered answer are ignored")
	require.NotNil(t, result.EANGas)
	assert.Equal(t, "871000000000000002", *result.EANGas)
}

func TestSelectPointPrefersRegularConnections(t *testing.T) {
	points := []transport.MeteringPoint{
		point("special", transport.ProductElectricity, true),
		point("regular-1", transport.ProductElectricity, false),
		point("regular-2", transport.ProductElectricity, false),
		point("gas-special", transport.ProductGas, true),
	}

	assert.Equal(t, "regular-1", SelectPoint(points, transport.ProductElectricity).EAN)
	assert.Equal(t, "gas-special", SelectPoint(points, transport.ProductGas).EAN)
	assert.Nil(t, SelectPoint(points[:0], transport.ProductGas))
}

func TestBuildResultTakesBagIDFromGasWhenElectricityHasNone(t *testing.T) {
	elk := point("e", transport.ProductElectricity, false)
	elk.BAGID = ""
	result := BuildResult(transport.RawRow{}, []transport.MeteringPoint{elk, point("g", transport.ProductGas, false)})

	require.NotNil(t, result.BAGID)
	assert.Equal(t, "0363010000000001", *result.BAGID)
}

func TestLookupCachesAnswersButNotErrors(t *testing.T) {
	registry := &stubRegistry{}
	svc := New(registry, NewMemoryCache(time.Hour), config.QueryModeCombined, logger.Discard())

	svc.Lookup(context.Background(), address())
	svc.Lookup(context.Background(), address())
	assert.Len(t, registry.calls, 1, "empty answer should be served from cache")

	failing := &stubRegistry{err: apperr.Upstream("registry returned HTTP 503")}
	svc = New(failing, NewMemoryCache(time.Hour), config.QueryModeCombined, logger.Discard())
	svc.Lookup(context.Background(), address())
	svc.Lookup(context.Background(), address())
	assert.Len(t, failing.calls, 2, "errors must not be cached")
}

func TestMemoryCacheExpires(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set(context.Background(), "k", []transport.MeteringPoint{point("e", transport.ProductElectricity, false)})
	_, ok := cache.Get(context.Background(), "k")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client, time.Hour, logger.Discard())
	ctx := context.Background()

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)

	cache.Set(ctx, "empty", nil)
	points, ok := cache.Get(ctx, "empty")
	require.True(t, ok, "empty answers are cache hits")
	assert.Empty(t, points)

	cache.Set(ctx, "one", []transport.MeteringPoint{point("e", transport.ProductElectricity, false)})
	points, ok = cache.Get(ctx, "one")
	require.True(t, ok)
	require.Len(t, points, 1)
	assert.Equal(t, "e", points[0].EAN)

	mr.FastForward(2 * time.Hour)
	_, ok = cache.Get(ctx, "one")
	assert.False(t, ok)
}
