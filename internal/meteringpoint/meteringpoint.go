// Package meteringpoint provides the metering-point bounded context.
// This file defines the public interfaces exposed to other domains.
package meteringpoint

import (
	"context"

	"ean_lookup_backend/internal/meteringpoint/transport"
)

// Lookuper defines the public interface for metering-point lookups.
// Other domains should depend on this interface, not the concrete implementation.
type Lookuper interface {
	// Lookup resolves the electricity and gas EANs registered at a validated
	// address. Failures are reported in the result, never as an error.
	Lookup(ctx context.Context, addr transport.AddressRecord) transport.LookupResult
}
