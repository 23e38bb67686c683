// Package stores contains the storage backends the engine owns:
// Redis-backed recovery tokens with an atomic single-use claim, and
// append-only audit stores (Redis and in-memory) with pagination and
// aggregation.
//
// The caller-owned credential store is deliberately not here; it stays an
// interface on the public surface.
package stores
