// Package coupon issues, validates and redeems offer coupons.
//
// Uniqueness is enforced by the database: codes have a unique index and
// at most one ACTIVE coupon may exist per (offer, user). The service turns
// those constraint violations into redraws or idempotent replies.
package coupon
