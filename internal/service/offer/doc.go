// Package offer implements company discount offers, bounded by the
// company's plan.
package offer
