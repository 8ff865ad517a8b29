// Package billing manages subscription plans and prorated plan changes.
// Amounts are recorded only; no payment provider is involved.
package billing
