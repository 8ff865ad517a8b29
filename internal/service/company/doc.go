// Package company implements partner company onboarding, portfolio
// assignment and logo management.
package company
