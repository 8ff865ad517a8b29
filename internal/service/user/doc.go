// Package user implements account management, password changes and the
// privacy-filtered profile view.
//
// Repository implementations live in repository/postgres/.
package user
