// Package groupoffer handles company requests for negotiated bulk offers
// and their review by the company's gestor.
package groupoffer
