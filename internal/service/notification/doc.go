// Package notification stores in-app notifications and pushes each new one
// to the recipient's realtime stream. Service implements outbound.Notifier
// so other services can notify without importing this package.
package notification
