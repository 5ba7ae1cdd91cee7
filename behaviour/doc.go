// Package behaviour defines the hooks a repository runs around inserts,
// updates and deletes, and ships the date stamping and UUID behaviours.
package behaviour
