// Package table wraps Bun queries into chainable selections and active rows
// that are hydrated through a Structure registry. The registry maps table
// names to custom row and selection factories and to named scopes.
package table
