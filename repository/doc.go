// Package repository provides the per-table repository: finders returning
// hydrated selections, transactional insert/update/delete/upsert wrapped by
// behaviours, scopes, retry helpers, chunking and pagination.
package repository
