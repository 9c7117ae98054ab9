// Package history keeps a SQLite ledger of pipeline runs: who asked, which
// title, and whether the upload produced a URL or an error. The ledger is
// informational; sessions themselves are never persisted.
package history
