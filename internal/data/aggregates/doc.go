// Package aggregates implements the vault ledger aggregate on gorm. Writes go
// through executeWrite, which owns the transaction, maps driver errors onto
// domain codes and reports each operation to Hooks.
package aggregates
