// Package vault holds the persisted shapes of the custody vault: the vault
// header row, per-depositor positions, bound strategies, harvest attempts and
// the append-only operation ledger, plus integer amount helpers.
package vault
