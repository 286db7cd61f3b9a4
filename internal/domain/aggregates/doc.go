// Package aggregates declares the vault ledger write boundary and the error
// codes every vault layer speaks: the aggregate, the engine, the harvester,
// the HTTP error mapper and the Temporal activity classifier.
package aggregates
