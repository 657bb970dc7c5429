// Package store provides capacity bounded key-value store with FIFO eviction.
//
// * Store keeps at most capacity keys. Adding new key to full store evicts the key
// which was added earliest.
// * Re-adding existing key overwrites value and moves key to the end of eviction
// queue, as if it was deleted and added again. Reads don't change eviction order.
// * Every add, get and delete is reported to AuditLogger before it is applied.
// Audit failure aborts add and delete, but not get.
// * All operations are serialized by single mutex, and audit log records
// are made in the same order as operations applied.
package store
