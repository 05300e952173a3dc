// Package progress publishes run progress snapshots to any number of observers.
//
// A Publisher belongs to exactly one run. Each subscriber owns a bounded queue;
// when a queue is full the oldest pending snapshot is discarded so the producer
// never blocks and the newest state always arrives.
package progress
