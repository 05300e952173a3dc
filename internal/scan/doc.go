// Package scan fans sub-project history extraction out over a bounded worker
// pool and gathers the results of one tree through a single aggregator.
package scan
