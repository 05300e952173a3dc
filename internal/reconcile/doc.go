// Package reconcile classifies commit records of the reference and derivative
// trees by comparing their logical change identifiers.
//
// Classification is recomputed from scratch on every call, so reconciling the
// same records repeatedly always yields the same result.
package reconcile
