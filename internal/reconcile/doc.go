// Package reconcile contains the pure decision logic of the
// dual-provisioning engine: field-by-field classification of a subscriber
// pair into a sync status, and resolution of conflicting pairs into a
// write plan under a chosen strategy.
//
// Nothing in this package touches a store. Both entry points take
// canonical records and return values; all I/O belongs to the
// provision service.
package reconcile
