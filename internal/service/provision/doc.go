// Package provision implements dual-store subscriber provisioning.
//
// The DualWriter coordinates create/update/delete against the cloud and
// legacy stores, classifies the resulting sync state, and drives conflict
// resolution. It depends on the Store interface defined in this package
// and never imports a concrete repository.
//
// Store implementations live in repository/dynamo, repository/postgres,
// and repository/memory.
package provision
