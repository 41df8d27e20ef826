// Package types defines the Entity contract, pagination state, change events,
// collaborator interfaces and standard errors shared by the crudkit stores
// and the data access proxy.
package types
