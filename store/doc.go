// Package store provides the local persistence primitive shared by the cache
// and session stores: a directory of key-addressed files.
//
// Writes go to a temporary object first and are then moved into place, so a
// reader never observes a partially written record. An advisory lock file
// serializes scan-and-delete sequences across processes on local disks.
package store
