// Package abi holds the process-wide state behind the C interface of
// libpockettts: handle tables, the last-error slot and the registry of
// audio buffers handed to the caller.
//
// Everything here is plain Go so that the boundary semantics can be tested
// without cgo. The exported C functions in cmd/libpockettts are thin
// wrappers that convert pointers and call a Runtime.
package abi
