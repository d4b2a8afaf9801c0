// Package scm is the storage and merge core of a source-control backend.
//
// Everything is persisted in a Blobstore,
// a flat key-value store of immutable byte blobs.
// Keys are strings namespaced by the kind of record they hold,
// e.g. "content.blake2.<hex>" for file content
// and "tree.blake2.<hex>" for directory listings.
//
// File content is managed by package filestore,
// which splits large files into chunks
// and records SHA-1, SHA-256, and git aliases for each file.
//
// Directory trees are described in package manifest
// and edited in memory using package memmanifest,
// which can also merge two trees and report conflicts.
// Package fs copies trees in from and out to local directories,
// and package checker verifies that everything a tree refers to is intact.
//
// Blobstore implementations live under the store/ directory.
// Each registers itself by name with store.Register
// so that it can be selected in a configuration file.
package scm
