// Package internal contains the implementation packages of the hakai CLI.
//
// # Package Organization
//
//   - markup: section extraction and tag scanning over .kai files
//   - script: tree-sitter analysis of script sections, cached by fingerprint
//   - project: project layout, page and component lookup over the file system
//   - compiler: hygiene, page composition and template interpolation
//   - routing: URL path to page chain resolution and dependency closures
//   - watcher: debounced file system events
//   - hmr: live reload sessions, client contexts and the update protocol
//   - server: HTTP pages, the live reload client and the socket route
//   - config, logging, errors, version: ambient support
//
// # Data Flow
//
// A request or an init message names a URL path. routing turns it into a
// page chain, compiler turns the chain into a CompiledPage, and server or
// hmr delivers the result. On file changes the watcher hands coalesced
// batches to the hmr coordinator, which recompiles only the clients whose
// page chain or component closure contains a changed path.
package internal
