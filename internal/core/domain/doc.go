// Package domain defines the core business entities for RegCap.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Session: An isolated bundle of documents, index and conversation state
//   - Document: An uploaded document with metadata
//   - Chunk: The atomic retrieval unit within a document
//   - RetrievalResult: A scored chunk produced for a query
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
