// Package mcp exposes showroom's capabilities as Model Context Protocol
// tools so external MCP clients (agent runtimes, IDEs, the Genkit CLI) can
// drive them over stdio.
//
// Three tools are registered:
//
//   - ask: the full question cycle. The router plans, invokes adapters,
//     composes and audits exactly as it does for the CLI and HTTP surfaces;
//     the client receives the answer text, citations and the answer id.
//   - sql_select: one validated read-only SELECT against the relational
//     store. The tool description carries the live schema summary so
//     clients can write queries without a discovery round-trip.
//   - rag_search: semantic passage retrieval with an optional top-k.
//
// Error handling follows the protocol's two channels. Failures the client
// can correct (a rejected statement, an empty question, a failed answer)
// come back as tool results with IsError set. Infrastructure failures
// (store down, embedder unreachable) surface as protocol errors.
package mcp
