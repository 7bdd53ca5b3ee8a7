// Package strata is a substrate for agents that learn across attempts. It
// keeps oversized data out of an agent's context and turns finished attempts
// into durable, deduplicated procedural memory.
//
// Key components:
//
//   - Handle: content-addressed storage that returns bounded metadata
//     instead of raw content. Large tool outputs live behind handles; a
//     bounded View is the only way to read them, and every read is clamped
//     server-side (peek, lines, sample, filter, group-count, distinct).
//
//   - Memory: a persistent store of procedural memory items with ranked
//     metadata-only search, capped retrieval, and append-only consolidation.
//     Near-duplicate candidates are skipped or superseded, never merged in
//     place, and success lessons never collide with failure lessons.
//
//   - Loop: the per-attempt learning pass. A finalized trajectory is judged,
//     distilled into at most three candidate items (strategies on success,
//     preventive lessons on failure), and consolidated. Uncertain judgments
//     degrade to failures; broken extraction degrades to zero items.
//
//   - Rollout: parallel attempts at one task. A batch shares a single memory
//     snapshot, each rollout runs under its own iteration/call/time budget,
//     and consolidation happens once after every rollout settles. Selection
//     prefers judged success, then fewer iterations.
//
//   - Boundary: polices what tool output crosses back into context. Results
//     must serialize; anything oversized is spilled into the handle store
//     and replaced by its handle. MCP-served tools plug in behind the same
//     boundary.
//
// Judge and extractor have deterministic heuristic implementations in
// package loop and model-backed ones in package llm.
package strata
