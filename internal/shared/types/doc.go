// Package types provides shared data structures for the shell core.
//
// This package defines core types used across all components,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - User: Authenticated user projected from a provider session
//   - SessionRecord: Raw identity-provider session shape
//   - ChatSession: Saved conversation thread
//   - ChatMessage: Single message within a conversation
//   - Mode: Top-level navigation mode enum
//
// State Management:
//   - SessionStats: Conversation store statistics
//   - AuthStats: Auth controller statistics
package types
