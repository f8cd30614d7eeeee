// Package model defines the provider-agnostic abstractions for interacting
// with language models from the coordinator and the LLM-backed agents.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Express schema-constrained (structured output) generation without
//     vendor types leaking into callers
//   - Keep request/response shapes minimal: only role and content reach a
//     provider, never UI payloads
//   - Facilitate lightweight scripting for tests (MockModel)
//
// Providers (OpenAI/Azure/DIAL, Anthropic) implement the Model interface in
// sub packages so higher layers remain decoupled from vendor SDKs.
package model
