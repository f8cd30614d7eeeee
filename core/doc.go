// Package core provides the foundational domain types shared by the
// coordinator, the agent gateways and the hosting layer:
//
//   - Message (a role/content conversation entry with optional UI payload)
//   - CustomContent (opaque structured payload that never reaches an LLM)
//   - AgentName and Decision (the classifier output selecting one agent)
//
// The package intentionally keeps transport concerns (LLM providers, HTTP,
// streaming) out of scope so every other package can depend on it without
// pulling vendor SDKs.
package core
