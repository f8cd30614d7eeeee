// Package coordinator implements the request pipeline of the multi-agent
// coordinator: decide which agent handles a conversation, dispatch it to that
// agent and synthesize the final answer from the agent output, streaming it
// to the caller.
//
// The phases run strictly in sequence and the first failure ends the request.
// Each request exercises exactly two LLM calls: one schema-constrained
// decision and one streamed synthesis.
package coordinator
