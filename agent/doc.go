// Package agent contains the gateways to the specialized agents the
// coordinator routes to, and the Dispatcher selecting one of them.
//
// Every gateway implements the same contract: it receives the original
// conversation, the instructions produced by the routing decision and a
// progress sink for narrating its work, and returns one assistant message.
// The set of agents is closed (see core.AgentName); Dispatch matches it
// exhaustively and never falls back to another agent.
package agent
