package core

import "fmt"

// AgentName enumerates the specialized agents the coordinator can route to.
// The set is closed: adding an agent means adding a constant here and a match
// arm in the dispatcher.
type AgentName string

const (
	// AgentGPA is the general purpose agent backed by an LLM deployment.
	AgentGPA AgentName = "GPA"
	// AgentUMS is the user management service agent, a separate HTTP service.
	AgentUMS AgentName = "UMS"
)

// AgentNames returns every known agent in a stable order.
func AgentNames() []AgentName { return []AgentName{AgentGPA, AgentUMS} }

// Valid reports whether n is one of the known agents.
func (n AgentName) Valid() bool {
	switch n {
	case AgentGPA, AgentUMS:
		return true
	default:
		return false
	}
}

// Description returns the capability summary used in the classifier prompt.
func (n AgentName) Description() string {
	switch n {
	case AgentGPA:
		return "General purpose agent. Answers general questions, searches the web, " +
			"analyses attached files and performs calculations. Use it for anything " +
			"that is not about managing users."
	case AgentUMS:
		return "User management service agent. Searches, creates, updates and deletes " +
			"users of the user management service."
	default:
		return ""
	}
}

func (n AgentName) String() string { return string(n) }

// Decision is the classifier output naming the agent that should handle the
// request and the instructions it should receive. It is produced once per
// request and treated as immutable afterwards.
type Decision struct {
	AgentName              AgentName `json:"agent_name" enum:"GPA,UMS" description:"Name of the agent that should handle the request"`
	AdditionalInstructions string    `json:"additional_instructions" description:"Instructions for the selected agent, may be empty"`
}

// Validate rejects decisions naming an agent outside the known set.
func (d Decision) Validate() error {
	if !d.AgentName.Valid() {
		return fmt.Errorf("unknown agent name %q", d.AgentName)
	}
	return nil
}
