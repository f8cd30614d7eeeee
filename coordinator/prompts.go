package coordinator

import (
	"fmt"

	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/internal/util"
)

const coordinationPromptTemplate = `You are the coordinator of a multi-agent system. Read the conversation and choose the single agent best suited to handle the latest user request.

Available agents:
{{- range .Agents}}
- {{.Name}}: {{.Description}}
{{- end}}

Rules:
- Choose exactly one agent. agent_name must be one of: {{join .Names ", "}}.
- Put anything the agent should know beyond the conversation itself into additional_instructions, for example what exactly to look up or which details to include. Use an empty string when there is nothing to add.
- Do not answer the request yourself.

Respond only with the JSON object {"agent_name": ..., "additional_instructions": ...}.`

// FinalResponsePrompt instructs the synthesis call.
const FinalResponsePrompt = `You are the final responder of a multi-agent system. The last user message contains a CONTEXT section with the answer of the agent that handled the request, followed by the USER_REQUEST.

Answer the USER_REQUEST for the user, grounded in the CONTEXT:
- Use the facts from the CONTEXT and do not invent new ones.
- If the CONTEXT reports a failure or lacks the information, say so plainly.
- Do not mention agents, the CONTEXT section or this instruction.`

type promptAgent struct {
	Name        string
	Description string
}

// CoordinationPrompt renders the decision prompt for the given agents.
func CoordinationPrompt(agents ...core.AgentName) (string, error) {
	if len(agents) == 0 {
		agents = core.AgentNames()
	}
	data := struct {
		Agents []promptAgent
		Names  []string
	}{}
	for _, a := range agents {
		data.Agents = append(data.Agents, promptAgent{Name: a.String(), Description: a.Description()})
		data.Names = append(data.Names, a.String())
	}

	prompt, err := util.RenderTemplate(coordinationPromptTemplate, data)
	if err != nil {
		return "", fmt.Errorf("render coordination prompt: %w", err)
	}
	return prompt, nil
}
