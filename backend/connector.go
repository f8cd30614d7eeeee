// Package backend wires the coordinator to its downstream services: the LLM
// deployments and the agent gateways, built per request with the caller's
// credentials.
package backend

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/mascoordinator/agent"
	"github.com/hupe1980/mascoordinator/config"
	"github.com/hupe1980/mascoordinator/coordinator"
	"github.com/hupe1980/mascoordinator/logging"
	"github.com/hupe1980/mascoordinator/model"
	"github.com/hupe1980/mascoordinator/model/anthropic"
	"github.com/hupe1980/mascoordinator/model/openai"
)

// ErrMissingAPIKey is returned when neither the request nor the
// configuration provides a credential. It is an invalid request.
var ErrMissingAPIKey = fmt.Errorf("%w: missing api key", coordinator.ErrInvalidRequest)

// Options configure a Connector.
type Options struct {
	Logger logging.Logger
}

// Connector implements coordinator.Connector from the static configuration.
type Connector struct {
	cfg    *config.Config
	logger logging.Logger
}

// NewConnector creates a Connector for cfg.
func NewConnector(cfg *config.Config, optFns ...func(o *Options)) *Connector {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Connector{cfg: cfg, logger: logging.OrNoOp(opts.Logger)}
}

// Connect builds fresh clients for req. Nothing is shared between requests.
func (c *Connector) Connect(_ context.Context, req coordinator.Request) (*coordinator.Downstream, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.cfg.LLM.APIKey
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	logger := logging.With(c.logger, "conversation_id", req.ConversationID)

	llm, err := c.NewModel(c.cfg.LLM.Provider, c.cfg.LLM.DeploymentName, apiKey)
	if err != nil {
		return nil, err
	}
	gpaLLM, err := c.NewModel(c.cfg.GPAProvider(), c.cfg.Agents.GPA.DeploymentName, apiKey)
	if err != nil {
		return nil, err
	}

	gpa := agent.NewGeneralPurposeGateway(gpaLLM, func(o *agent.GeneralPurposeOptions) {
		o.Logger = logger
	})
	ums := agent.NewUMSGateway(c.cfg.Agents.UMS.Endpoint, func(o *agent.UMSOptions) {
		o.Deployment = c.cfg.Agents.UMS.DeploymentName
		o.Timeout = c.cfg.Agents.UMS.Timeout
		o.APIKey = apiKey
		o.ConversationID = req.ConversationID
		o.Logger = logger
	})

	return &coordinator.Downstream{
		LLM: llm,
		Dispatcher: agent.NewDispatcher(gpa, ums, func(o *agent.DispatcherOptions) {
			o.Logger = logger
		}),
	}, nil
}

// NewModel creates a model client for deployment on the given provider.
func (c *Connector) NewModel(provider, deployment, apiKey string) (model.Model, error) {
	llm := c.cfg.LLM

	switch provider {
	case config.ProviderAzure:
		return openai.NewAzureModel(llm.Endpoint, llm.APIVersion, apiKey, func(o *openai.Options) {
			o.Model = deployment
			o.Temperature = llm.Temperature
			o.MaxCompletionTokens = llm.MaxTokens
		}), nil
	case config.ProviderOpenAI:
		return openai.NewModel(llm.Endpoint, apiKey, func(o *openai.Options) {
			o.Model = deployment
			o.Temperature = llm.Temperature
			o.MaxCompletionTokens = llm.MaxTokens
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(deployment)
			o.Temperature = llm.Temperature
			o.MaxTokens = llm.MaxTokens
			o.APIKey = apiKey
			o.BaseURL = llm.Endpoint
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}
