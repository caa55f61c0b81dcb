package camunda

import (
	"context"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
)

// DefaultLetterProcess is the BPMN process id deployed for decided
// applications. It branches on the "status" variable.
const DefaultLetterProcess = "visa-letter"

type createFunc func(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)

// ProcessStarter creates process instances on the latest deployed version.
type ProcessStarter struct {
	client    *Client
	processID string
	create    createFunc
}

func NewProcessStarter(client *Client, processID string) *ProcessStarter {
	if processID == "" {
		processID = DefaultLetterProcess
	}
	p := &ProcessStarter{client: client, processID: processID}
	p.create = p.createInstance
	return p
}

// Start returns the new process instance key.
func (p *ProcessStarter) Start(ctx context.Context, variables map[string]interface{}) (int64, error) {
	res, err := p.client.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return p.create(ctx, p.processID, variables)
	}, "create-instance:"+p.processID)
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

func (p *ProcessStarter) createInstance(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
	cmd, err := p.client.client.NewCreateInstanceCommand().
		BPMNProcessId(processID).
		LatestVersion().
		VariablesFromMap(variables)
	if err != nil {
		return 0, fmt.Errorf("encode variables: %w", err)
	}
	var resp *pb.CreateProcessInstanceResponse
	if resp, err = cmd.Send(ctx); err != nil {
		return 0, err
	}
	return resp.GetProcessInstanceKey(), nil
}
