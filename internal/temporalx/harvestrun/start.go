package harvestrun

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"
)

// Start launches the harvest workflow for p.VaultID. At most one runs per vault;
// starting again while one is open returns the open run.
func Start(ctx context.Context, tc temporalsdkclient.Client, taskQueue string, p Params) (temporalsdkclient.WorkflowRun, error) {
	if tc == nil {
		return nil, fmt.Errorf("harvestrun: temporal client is not configured")
	}
	return tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        WorkflowID(p.VaultID),
		TaskQueue: taskQueue,
	}, WorkflowName, p)
}
