package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/tourguide/internal/core/domain"
)

// NarrationWorkflowName is the registered workflow type.
const NarrationWorkflowName = "NarrationWorkflow"

// NarrationInput is the input for the narration workflow.
type NarrationInput struct {
	DeviceID  string
	PlaceID   string
	Distance  float64
	EnteredAt time.Time
}

// NarrationWorkflow loads the entered place, composes its narration, delivers it
// to the device and records it as the device's latest narration.
// Recording is best effort; a failed delivery fails the workflow.
func NarrationWorkflow(ctx workflow.Context, input NarrationInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting narration workflow", "placeID", input.PlaceID, "deviceID", input.DeviceID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Load the place
	var place domain.Place
	if err := workflow.ExecuteActivity(ctx, "LoadPlace", input.PlaceID).Get(ctx, &place); err != nil {
		return err
	}

	// Step 2: Compose the text
	var narration domain.Narration
	err := workflow.ExecuteActivity(ctx, "ComposeNarration", input.DeviceID, place, input.Distance).Get(ctx, &narration)
	if err != nil {
		return err
	}

	// Step 3: Deliver it
	if err := workflow.ExecuteActivity(ctx, "SendNarration", narration).Get(ctx, nil); err != nil {
		logger.Warn("narration delivery failed", "error", err)
		return err
	}

	if err := workflow.ExecuteActivity(ctx, "RecordNarration", narration).Get(ctx, nil); err != nil {
		logger.Warn("recording narration failed", "error", err)
	}

	logger.Info("Narration delivered", "placeID", input.PlaceID)
	return nil
}

// NarrationWorkflowID is stable per device, place and entry so a redelivered
// enter event does not narrate twice.
func NarrationWorkflowID(ev *domain.TransitionEvent) string {
	return fmt.Sprintf("narration-%s-%s-%d", ev.Fix.DeviceID, ev.Place.ID, ev.Fix.Timestamp.Unix())
}

// Starter implements ports.NarrationStarter on a Temporal client.
type Starter struct {
	client    client.Client
	taskQueue string
}

// NewStarter creates a Starter that schedules workflows on taskQueue.
func NewStarter(c client.Client, taskQueue string) *Starter {
	return &Starter{client: c, taskQueue: taskQueue}
}

// StartNarration starts a narration workflow for an enter event. An ID that was
// already used, running or finished, is not started again and is not an error.
func (s *Starter) StartNarration(ctx context.Context, ev *domain.TransitionEvent) error {
	if ev.Kind != domain.TransitionEnter {
		return nil
	}
	opts := client.StartWorkflowOptions{
		ID:                                       NarrationWorkflowID(ev),
		TaskQueue:                                s.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	input := NarrationInput{
		DeviceID:  ev.Fix.DeviceID,
		PlaceID:   ev.Place.ID,
		Distance:  ev.Distance,
		EnteredAt: ev.Fix.Timestamp,
	}
	_, err := s.client.ExecuteWorkflow(ctx, opts, NarrationWorkflowName, input)
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("start narration %s: %w", opts.ID, err)
	}
	return nil
}
