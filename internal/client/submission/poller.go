package submission

import (
	"context"
	"fmt"
	"time"

	model "github.com/zhouzirui/paper-verify/internal/model/submission"
)

// StatusFunc observes every status fetched while waiting.
type StatusFunc func(*model.Status)

// WaitForCompletion polls GetStatus every interval until the submission is
// completed or failed, or ctx ends. The first poll happens immediately.
// It returns the terminal status; a failed submission is not an error here.
// When ctx ends first, the last status seen is returned with ctx.Err().
func (c *Client) WaitForCompletion(ctx context.Context, submissionID model.ID, interval time.Duration, onStatus StatusFunc) (*model.Status, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *model.Status
	for {
		status, err := c.GetStatus(ctx, submissionID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && last != nil {
				return last, ctxErr
			}
			return nil, err
		}
		last = status
		if onStatus != nil {
			onStatus(status)
		}
		if status.Done() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}
