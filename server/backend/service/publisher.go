package service

import (
	"context"
	"encoding/json"
	"fmt"

	"langmod/server/backend/domain"
)

// Publisher is the outbound side of the broker.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// publishEnvelope wraps a payload in the job envelope and sends it.
func publishEnvelope(ctx context.Context, pub Publisher, queue, jobID string, payload any) error {
	env, err := domain.NewEnvelope(jobID, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return pub.Publish(ctx, queue, body)
}
