package port

import "context"

// Notifier collects changed paths for downstream cache invalidation.
// Delivery is at-least-once; consumers must tolerate duplicates.
type Notifier interface {
	Enqueue(path string)
}

// WebhookSender delivers one signed payload to the downstream consumer.
// A non-nil error or non-2xx response means the batch failed.
type WebhookSender interface {
	Send(ctx context.Context, body []byte, signature string, timestamp int64) error
}
