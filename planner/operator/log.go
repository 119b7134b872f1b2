package operator

import (
	"context"
	"log"
	"strings"
	"time"
)

// LogChannel prints operator messages to the process log and never
// produces actions. It is the channel of record when no Telegram token
// is configured, which keeps local runs fully non-interactive.
type LogChannel struct{}

func (LogChannel) Send(_ context.Context, msg Message) error {
	var b strings.Builder
	b.WriteString(msg.Text)
	if len(msg.Image) > 0 {
		log.Printf("[OPERATOR] dropping %d byte image %q (log channel)", len(msg.Image), msg.ImageName)
	}
	for _, row := range msg.Buttons {
		labels := make([]string, 0, len(row))
		for _, btn := range row {
			labels = append(labels, "["+btn.Label+"]")
		}
		b.WriteString("\n  ")
		b.WriteString(strings.Join(labels, " "))
	}
	log.Printf("[OPERATOR] %s", b.String())
	return nil
}

func (LogChannel) Poll(ctx context.Context) ([]Action, error) {
	// No inbound actions on the log channel; pace the caller's loop.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return nil, nil
	}
}
