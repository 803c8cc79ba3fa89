// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/bvk/snipebot/notify"
)

// Notifier adapts the client into a decision-record sink. Only records an
// operator should see immediately are forwarded; analytics records such as
// pattern misses stay in the log and kafka sinks.
type Notifier struct {
	client *Client
}

var _ notify.Notifier = &Notifier{}

func (c *Client) Notifier() *Notifier {
	return &Notifier{client: c}
}

func (n *Notifier) Notify(ctx context.Context, ev *notify.Event) {
	var text string
	switch ev.Type {
	case notify.TypeTriggerFired:
		text = fmt.Sprintf("Trigger %q fired on %s: sold (tx %s)", ev.Trigger, ev.Token, ev.TxHash)
	case notify.TypeTradeExecuted:
		text = fmt.Sprintf("Executed %s on %s (tx %s)", strings.ToUpper(ev.Side), ev.Token, ev.TxHash)
	case notify.TypeTradeFailed:
		text = fmt.Sprintf("FAILED %s on %s: %s", strings.ToUpper(ev.Side), ev.Token, ev.Reason)
	case notify.TypeSafetyBlocked:
		text = fmt.Sprintf("Safety governor blocked a trade on %s: %s", ev.Token, ev.Reason)
	case notify.TypeScannerStopped:
		text = fmt.Sprintf("Block scanner STOPPED at block %d: %s", ev.BlockNumber, ev.Reason)
	default:
		return
	}
	// Best effort; SendMessage already logs delivery failures.
	_ = n.client.SendMessage(ctx, ev.At, text)
}
