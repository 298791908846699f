// Package opsalert posts operational notifications to Slack. It raises two
// alerts: a pallet being put into maintenance while still holding occupants
// (spec.md §4.D.4 preserves the source's non-release behavior but flags it
// as a warning event), and a machine whose heartbeat has gone stale.
package opsalert

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// Notifier posts ops alerts to a configured Slack channel. A Notifier built
// without a bot token is a noop: calls are logged but nothing is sent, so
// the machine package never needs to branch on whether Slack is configured.
type Notifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// New creates a Notifier. If botToken or channel is empty, the alert methods
// only log and send nothing.
func New(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{client: client, channel: channel, logger: logger}
}

// IsEnabled reports whether this Notifier will actually deliver to Slack.
func (n *Notifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// MaintenanceOnOccupiedPallet posts a warning that an operator declared a
// pallet under maintenance while vehicles were still parked on it.
func (n *Notifier) MaintenanceOnOccupiedPallet(ctx context.Context, machineCode string, palletNumber, occupantCount int, notes string) {
	if !n.IsEnabled() {
		n.logger.Warn("pallet entered maintenance with occupants (slack disabled)",
			"machine_code", machineCode, "pallet_number", palletNumber, "occupant_count", occupantCount)
		return
	}

	text := fmt.Sprintf(":warning: pallet %d on machine %s set to maintenance with %d vehicle(s) still parked",
		palletNumber, machineCode, occupantCount)
	if notes != "" {
		text += fmt.Sprintf(" — %s", notes)
	}

	if _, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false)); err != nil {
		n.logger.Error("posting maintenance alert to slack", "error", err,
			"machine_code", machineCode, "pallet_number", palletNumber)
	}
}

// StaleHeartbeat posts a warning that a machine has not reported a
// heartbeat recently enough to be considered online.
func (n *Notifier) StaleHeartbeat(ctx context.Context, machineCode string, lastSeenAgo string) {
	if !n.IsEnabled() {
		n.logger.Warn("machine heartbeat stale (slack disabled)", "machine_code", machineCode, "last_seen_ago", lastSeenAgo)
		return
	}

	text := fmt.Sprintf(":satellite: machine %s has not reported a heartbeat in %s", machineCode, lastSeenAgo)
	if _, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false)); err != nil {
		n.logger.Error("posting stale heartbeat alert to slack", "error", err, "machine_code", machineCode)
	}
}
