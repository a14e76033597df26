// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package account

import (
	"context"
	"log/slog"
)

// Notifier delivers confirmation and reset links to users. Delivery
// mechanics (SMTP, SendGrid, ...) live outside this subsystem.
type Notifier interface {
	Send(ctx context.Context, toEmail, toName, bodyText, bodyLink, subject string) error
}

// LogNotifier writes notifications to the log instead of sending them.
// Used in development wiring and tests; production wiring supplies a real
// mailer.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the notification.
func (n *LogNotifier) Send(ctx context.Context, toEmail, toName, bodyText, bodyLink, subject string) error {
	n.logger.InfoContext(ctx, "notification",
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"text", bodyText,
		"link", bodyLink,
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
