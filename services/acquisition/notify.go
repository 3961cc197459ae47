package acquisition

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

// Notifier receives reward orders for out-of-band fulfillment. Orders
// are manual: an operator sees the notification and delivers the reward.
type Notifier interface {
	RewardOrdered(ctx context.Context, participant int64, key string, reward Reward) error
}

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
	// Recipient is the operator mailbox that fulfills orders.
	Recipient string `json:"recipient"`
}

// EmailNotifier mails reward orders to the operator mailbox.
type EmailNotifier struct {
	config SmtpConfig
}

func NewEmailNotifier(config SmtpConfig) EmailNotifier {
	return EmailNotifier{config: config}
}

func (n EmailNotifier) RewardOrdered(ctx context.Context, participant int64, key string, reward Reward) error {
	_, span := tracer.Start(ctx, "RewardOrdered")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("SMS Gate <%s>", n.config.EmailAddress)
	mail.To = []string{n.config.Recipient}
	mail.Subject = fmt.Sprintf("Reward order: %s", reward.Label)

	body := fmt.Sprintf(`Participant %d ordered a reward.

Reward: %s (%s)
Price:  %d points

Fulfill the order and contact the participant directly.`,
		participant, reward.Label, key, reward.Price)
	mail.Text = []byte(body)

	err := mail.Send(
		fmt.Sprintf("%s:%d", n.config.Server, n.config.Port),
		smtp.PlainAuth("", n.config.EmailAddress, n.config.Password, n.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(fmt.Sprintf("%s:%d", n.config.Server, n.config.Port), nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send reward order")
		return err
	}
	return nil
}
