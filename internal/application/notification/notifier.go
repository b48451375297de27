package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/member-auth/internal/infrastructure/sns"
)

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, ev sns.Event) error
}

// Event types published to the notification topic.
const (
	EventVerificationSent = "otp.verification_sent"
	EventLoginCodeSent    = "otp.login_sent"
	EventWelcomeSent      = "member.welcomed"
)

// Notifier delivers member-facing email. When a publisher is configured each
// successful delivery is also announced on the topic; publish failures are
// logged and never fail the delivery.
type Notifier struct {
	mailer    mailer
	publisher eventPublisher
}

type NotifierDeps struct {
	Mailer    mailer
	Publisher eventPublisher // optional
}

func NewNotifier(deps NotifierDeps) *Notifier {
	return &Notifier{mailer: deps.Mailer, publisher: deps.Publisher}
}

func (n *Notifier) SendVerificationCode(ctx context.Context, email, otp string) error {
	body := fmt.Sprintf("Your email verification OTP is: %s. This OTP will expire in 5 minutes.", otp)
	if err := n.mailer.SendEmail(ctx, email, "Verify Your Email", body); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	n.announce(ctx, sns.Event{Type: EventVerificationSent, Email: email})
	return nil
}

func (n *Notifier) SendLoginCode(ctx context.Context, email, otp string) error {
	body := fmt.Sprintf("Your OTP is: %s. This OTP will expire in 1 minute.", otp)
	if err := n.mailer.SendEmail(ctx, email, "Your OTP for Authentication", body); err != nil {
		return fmt.Errorf("send login code: %w", err)
	}
	n.announce(ctx, sns.Event{Type: EventLoginCodeSent, Email: email})
	return nil
}

func (n *Notifier) SendWelcome(ctx context.Context, email, name string) error {
	body := fmt.Sprintf("Dear %s,\n\nWelcome to our application! We're glad to have you on board.", name)
	if err := n.mailer.SendEmail(ctx, email, "Welcome to Our Application!", body); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	n.announce(ctx, sns.Event{Type: EventWelcomeSent, Email: email})
	return nil
}

func (n *Notifier) announce(ctx context.Context, ev sns.Event) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("notification event publish failed", "type", ev.Type, "err", err)
	}
}
