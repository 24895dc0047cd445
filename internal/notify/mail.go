package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/hitoshi/storefront/internal/model"
)

// MailConfig はSMTP送信の設定。
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// mailSender はgo-mailのクライアントのうち送信に使用するメソッド。
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// MailNotifier はSMTPでメールを送信するNotifier。
type MailNotifier struct {
	sender mailSender
	from   string
}

// NewMailNotifier はSMTPクライアントを構築してMailNotifierを生成する。
// 接続は送信のたびに行う。
func NewMailNotifier(cfg MailConfig) (*MailNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail from address is required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &MailNotifier{sender: client, from: cfg.From}, nil
}

// SendVerificationCode は確認コードのメールを送信する。
func (n *MailNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	msg, err := n.verificationMessage(email, code)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send verification code to %s: %w", email, err)
	}
	return nil
}

// SendOrderConfirmation は注文確認のメールを送信する。
func (n *MailNotifier) SendOrderConfirmation(ctx context.Context, email string, order *model.Order) error {
	msg, err := n.orderMessage(email, order)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send order confirmation to %s: %w", email, err)
	}
	return nil
}

func (n *MailNotifier) newMessage(to, subject string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	return msg, nil
}

func (n *MailNotifier) verificationMessage(email, code string) (*mail.Msg, error) {
	msg, err := n.newMessage(email, "Tu código de verificación")
	if err != nil {
		return nil, err
	}
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Hola,\n\nTu código de verificación es: %s\n\nIngrésalo en la tienda para activar tu cuenta.\n", code))
	return msg, nil
}

func (n *MailNotifier) orderMessage(email string, order *model.Order) (*mail.Msg, error) {
	msg, err := n.newMessage(email, "Confirmación de pedido "+order.ID)
	if err != nil {
		return nil, err
	}
	msg.SetBodyString(mail.TypeTextPlain, orderBody(order))
	return msg, nil
}

// orderBody は注文確認メールの本文を組み立てる。
func orderBody(order *model.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pedido: %s\n\n", order.ID)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "%d x %s  $%.2f\n", item.Quantity, item.Name, item.Subtotal)
	}
	fmt.Fprintf(&b, "\nTotal: $%.2f\n", order.Total)
	fmt.Fprintf(&b, "Entrega: %s\n", order.DeliveryAddress.Address)
	return b.String()
}

// compile-time interface check
var _ Notifier = (*MailNotifier)(nil)
