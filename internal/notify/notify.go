// Package notify は利用者への通知（確認コード、注文確認）を送信する。
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/storefront/internal/model"
)

// Notifier は利用者への通知を送信する。
// 呼び出し側は失敗をログに記録するのみで、操作自体は失敗させない。
type Notifier interface {
	// SendVerificationCode は登録確認コードを送信する。
	SendVerificationCode(ctx context.Context, email, code string) error
	// SendOrderConfirmation は注文確定の通知を送信する。
	SendOrderConfirmation(ctx context.Context, email string, order *model.Order) error
}

// LogNotifier は通知内容を構造化ログに出力する。SMTP未設定時に使用する。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。loggerがnilの場合はslog.Default()を使用する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendVerificationCode は確認コードをログに出力する。
func (n *LogNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	n.logger.InfoContext(ctx, "verification code issued",
		slog.String("email", email),
		slog.String("code", code),
	)
	return nil
}

// SendOrderConfirmation は注文の概要をログに出力する。
func (n *LogNotifier) SendOrderConfirmation(ctx context.Context, email string, order *model.Order) error {
	n.logger.InfoContext(ctx, "order confirmation",
		slog.String("email", email),
		slog.String("order_id", order.ID),
		slog.Int("items", len(order.Items)),
		slog.Float64("total", order.Total),
	)
	return nil
}

// AsyncNotifier は内部のNotifierをgoroutineで呼び出し、結果を待たずに返る。
// 送信失敗はログに記録する。Closeで送信中の通知の完了を待つ。
type AsyncNotifier struct {
	inner  Notifier
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewAsync はAsyncNotifierを生成する。
func NewAsync(inner Notifier, logger *slog.Logger) *AsyncNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncNotifier{inner: inner, logger: logger}
}

// SendVerificationCode は確認コードの送信をバックグラウンドで開始する。
func (a *AsyncNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	a.dispatch(ctx, "verification_code", func(ctx context.Context) error {
		return a.inner.SendVerificationCode(ctx, email, code)
	})
	return nil
}

// SendOrderConfirmation は注文確認の送信をバックグラウンドで開始する。
func (a *AsyncNotifier) SendOrderConfirmation(ctx context.Context, email string, order *model.Order) error {
	o := *order
	a.dispatch(ctx, "order_confirmation", func(ctx context.Context) error {
		return a.inner.SendOrderConfirmation(ctx, email, &o)
	})
	return nil
}

// Close は送信中の通知の完了を待つ。
func (a *AsyncNotifier) Close() {
	a.wg.Wait()
}

func (a *AsyncNotifier) dispatch(ctx context.Context, kind string, send func(context.Context) error) {
	// リクエストのキャンセルに巻き込まれないよう値だけを引き継ぐ
	ctx = context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := send(ctx); err != nil {
			a.logger.Warn("notification failed",
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// compile-time interface check
var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*AsyncNotifier)(nil)
)
