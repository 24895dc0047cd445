// Package account はアカウントの登録、メール確認、ログインとセッション管理を提供する。
package account

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/notify"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/security"
)

// DefaultMinPasswordLength はパスワードの最小文字数。
const DefaultMinPasswordLength = 6

// RegisterInput は登録フォームの入力値。
type RegisterInput struct {
	Email    string
	Password string
	Phone    string
	FullName string
	Username string
}

// RegisterResult は登録結果。
// VerificationCodeは外部のメール送信を持たない構成で画面に表示するために返す。
type RegisterResult struct {
	User             *model.User
	VerificationCode string
}

// CodeGenerator は6桁の確認コードを生成する。
type CodeGenerator func() (string, error)

// ServiceConfig はアカウントサービスの設定と任意の依存。
// nilのフィールドには既定の実装が使用される。
type ServiceConfig struct {
	MinPasswordLength int
	Hasher            security.PasswordHasher
	Sanitizer         security.TextSanitizer
	Notifier          notify.Notifier
	Metrics           metrics.MetricsCollector
	GenerateCode      CodeGenerator
}

// Service はアカウントに関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	codes    repository.VerificationCodeRepository
	sessions repository.SessionRepository

	minPasswordLength int
	hasher            security.PasswordHasher
	sanitizer         security.TextSanitizer
	notifier          notify.Notifier
	metrics           metrics.MetricsCollector
	generateCode      CodeGenerator
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	codes repository.VerificationCodeRepository,
	sessions repository.SessionRepository,
	config ServiceConfig,
) *Service {
	s := &Service{
		users:             users,
		codes:             codes,
		sessions:          sessions,
		minPasswordLength: config.MinPasswordLength,
		hasher:            config.Hasher,
		sanitizer:         config.Sanitizer,
		notifier:          config.Notifier,
		metrics:           config.Metrics,
		generateCode:      config.GenerateCode,
	}

	if s.minPasswordLength <= 0 {
		s.minPasswordLength = DefaultMinPasswordLength
	}
	if s.hasher == nil {
		s.hasher = security.PlainHasher{}
	}
	if s.sanitizer == nil {
		s.sanitizer = security.NewTextSanitizer()
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(nil)
	}
	if s.generateCode == nil {
		s.generateCode = GenerateVerificationCode
	}

	return s
}

// Register は新しいアカウントを未確認状態で作成し、確認コードを発行する。
// 検査順: 無害化後の必須項目 → メール重複 → ユーザー名重複 → パスワード長。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.FullName = s.sanitizer.Sanitize(in.FullName)
	in.Username = s.sanitizer.Sanitize(in.Username)
	in.Phone = s.sanitizer.Sanitize(in.Phone)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"phone", in.Phone},
		{"fullName", in.FullName},
		{"username", in.Username},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, model.NewInvalidRequestError("campos obligatorios: " + strings.Join(missing, ", "))
	}

	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("メールアドレスの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	existing, err = s.users.FindByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("ユーザー名の確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateUsernameError()
	}

	if utf8.RuneCountInString(in.Password) < s.minPasswordLength {
		return nil, model.NewWeakPasswordError(s.minPasswordLength)
	}

	stored, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードの変換に失敗しました: %w", err)
	}

	user := &model.User{
		ID:         uuid.New().String(),
		Email:      in.Email,
		Username:   in.Username,
		Password:   stored,
		Phone:      in.Phone,
		FullName:   in.FullName,
		IsVerified: false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	code, err := s.issueCode(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordRegistration()
	}
	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return &RegisterResult{User: user, VerificationCode: code}, nil
}

// ResendCode は登録済みメールアドレスに新しい確認コードを発行する。
// 以前のコードは無効になる。
func (s *Service) ResendCode(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}
	return s.issueCode(ctx, email)
}

// Verify は確認コードを照合し、一致した場合はユーザーを確認済みにしてコードを削除する。
// 不一致の場合はユーザーもコードも変更しない。
func (s *Service) Verify(ctx context.Context, email, code string) error {
	stored, err := s.codes.Find(ctx, email)
	if err != nil {
		return fmt.Errorf("確認コードの取得に失敗しました: %w", err)
	}
	if stored == "" || stored != code {
		s.recordVerification(false)
		return model.NewCodeMismatchError()
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		s.recordVerification(false)
		return model.NewCodeMismatchError()
	}

	user.IsVerified = true
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	if err := s.codes.Delete(ctx, email); err != nil {
		return fmt.Errorf("確認コードの削除に失敗しました: %w", err)
	}

	s.recordVerification(true)
	slog.Info("user verified", slog.String("user_id", user.ID))
	return nil
}

// Login は確認済みユーザーの資格情報を照合し、セッションを設定する。
// 未登録、未確認、パスワード不一致はいずれもINVALID_CREDENTIALSとなり区別しない。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil || !user.IsVerified || !s.hasher.Verify(password, user.Password) {
		s.recordLogin(false)
		return nil, model.NewInvalidCredentialsError()
	}

	if err := s.sessions.Set(ctx, user); err != nil {
		return nil, fmt.Errorf("セッションの設定に失敗しました: %w", err)
	}

	s.recordLogin(true)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return user, nil
}

// Logout はセッションを削除する。未ログインでも成功する。
func (s *Service) Logout(ctx context.Context) error {
	if err := s.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	return nil
}

// CurrentUser はセッションのユーザーを返す。未ログインの場合はnilを返す。
func (s *Service) CurrentUser(ctx context.Context) (*model.User, error) {
	user, err := s.sessions.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	return user, nil
}

// issueCode は新しいコードを保存して通知する。通知の失敗は登録を失敗させない。
func (s *Service) issueCode(ctx context.Context, email string) (string, error) {
	code, err := s.generateCode()
	if err != nil {
		return "", fmt.Errorf("確認コードの生成に失敗しました: %w", err)
	}
	if err := s.codes.Put(ctx, email, code); err != nil {
		return "", fmt.Errorf("確認コードの保存に失敗しました: %w", err)
	}

	if err := s.notifier.SendVerificationCode(ctx, email, code); err != nil {
		slog.Warn("failed to send verification code",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}
	return code, nil
}

func (s *Service) recordVerification(success bool) {
	if s.metrics != nil {
		s.metrics.RecordVerification(success)
	}
}

func (s *Service) recordLogin(success bool) {
	if s.metrics != nil {
		s.metrics.RecordLogin(success)
	}
}

var codeRange = big.NewInt(900000)

// GenerateVerificationCode は100000〜999999の一様乱数を10進6桁の文字列で返す。
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeRange)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}
