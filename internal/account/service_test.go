package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/store"
)

// --- モック定義 ---

type mockNotifier struct {
	sendCodeFn func(ctx context.Context, email, code string) error
	sent       []string
}

func (m *mockNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	m.sent = append(m.sent, email+":"+code)
	if m.sendCodeFn != nil {
		return m.sendCodeFn(ctx, email, code)
	}
	return nil
}

func (m *mockNotifier) SendOrderConfirmation(context.Context, string, *model.Order) error {
	return nil
}

type mockMetrics struct {
	registrations int
	verifications map[bool]int
	logins        map[bool]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{verifications: map[bool]int{}, logins: map[bool]int{}}
}

func (m *mockMetrics) RecordRegistration() { m.registrations++ }
func (m *mockMetrics) RecordVerification(success bool) { m.verifications[success]++ }
func (m *mockMetrics) RecordLogin(success bool) { m.logins[success]++ }
func (m *mockMetrics) RecordCartOperation(string) {}
func (m *mockMetrics) RecordCheckoutTransition(_, _ string) {}
func (m *mockMetrics) RecordOrderPlaced(float64) {}
func (m *mockMetrics) RecordHTTPStatus(int) {}
func (m *mockMetrics) RecordRequestLatency(_ time.Duration) {}

type mockUserRepo struct {
	repository.UserRepository
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.findByEmailFn(ctx, email)
}

// --- ヘルパー ---

type fixture struct {
	svc      *Service
	users    *repository.KVUserRepo
	codes    *repository.KVVerificationCodeRepo
	sessions *repository.KVSessionRepo
	notifier *mockNotifier
	metrics  *mockMetrics
}

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()

	s := store.NewMemoryStore()
	f := &fixture{
		users:    repository.NewKVUserRepo(s),
		codes:    repository.NewKVVerificationCodeRepo(s),
		sessions: repository.NewKVSessionRepo(s),
		notifier: &mockNotifier{},
		metrics:  newMockMetrics(),
	}

	next := 0
	gen := GenerateVerificationCode
	if len(codes) > 0 {
		gen = func() (string, error) {
			c := codes[next%len(codes)]
			next++
			return c, nil
		}
	}

	f.svc = NewService(f.users, f.codes, f.sessions, ServiceConfig{
		Notifier:     f.notifier,
		Metrics:      f.metrics,
		GenerateCode: gen,
	})
	return f
}

func validInput() RegisterInput {
	return RegisterInput{
		Email:    "ana@example.com",
		Password: "secret1",
		Phone:    "+51 999 888 777",
		FullName: "Ana Torres",
		Username: "ana",
	}
}

// --- Register ---

func TestRegister_CreatesUnverifiedUserAndCode(t *testing.T) {
	f := newFixture(t, "123456")
	ctx := context.Background()

	res, err := f.svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if res.User.ID == "" {
		t.Error("expected generated user ID")
	}
	if res.User.IsVerified {
		t.Error("new user must be unverified")
	}
	if res.VerificationCode != "123456" {
		t.Errorf("code: got %q", res.VerificationCode)
	}

	stored, _ := f.codes.Find(ctx, "ana@example.com")
	if stored != "123456" {
		t.Errorf("stored code: got %q", stored)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != "ana@example.com:123456" {
		t.Errorf("notifier: got %v", f.notifier.sent)
	}
	if f.metrics.registrations != 1 {
		t.Errorf("registrations metric: got %d", f.metrics.registrations)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	in := validInput()
	in.Username = "otra"
	_, err := f.svc.Register(ctx, in)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDuplicateEmail {
		t.Fatalf("expected DUPLICATE_EMAIL, got %v", err)
	}

	users, _ := f.users.List(ctx)
	if len(users) != 1 {
		t.Errorf("expected exactly one user, got %d", len(users))
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	in := validInput()
	in.Email = "otra@example.com"
	_, err := f.svc.Register(ctx, in)
	if !model.HasCode(err, model.ErrCodeDuplicateUsername) {
		t.Fatalf("expected DUPLICATE_USERNAME, got %v", err)
	}
}

func TestRegister_CheckOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	tests := []struct {
		name string
		in   RegisterInput
		want string
	}{
		{
			name: "重複メールは重複ユーザー名と弱いパスワードより優先",
			in:   RegisterInput{Email: "ana@example.com", Username: "ana", Password: "123", Phone: "999", FullName: "Ana"},
			want: model.ErrCodeDuplicateEmail,
		},
		{
			name: "重複ユーザー名は弱いパスワードより優先",
			in:   RegisterInput{Email: "nuevo@example.com", Username: "ana", Password: "123", Phone: "999", FullName: "Ana"},
			want: model.ErrCodeDuplicateUsername,
		},
		{
			name: "弱いパスワード",
			in:   RegisterInput{Email: "nuevo@example.com", Username: "nuevo", Password: "12345", Phone: "999", FullName: "Nuevo"},
			want: model.ErrCodeWeakPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.in)
			if !model.HasCode(err, tt.want) {
				t.Errorf("expected %s, got %v", tt.want, err)
			}
		})
	}
}

func TestRegister_PasswordOfMinimumLengthAccepted(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Password = "123456"

	if _, err := f.svc.Register(context.Background(), in); err != nil {
		t.Fatalf("6-character password should be accepted, got %v", err)
	}
}

func TestRegister_SanitizesDisplayFields(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.FullName = "<b>Ana</b> Torres<script>alert(1)</script>"
	in.Username = " ana "

	res, err := f.svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if res.User.FullName != "Ana Torres" {
		t.Errorf("FullName: got %q", res.User.FullName)
	}
	if res.User.Username != "ana" {
		t.Errorf("Username: got %q", res.User.Username)
	}
}

func TestRegister_FieldsEmptyAfterSanitizing_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput()
	in.Username = "<script>alice</script>"
	_, err := f.svc.Register(ctx, in)
	if !model.HasCode(err, model.ErrCodeInvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}

	in = validInput()
	in.FullName = "<b></b>"
	_, err = f.svc.Register(ctx, in)
	if !model.HasCode(err, model.ErrCodeInvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST for fullName, got %v", err)
	}

	users, _ := f.users.List(ctx)
	if len(users) != 0 {
		t.Fatalf("no user should be created, got %d", len(users))
	}

	in = validInput()
	in.Username = "<b></b>"
	in.Email = "otra@example.com"
	_, err = f.svc.Register(ctx, in)
	if model.HasCode(err, model.ErrCodeDuplicateUsername) {
		t.Error("empty sanitized username must not collide as a duplicate")
	}
	if !model.HasCode(err, model.ErrCodeInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestRegister_NotifierFailure_DoesNotFailRegistration(t *testing.T) {
	f := newFixture(t, "111111")
	f.notifier.sendCodeFn = func(context.Context, string, string) error {
		return errors.New("smtp down")
	}

	res, err := f.svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Register should succeed despite notifier failure, got %v", err)
	}
	if res.VerificationCode != "111111" {
		t.Errorf("code: got %q", res.VerificationCode)
	}
}

func TestRegister_WithArgon2id_StoresHash(t *testing.T) {
	s := store.NewMemoryStore()
	users := repository.NewKVUserRepo(s)
	svc := NewService(users, repository.NewKVVerificationCodeRepo(s), repository.NewKVSessionRepo(s), ServiceConfig{
		Hasher:   security.Argon2idHasher{},
		Notifier: &mockNotifier{},
	})
	ctx := context.Background()

	res, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !strings.HasPrefix(res.User.Password, "$argon2id$") {
		t.Errorf("password should be hashed, got %q", res.User.Password)
	}

	if err := svc.Verify(ctx, "ana@example.com", res.VerificationCode); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if _, err := svc.Login(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("Login with hashed password failed: %v", err)
	}
}

func TestRegister_RepositoryFailure_IsWrapped(t *testing.T) {
	s := store.NewMemoryStore()
	sentinel := errors.New("disk full")
	users := &mockUserRepo{findByEmailFn: func(context.Context, string) (*model.User, error) {
		return nil, sentinel
	}}
	svc := NewService(users, repository.NewKVVerificationCodeRepo(s), repository.NewKVSessionRepo(s), ServiceConfig{})

	_, err := svc.Register(context.Background(), validInput())
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
}

// --- ResendCode ---

func TestResendCode_IssuesNewCode(t *testing.T) {
	f := newFixture(t, "111111", "222222")
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	code, err := f.svc.ResendCode(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("ResendCode failed: %v", err)
	}
	if code != "222222" {
		t.Errorf("code: got %q", code)
	}

	if err := f.svc.Verify(ctx, "ana@example.com", "111111"); !model.HasCode(err, model.ErrCodeCodeMismatch) {
		t.Errorf("old code must no longer verify, got %v", err)
	}
	if err := f.svc.Verify(ctx, "ana@example.com", "222222"); err != nil {
		t.Errorf("new code should verify, got %v", err)
	}
}

func TestResendCode_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResendCode(context.Background(), "nadie@example.com")
	if !model.HasCode(err, model.ErrCodeUserNotFound) {
		t.Errorf("expected USER_NOT_FOUND, got %v", err)
	}
}

// --- Verify ---

func TestVerify_WrongCodeThenRightCode(t *testing.T) {
	f := newFixture(t, "123456")
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := f.svc.Verify(ctx, "ana@example.com", "000000"); !model.HasCode(err, model.ErrCodeCodeMismatch) {
		t.Fatalf("expected CODE_MISMATCH, got %v", err)
	}
	u, _ := f.users.FindByEmail(ctx, "ana@example.com")
	if u.IsVerified {
		t.Fatal("wrong code must not verify the user")
	}
	if code, _ := f.codes.Find(ctx, "ana@example.com"); code != "123456" {
		t.Fatalf("wrong code must keep the stored code, got %q", code)
	}

	if err := f.svc.Verify(ctx, "ana@example.com", "123456"); err != nil {
		t.Fatalf("Verify with right code failed: %v", err)
	}
	u, _ = f.users.FindByEmail(ctx, "ana@example.com")
	if !u.IsVerified {
		t.Error("user should be verified")
	}
	if code, _ := f.codes.Find(ctx, "ana@example.com"); code != "" {
		t.Errorf("code should be deleted, got %q", code)
	}

	if err := f.svc.Verify(ctx, "ana@example.com", "123456"); !model.HasCode(err, model.ErrCodeCodeMismatch) {
		t.Errorf("reusing the code must fail, got %v", err)
	}

	if f.metrics.verifications[true] != 1 || f.metrics.verifications[false] != 2 {
		t.Errorf("verification metrics: got %v", f.metrics.verifications)
	}
}

func TestVerify_CodeWithoutUser_LeavesCodeUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.codes.Put(ctx, "huerfano@example.com", "555555"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := f.svc.Verify(ctx, "huerfano@example.com", "555555"); !model.HasCode(err, model.ErrCodeCodeMismatch) {
		t.Fatalf("expected CODE_MISMATCH, got %v", err)
	}
	if code, _ := f.codes.Find(ctx, "huerfano@example.com"); code != "555555" {
		t.Errorf("code must not be mutated, got %q", code)
	}
}

func TestVerify_EmptyCodeNeverMatches(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.Verify(context.Background(), "ana@example.com", ""); !model.HasCode(err, model.ErrCodeCodeMismatch) {
		t.Errorf("expected CODE_MISMATCH, got %v", err)
	}
}

// --- Login / Logout ---

func TestLogin_BeforeAndAfterVerification(t *testing.T) {
	f := newFixture(t, "123456")
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := f.svc.Login(ctx, "ana@example.com", "secret1"); !model.HasCode(err, model.ErrCodeInvalidCredentials) {
		t.Fatalf("login before verification should fail, got %v", err)
	}
	if cur, _ := f.svc.CurrentUser(ctx); cur != nil {
		t.Fatalf("session must be empty, got %+v", cur)
	}

	if err := f.svc.Verify(ctx, "ana@example.com", "123456"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	user, err := f.svc.Login(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	cur, err := f.svc.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if cur == nil || cur.ID != user.ID {
		t.Errorf("session: got %+v, want %s", cur, user.ID)
	}
}

func TestLogin_WrongPassword_DoesNotMutateSession(t *testing.T) {
	f := newFixture(t, "123456")
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := f.svc.Verify(ctx, "ana@example.com", "123456"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	first, err := f.svc.Login(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := f.svc.Login(ctx, "ana@example.com", "wrong-pass"); !model.HasCode(err, model.ErrCodeInvalidCredentials) {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}

	cur, _ := f.svc.CurrentUser(ctx)
	if cur == nil || cur.ID != first.ID {
		t.Errorf("session must be unchanged, got %+v", cur)
	}
	if f.metrics.logins[false] != 1 || f.metrics.logins[true] != 1 {
		t.Errorf("login metrics: got %v", f.metrics.logins)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "nadie@example.com", "secret1")
	if !model.HasCode(err, model.ErrCodeInvalidCredentials) {
		t.Errorf("expected INVALID_CREDENTIALS, got %v", err)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.sessions.Set(ctx, &model.User{ID: "u1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := f.svc.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if err := f.svc.Logout(ctx); err != nil {
		t.Fatalf("second Logout failed: %v", err)
	}
	if cur, _ := f.svc.CurrentUser(ctx); cur != nil {
		t.Errorf("expected no session, got %+v", cur)
	}
}

// --- GenerateVerificationCode ---

func TestGenerateVerificationCode_SixDigitsInRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateVerificationCode()
		if err != nil {
			t.Fatalf("GenerateVerificationCode failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q should have 6 digits", code)
		}
		if code[0] == '0' {
			t.Fatalf("code %q must be >= 100000", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q must be numeric", code)
			}
		}
	}
}
