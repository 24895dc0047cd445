package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// パスワード保存方式。
const (
	SchemePlain    = "plain"
	SchemeArgon2id = "argon2id"
	SchemeBcrypt   = "bcrypt"
)

// Argon2idのパラメータ。
const (
	argon2Time    = 1
	argon2Memory  = 32 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// ErrUnknownScheme は未知の保存方式が指定されたことを表す。
var ErrUnknownScheme = errors.New("unknown password scheme")

// PasswordHasher はパスワードの保存形式への変換と照合を行う。
type PasswordHasher interface {
	// Hash は保存用の文字列を返す。
	Hash(password string) (string, error)
	// Verify は平文パスワードと保存済みの値が一致するかを返す。
	Verify(password, stored string) bool
}

// NewPasswordHasher は保存方式名からPasswordHasherを生成する。空文字はplainとして扱う。
func NewPasswordHasher(scheme string) (PasswordHasher, error) {
	switch scheme {
	case "", SchemePlain:
		return PlainHasher{}, nil
	case SchemeArgon2id:
		return Argon2idHasher{}, nil
	case SchemeBcrypt:
		return BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// PlainHasher は平文のまま保存し、完全一致で照合する。
type PlainHasher struct{}

// Hash は入力をそのまま返す。
func (PlainHasher) Hash(password string) (string, error) {
	return password, nil
}

// Verify は完全一致で照合する。
func (PlainHasher) Verify(password, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
}

// Argon2idHasher はArgon2idでハッシュ化する。
// 形式: $argon2id$v=19$m=32768,t=1,p=4$<salt>$<hash>
type Argon2idHasher struct{}

// Hash はランダムなsaltでArgon2idハッシュを生成する。
func (Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify は保存済みハッシュのパラメータで再計算し、定数時間で比較する。
// 形式が不正な場合はfalseを返す。
func (Argon2idHasher) Verify(password, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[1] != SchemeArgon2id {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return false
	}

	other := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, other) == 1
}

// BcryptHasher はbcryptでハッシュ化する。
type BcryptHasher struct {
	Cost int
}

// Hash はbcryptハッシュを生成する。
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Verify はbcryptハッシュと照合する。
func (BcryptHasher) Verify(password, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}
