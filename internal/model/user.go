// Package model はドメインモデルを定義する。
package model

// User はストアの利用者アカウントを表す。
// emailとusernameはそれぞれ全ユーザーの中で一意。
// IsVerifiedは登録時false、メール確認の成功時に一度だけtrueになる。
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"` // PasswordHasherでエンコードされた値
	Phone      string `json:"phone"`
	FullName   string `json:"fullName"`
	IsVerified bool   `json:"isVerified"`
}

// PublicUser はUserからパスワードを除いた公開用の表現。
type PublicUser struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Phone      string `json:"phone"`
	FullName   string `json:"fullName"`
	IsVerified bool   `json:"isVerified"`
}

// Public はパスワードを含まない公開用の表現を返す。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		Phone:      u.Phone,
		FullName:   u.FullName,
		IsVerified: u.IsVerified,
	}
}
