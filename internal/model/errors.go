// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// メッセージはストアの表示言語（スペイン語）で記述する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, cart, checkout, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeDuplicateUsername  = "DUPLICATE_USERNAME"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeCodeMismatch       = "CODE_MISMATCH"
	ErrCodeItemNotFound       = "ITEM_NOT_FOUND"
	ErrCodeEmptyCart          = "EMPTY_CART"
	ErrCodeNotLoggedIn        = "NOT_LOGGED_IN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidQuantity    = "INVALID_QUANTITY"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeInvalidLocation    = "INVALID_LOCATION"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// HasCode はerrがcodeを持つAPIErrorかどうかを判定する。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "El email ya está registrado",
		Category: "auth",
		Action:   "Inicia sesión o utiliza otro email.",
	}
}

// NewDuplicateUsernameError はユーザー名重複エラーを生成する。
func NewDuplicateUsernameError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  "El nombre de usuario ya existe",
		Category: "auth",
		Action:   "Elige otro nombre de usuario.",
	}
}

// NewWeakPasswordError はパスワード長不足エラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("La contraseña debe tener al menos %d caracteres", minLength),
		Category: "validation",
		Action:   "Introduce una contraseña más larga.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// 未登録・未確認・パスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Credenciales incorrectas o email no verificado",
		Category: "auth",
		Action:   "Revisa tu email y contraseña, o verifica tu email.",
	}
}

// NewCodeMismatchError は確認コード不一致エラーを生成する。
func NewCodeMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeCodeMismatch,
		Message:  "Código incorrecto",
		Category: "auth",
		Action:   "Verifica el código e intenta nuevamente.",
	}
}

// NewItemNotFoundError はカート内に商品が存在しないエラーを生成する。
func NewItemNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("El producto no está en el carrito: %s", productID),
		Category: "cart",
		Action:   "Actualiza el carrito e intenta nuevamente.",
	}
}

// NewEmptyCartError は空のカートでチェックアウトを進めようとした場合のエラーを生成する。
func NewEmptyCartError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyCart,
		Message:  "Carrito vacío",
		Category: "checkout",
		Action:   "Agrega productos al carrito antes de continuar.",
	}
}

// NewNotLoggedInError はセッションが存在しない場合のエラーを生成する。
func NewNotLoggedInError() *APIError {
	return &APIError{
		Code:     ErrCodeNotLoggedIn,
		Message:  "Inicia sesión para continuar",
		Category: "auth",
		Action:   "Inicia sesión con una cuenta verificada.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "No existe una cuenta con ese email",
		Category: "auth",
		Action:   "Regístrate para crear una cuenta.",
	}
}

// NewProductNotFoundError は商品がカタログに存在しない場合のエラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("Producto no encontrado: %s", productID),
		Category: "cart",
		Action:   "Vuelve al catálogo y elige otro producto.",
	}
}

// NewInvalidQuantityError は数量が不正な場合のエラーを生成する。
func NewInvalidQuantityError(quantity int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuantity,
		Message:  fmt.Sprintf("Cantidad no válida: %d", quantity),
		Category: "validation",
		Action:   "La cantidad debe ser al menos 1.",
	}
}

// NewInsufficientStockError は在庫を超える数量が指定された場合のエラーを生成する。
func NewInsufficientStockError(productID string, stock int) *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientStock,
		Message:  fmt.Sprintf("Solo %d disponibles del producto %s", stock, productID),
		Category: "cart",
		Action:   "Reduce la cantidad solicitada.",
	}
}

// NewInvalidTransitionError はチェックアウトの状態遷移が不正な場合のエラーを生成する。
func NewInvalidTransitionError(from, action string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("La acción %q no está permitida en el paso %q", action, from),
		Category: "checkout",
		Action:   "Reinicia la compra desde el resumen.",
	}
}

// NewInvalidLocationError は配送先座標が不正な場合のエラーを生成する。
func NewInvalidLocationError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLocation,
		Message:  "Ubicación no válida",
		Category: "checkout",
		Action:   "Selecciona la ubicación de entrega en el mapa.",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Solicitud no válida: %s", reason),
		Category: "validation",
		Action:   "Revisa los datos enviados.",
	}
}

// NewInternalError は内部エラーの利用者向けエラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Ocurrió un error interno.",
		Category: "system",
		Action:   "Espera un momento e intenta nuevamente.",
	}
}
