package repository

// ストア上のキー。名前空間の接頭辞はstore.Namespacedが付与する。
const (
	KeyUsers             = "users"
	KeyCurrentUser       = "current_user"
	KeyCart              = "cart"
	KeyOrders            = "orders"
	KeyVerificationCodes = "verification_codes"
)

// CartKey はカート所有者に対応するキーを返す。
func CartKey(owner string) string {
	if owner == "" {
		return KeyCart
	}
	return KeyCart + ":" + owner
}
