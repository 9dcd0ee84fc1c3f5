package ports

// Cookie est une entrée de session normalisée, prête à être injectée dans
// le contexte navigateur.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // epoch secondes, 0 = session
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
	SameSite string  `json:"sameSite"` // "Strict", "Lax" ou "None"
}

// SessionStore charge les cookies exportés par compte.
type SessionStore interface {
	ListAccounts() ([]string, error)
	LoadSession(account string) ([]Cookie, error)
}
