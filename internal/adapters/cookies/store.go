// Package cookies charge les exports de cookies TikTok par compte
// (convention: @<account>-cookie.json) et les normalise pour l'injection
// dans un contexte navigateur.
package cookies

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

var cookieFilePattern = regexp.MustCompile(`(?i)^@(.+)-cookie\.json$`)

// Les exports Chrome/extensions utilisent des valeurs sameSite variées;
// le navigateur n'accepte que Strict, Lax et None.
var sameSiteMap = map[string]string{
	"strict":         "Strict",
	"lax":            "Lax",
	"none":           "None",
	"no_restriction": "None",
	"unspecified":    "Lax",
}

type Store struct {
	logger zerolog.Logger
	dir    string
}

func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cookies dir: %w", err)
	}
	return &Store{logger: logger, dir: dir}, nil
}

func (s *Store) ListAccounts() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if m := cookieFilePattern.FindStringSubmatch(e.Name()); m != nil {
			accounts = append(accounts, m[1])
		}
	}
	sort.Strings(accounts)
	return accounts, nil
}

// rawCookie tolère les types approximatifs des exports (sameSite numérique,
// expirationDate en float ou millisecondes, value non-string).
type rawCookie struct {
	Name           string          `json:"name"`
	Value          json.RawMessage `json:"value"`
	Domain         string          `json:"domain"`
	Path           string          `json:"path"`
	Secure         bool            `json:"secure"`
	HTTPOnly       bool            `json:"httpOnly"`
	SameSite       json.RawMessage `json:"sameSite"`
	ExpirationDate float64         `json:"expirationDate"`
	Session        bool            `json:"session"`
}

func (s *Store) LoadSession(account string) ([]ports.Cookie, error) {
	path := filepath.Join(s.dir, "@"+strings.TrimPrefix(account, "@")+"-cookie.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: cookie file for @%s", ports.ErrNotFound, account)
		}
		return nil, err
	}

	var raw []rawCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cookie file for @%s is not a JSON array: %w", account, err)
	}

	cookies := make([]ports.Cookie, 0, len(raw))
	for _, rc := range raw {
		if rc.Name == "" || rc.Domain == "" {
			continue
		}
		value, ok := decodeValue(rc.Value)
		if !ok {
			continue
		}
		path := rc.Path
		if !strings.HasPrefix(path, "/") {
			path = "/"
		}

		c := ports.Cookie{
			Name:     rc.Name,
			Value:    value,
			Domain:   rc.Domain,
			Path:     path,
			Secure:   rc.Secure,
			HTTPOnly: rc.HTTPOnly,
			SameSite: normalizeSameSite(rc.SameSite),
		}
		if !rc.Session && rc.ExpirationDate > 0 {
			exp := rc.ExpirationDate
			// Les timestamps en millisecondes sont ramenés en secondes.
			if exp > 10_000_000_000 {
				exp = exp / 1000
			}
			c.Expires = exp
		}
		cookies = append(cookies, c)
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("no usable cookie for @%s", account)
	}

	s.logger.Info().Str("account", account).Int("cookies", len(cookies)).Msg("session loaded")
	return cookies, nil
}

func decodeValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, true
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String(), true
	}
	return "", false
}

func normalizeSameSite(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "Lax"
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, ok := sameSiteMap[strings.ToLower(strings.TrimSpace(str))]; ok {
			return v
		}
		return "Lax"
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		switch int(num) {
		case 0:
			return "None"
		case 2:
			return "Strict"
		default:
			return "Lax"
		}
	}
	return "Lax"
}
