package ports

import "errors"

var ErrNotFound = errors.New("not found")

var ErrConflict = errors.New("conflict")

// ErrUnsupportedTime: la plateforme refuse l'horaire demandé (hors de ses
// propres bornes). À distinguer d'une violation de règle interne.
var ErrUnsupportedTime = errors.New("schedule time rejected by platform")

// ErrRateLimited: le compte est limité côté plateforme. Le batch en cours
// doit s'arrêter, réessayer ne ferait qu'empirer.
var ErrRateLimited = errors.New("account rate limited")

// ErrNotLoggedIn: la session cookie n'a pas suffi à authentifier le compte.
var ErrNotLoggedIn = errors.New("not logged in")
