package app

import (
	"errors"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

var ErrNotFound = ports.ErrNotFound

// Codes d'erreur stables, persistés dans les résultats de batch et exposés
// par l'API. La politique de propagation est:
//   - invalid_rule / capacity: fatals, avant tout effet de bord;
//   - duplicate / transient_upload / failed_item / platform_rejection:
//     bornés à l'item, collectés dans le BatchResult;
//   - persistence: le seul code autorisé à interrompre un batch en cours.
const (
	CodeInvalidRule        = "invalid_rule"
	CodeCapacity           = "capacity"
	CodeDuplicate          = "duplicate"
	CodeTransientUpload    = "transient_upload"
	CodeFailedItem         = "failed_item"
	CodePlatformRejection  = "platform_rejection"
	CodePersistence        = "persistence"
	CodeDirectoryNotFound  = "directory_not_found"
	CodeCanceled           = "canceled"
	CodeSessionUnavailable = "session_unavailable"
)

// CodedError porte un code stable en plus du message.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *CodedError) Unwrap() error { return e.Err }

func coded(code, message string, err error) *CodedError {
	return &CodedError{Code: code, Message: message, Err: err}
}

// ErrorCode extrait le code d'une erreur, "" si elle n'en porte pas.
func ErrorCode(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
