package protocol

const (
	// Request validation.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrInvalidProgram = "E_INVALID_PROGRAM"

	// Access.
	ErrUnauthorized = "E_UNAUTHORIZED"
	ErrNoPermission = "E_NO_PERMISSION"

	// State.
	ErrNotFound = "E_NOT_FOUND"
	ErrConflict = "E_CONFLICT"
	ErrBusy     = "E_BUSY"
	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:     {},
	ErrInvalidProgram: {},
	ErrUnauthorized:   {},
	ErrNoPermission:   {},
	ErrNotFound:       {},
	ErrConflict:       {},
	ErrBusy:           {},
	ErrInternal:       {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ErrorBody is the JSON body of every failed API call.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewError(code, msg string) ErrorBody {
	return ErrorBody{Error: ErrorDetail{Code: code, Message: msg}}
}
