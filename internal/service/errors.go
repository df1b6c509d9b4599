package service

// ErrorKind clasifica los errores de negocio para la capa HTTP.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindConflict
	KindAuth
	KindNotFound
	KindUpstream
	KindState
	KindRateLimited
)

// Error es un error de negocio con mensaje visible para el cliente.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	ErrMissingFields      = newError(KindValidation, "All fields are required")
	ErrInvalidUsername    = newError(KindValidation, "Username can only contain letters, numbers, underscores, hyphens, and periods (5-30 characters).")
	ErrInvalidEmail       = newError(KindValidation, "Invalid email format")
	ErrPasswordTooShort   = newError(KindValidation, "Password must be at least 8 characters long")
	ErrInvalidPassword    = newError(KindValidation, "Password must be at least 8 characters and contain only ASCII characters.")
	ErrPasswordMismatch   = newError(KindValidation, "New password and confirm password do not match")
	ErrOTPRequired        = newError(KindValidation, "OTP is required")
	ErrUnsupportedLang    = newError(KindValidation, "Unsupported language")
	ErrInvalidExpiry      = newError(KindValidation, "Invalid expiry time. Please choose a valid value.")
	ErrInvalidShareID     = newError(KindValidation, "Invalid 'shareId' format. It should be 'language-file_id'.")
	ErrEmailInUse         = newError(KindConflict, "Email already in use")
	ErrUsernameTaken      = newError(KindConflict, "Username already taken")
	ErrUsernameReserved   = newError(KindConflict, "This username is reserved and cannot be used")
	ErrShareIDTaken       = newError(KindConflict, "Shared link already exists")
	ErrInvalidCredentials = newError(KindState, "Invalid credentials")
	ErrEmailNotVerified   = newError(KindState, "Email not verified")
	ErrAlreadyVerified    = newError(KindState, "Email is already verified")
	ErrOTPInvalid         = newError(KindState, "Invalid OTP")
	ErrOTPExpired         = newError(KindState, "OTP has expired")
	ErrIncorrectPassword  = newError(KindState, "Incorrect password")
	ErrUserNotFound       = newError(KindState, "User not found")
	ErrUseGoogleLogin     = newError(KindAuth, "Login with Google")
	ErrUnauthorized       = newError(KindAuth, "Invalid or expired token")
	ErrInvalidGoogleToken = newError(KindAuth, "Invalid Google token or authentication failed.")
	ErrFileIDMismatch     = newError(KindAuth, "File access denied")
	ErrAccountNotFound    = newError(KindNotFound, "User not found")
	ErrSharedLinkNotFound = newError(KindNotFound, "Shared link not found")
	ErrSnippetNotFound    = newError(KindNotFound, "File not found")
	ErrEmailSendFailure   = newError(KindUpstream, "Failed to send email, please try again later")
	ErrUsernameExhausted  = newError(KindUpstream, "Unable to generate unique username.")
	ErrSnippetStoreDown   = newError(KindUpstream, "Failed to connect to Redis")
	ErrRateLimited        = newError(KindRateLimited, "Too many requests, please try again later")
)
