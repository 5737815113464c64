// Package codes holds the query codes the auth routes redirect with and the
// messages the sign-in pages show for them.
package codes

// Error codes.
const (
	CredentialsSignin  = "CredentialsSignin"
	InvalidCredentials = "InvalidCredentials"
	MissingFields      = "MissingFields"
	PasswordMismatch   = "PasswordMismatch"
	PasswordComplexity = "PasswordComplexity"
	EmailCreateAccount = "EmailCreateAccount"
	UnexpectedError    = "UnexpectedError"
	EmailNotFound      = "EmailNotFound"
	TokenInvalid       = "TokenInvalid"
	MissingToken       = "MissingToken"
	VerificationError  = "VerificationError"
	InvalidProvider    = "InvalidProvider"
	OAuthError         = "OAuthError"
)

// Success codes.
const (
	EmailSent     = "EmailSent"
	EmailVerified = "EmailVerified"
	PasswordReset = "PasswordReset"
)

const (
	DefaultError   = "Something went wrong. Please try again."
	DefaultSuccess = "Done."
)

var errorMessages = map[string]string{
	CredentialsSignin:  "Invalid email or password.",
	InvalidCredentials: "Please enter both your email and password.",
	MissingFields:      "Please fill in all required fields.",
	PasswordMismatch:   "Passwords do not match.",
	PasswordComplexity: "Password must be at least 8 characters.",
	EmailCreateAccount: "Could not create an account with this email. It may already be registered.",
	UnexpectedError:    "An unexpected error occurred. Please try again.",
	EmailNotFound:      "No account was found with this email address.",
	TokenInvalid:       "This reset link is invalid or has expired.",
	MissingToken:       "The verification link is missing its token.",
	VerificationError:  "We could not verify your email. The link may have expired.",
	InvalidProvider:    "This sign-in provider is not supported.",
	OAuthError:         "Sign-in with this provider failed. Please try again.",
}

var successMessages = map[string]string{
	EmailSent:     "Check your email for a link to continue.",
	EmailVerified: "Your email has been verified. You can now sign in.",
	PasswordReset: "Your password has been reset. Please sign in with your new password.",
}

// ErrorMessage returns the message for code, or DefaultError when the code
// is unknown.
func ErrorMessage(code string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return DefaultError
}

func SuccessMessage(code string) string {
	if msg, ok := successMessages[code]; ok {
		return msg
	}
	return DefaultSuccess
}

// Tables returns copies of both lookup tables.
func Tables() (errs map[string]string, successes map[string]string) {
	errs = make(map[string]string, len(errorMessages))
	for k, v := range errorMessages {
		errs[k] = v
	}
	successes = make(map[string]string, len(successMessages))
	for k, v := range successMessages {
		successes[k] = v
	}
	return errs, successes
}
