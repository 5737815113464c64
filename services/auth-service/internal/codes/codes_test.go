package codes

import "testing"

func TestErrorMessage(t *testing.T) {
	if got := ErrorMessage(CredentialsSignin); got != "Invalid email or password." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := ErrorMessage("NoSuchCode"); got != DefaultError {
		t.Fatalf("expected default error, got %q", got)
	}
	if got := SuccessMessage(""); got != DefaultSuccess {
		t.Fatalf("expected default success, got %q", got)
	}
}

func TestTablesCoverEveryCode(t *testing.T) {
	errs, successes := Tables()
	for _, code := range []string{
		CredentialsSignin, InvalidCredentials, MissingFields, PasswordMismatch,
		PasswordComplexity, EmailCreateAccount, UnexpectedError, EmailNotFound,
		TokenInvalid, MissingToken, VerificationError, InvalidProvider, OAuthError,
	} {
		if errs[code] == "" {
			t.Errorf("missing error message for %s", code)
		}
	}
	for _, code := range []string{EmailSent, EmailVerified, PasswordReset} {
		if successes[code] == "" {
			t.Errorf("missing success message for %s", code)
		}
	}

	errs[CredentialsSignin] = "changed"
	if ErrorMessage(CredentialsSignin) == "changed" {
		t.Fatal("Tables must return a copy")
	}
}
