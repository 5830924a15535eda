package apperr

// Shared user-facing messages.  Login failures are deliberately
// specific ("no account" vs "wrong password") to aid legitimate users;
// the auth rate limiter bounds enumeration abuse.
const (
	MsgNoAccount         = "No account found with this email address. Please check your email or sign up for a new account."
	MsgWrongPassword     = "Incorrect password. Please check your password and try again."
	MsgAccountInactive   = "Your account is inactive. Please contact support to reactivate your account."
	MsgAccountSuspended  = "Your account has been suspended. Please contact support for assistance."
	MsgAccountNotActive  = "Your account is not active. Please contact support."
	MsgEmailNotVerified  = "Please verify your email address before logging in. Check your inbox for a verification email."
	MsgUserExists        = "User with this email already exists"
	MsgUserNotFound      = "User not found"
	MsgTokenInvalid      = "Invalid authentication token"
	MsgSessionExpired    = "Your session has expired. Please login again"
	MsgInvalidRefresh    = "Invalid or expired refresh token"
	MsgPasswordMismatch  = "Current password is incorrect"
	MsgResetInvalid      = "Invalid password reset token"
	MsgVerifyInvalid     = "Email verification token is invalid or has expired"
	MsgForbidden         = "You do not have permission to perform this action"
	MsgNotAuthorized     = "Not authorized to access this route"
	MsgInternal          = "Something went wrong. Please try again later"
)
