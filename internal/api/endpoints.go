package api

// Credential service endpoints
const (
	CreateAccount          = "/create_account"
	Verify                 = "/verify"
	ResendVerification     = "/resend_verification"
	Login                  = "/login"
	ForgotPassword         = "/forgot_password"
	ResetPassword          = "/reset_password"
	ActivateTwoFA          = "/activate_2fa"
	VerifyTwoFAActivation  = "/verify_2fa_activation"
	RequestDeactivateTwoFA = "/request_deactivate_2fa"
	VerifyTwoFADeactivate  = "/verify_2fa_deactivation"
	VerifyTwoFA            = "/verify_2fa"
)

// ProtectedEndpoints require a bearer session token
var ProtectedEndpoints = map[string]bool{
	ActivateTwoFA:          true,
	RequestDeactivateTwoFA: true,
}
