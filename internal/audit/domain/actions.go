package domain

// Audit action tags. Free-form strings at the storage layer, but every
// in-process append uses one of these constants.
const (
	ActionUserRegistered  = "USER_REGISTERED"
	ActionUserReactivated = "USER_REACTIVATED"
	ActionUserLogin       = "USER_LOGIN"
	ActionKeyRotation     = "KEY_ROTATION"

	ActionPrescriptionCreated = "PRESCRIPTION_CREATED"
	ActionPrescriptionsViewed = "PRESCRIPTIONS_VIEWED"
	ActionQRGenerated         = "QR_GENERATED"

	ActionPrescriptionVerified  = "PRESCRIPTION_VERIFIED"
	ActionPrescriptionDispensed = "PRESCRIPTION_DISPENSED"
	ActionPrescriptionExpired   = "PRESCRIPTION_EXPIRED"
	ActionDispenseRejectedState = "DISPENSE_REJECTED_STATUS"
	ActionSignatureVerifyFailed = "SIGNATURE_VERIFICATION_FAILED"
	ActionIntegrityCheckFailed  = "INTEGRITY_CHECK_FAILED"

	ActionConsentGranted        = "CONSENT_GRANTED"
	ActionConsentRevoked        = "CONSENT_REVOKED"
	ActionDataDeletionRequested = "DATA_DELETION_REQUESTED"
)
