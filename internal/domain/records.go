package domain

// Fixed, namespaced record names in protected storage.
const (
	RecordPrivateKey      RecordKey = "custodia.keys.private"
	RecordPublicKey       RecordKey = "custodia.keys.public"
	RecordLockoutAttempts RecordKey = "custodia.lockout.attempts"
	RecordLockoutLevel    RecordKey = "custodia.lockout.level"
	RecordLockoutUntil    RecordKey = "custodia.lockout.until"
	RecordDevicePasscode  RecordKey = "custodia.device.passcode"
	RecordKYCLink         RecordKey = "custodia.kyc.link"
)
