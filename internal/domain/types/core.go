package types

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// RecordKey names a persisted record in protected storage.
type RecordKey string

// String returns the string form of the record key.
func (k RecordKey) String() string { return string(k) }

// PayloadID identifies a server-issued challenge. It is valid for one submission.
type PayloadID string

// String returns the string form of the payload identifier.
func (id PayloadID) String() string { return string(id) }
