package types

// KeyPair is the device signing identity, hex encoded.
//
// PublicKey is a compressed SEC1 P-256 point (66 hex chars). PrivateKey is the
// 32-byte scalar zero-padded to 64 hex chars and never leaves the device.
type KeyPair struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// SignedStamp is the envelope that authorises a server-side action.
// On the wire it travels as base64url(JSON) without padding.
type SignedStamp struct {
	PublicKey string `json:"publicKey"`
	Scheme    string `json:"scheme"`
	Signature string `json:"signature"` // hex(DER)
}
