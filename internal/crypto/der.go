package crypto

import (
	"errors"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

var errMalformedSignature = errors.New("malformed DER signature")

var halfOrder = new(big.Int).Rsh(p256.Params().N, 1)

// EncodeDER encodes (r, s) as an ASN.1 SEQUENCE of two INTEGERs.
func EncodeDER(r, s *big.Int) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	return b.Bytes()
}

// ParseDER decodes a DER ECDSA signature. Trailing data is rejected.
func ParseDER(sig []byte) (r, s *big.Int, err error) {
	r, s = new(big.Int), new(big.Int)
	input := cryptobyte.String(sig)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, nil, errMalformedSignature
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return nil, nil, errMalformedSignature
	}
	return r, s, nil
}

// normalizeS maps s to the lower half of the group order.
func normalizeS(s *big.Int) *big.Int {
	if s.Cmp(halfOrder) <= 0 {
		return s
	}
	return new(big.Int).Sub(p256.Params().N, s)
}
