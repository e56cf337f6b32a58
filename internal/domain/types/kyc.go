package types

import "time"

// KYCLinkState tracks the identity-provider inquiry linked to this install.
type KYCLinkState struct {
	InquiryID string    `json:"inquiryId"`
	LinkToken string    `json:"linkToken"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}
