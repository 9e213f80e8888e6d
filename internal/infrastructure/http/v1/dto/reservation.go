// Package dto provides the request and response bodies of the reservation API.
package dto

import "fieldledger/internal/core/numerator"

// ReserveRequest asks for a block of numbers. OrgID defaults to the
// organization of the token.
type ReserveRequest struct {
	OrgID string `json:"orgId"`
	Kind  string `json:"kind" binding:"required,oneof=quote invoice"`
	Count int    `json:"count" binding:"required,min=1"`
}

// ReservationResponse is the granted block, Start and End inclusive.
type ReservationResponse struct {
	OrgID       string `json:"orgId"`
	Kind        string `json:"kind"`
	Prefix      string `json:"prefix"`
	StartNumber int64  `json:"startNumber"`
	EndNumber   int64  `json:"endNumber"`
}

// FromRange builds the response for a granted range.
func FromRange(orgID string, kind numerator.Kind, r numerator.Range) ReservationResponse {
	return ReservationResponse{
		OrgID:       orgID,
		Kind:        string(kind),
		Prefix:      r.Prefix,
		StartNumber: r.Start,
		EndNumber:   r.End,
	}
}
