package model

import "time"

// SearchEvent is one availability search recorded by the booking site.
// Rows with an empty ClientID are anonymous and identified only by IPAddress.
type SearchEvent struct {
	ID           string    `json:"id"`
	CheckinDate  time.Time `json:"checkin_date"`  // UTC date (time component zeroed)
	CheckoutDate time.Time `json:"checkout_date"` // UTC date (time component zeroed)
	Guests       int       `json:"guests"`
	Property     string    `json:"property,omitempty"`

	// Identified client (optional)
	ClientID    string `json:"client_id,omitempty"`
	ClientName  string `json:"client_name,omitempty"`
	ClientEmail string `json:"client_email,omitempty"`

	IPAddress  string    `json:"ip_address,omitempty"`
	SearchedAt time.Time `json:"searched_at"`
}

// IsAnonymous reports whether the search is not attributable to a known client.
func (e *SearchEvent) IsAnonymous() bool {
	return e.ClientID == ""
}

// StayNights returns the number of nights searched for, never negative.
func (e *SearchEvent) StayNights() int {
	nights := int(e.CheckoutDate.Sub(e.CheckinDate).Hours() / 24)
	if nights < 0 {
		return 0
	}
	return nights
}
