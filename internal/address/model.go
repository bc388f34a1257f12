package address

import "github.com/google/uuid"

type Address struct {
	ID          uuid.UUID `json:"id"`
	UserID      uint      `json:"-"`
	AddressLine string    `json:"address_line"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Pincode     string    `json:"pincode"`
	Country     string    `json:"country"`
	Mobile      string    `json:"mobile"`
}
