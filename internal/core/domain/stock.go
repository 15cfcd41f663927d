package domain

import "time"

// Stock is one line of inventory: a quantity of a specific part, bought from a
// specific vendor, held at a specific storage place. The quantity column is
// derived state: it always equals the sum of all transaction deltas recorded
// for the line.
type Stock struct {
	ID             string    `db:"id" json:"id"`
	PartID         string    `db:"part_id" json:"part"`
	VendorID       string    `db:"vendor_id" json:"vendor"`
	PartName       string    `db:"part_name" json:"part_name"`
	VendorName     string    `db:"vendor_name" json:"vendor_name"`
	VendorCode     string    `db:"vendor_code" json:"vendorreference"`
	VendorURL      string    `db:"vendor_url" json:"url"`
	ImageURL       string    `db:"image_url" json:"image"`
	StoragePlaceID string    `db:"storage_place_id" json:"storageplace"`
	Quantity       int       `db:"quantity" json:"quantity"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
