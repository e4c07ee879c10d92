package entity

import "time"

// Listing is a crop offer published by a farmer. Listing CRUD lives in
// the marketplace subsystem; the chat core only reads it to pre-fill
// quotation fields.
type Listing struct {
	ID           string    `json:"id" firestore:"id"`
	FarmerID     string    `json:"farmer_id" firestore:"farmerId"`
	CropName     string    `json:"crop_name" firestore:"cropName"`
	Unit         string    `json:"unit" firestore:"unit"`
	PricePerUnit float64   `json:"price_per_unit" firestore:"pricePerUnit"`
	MinOrder     int       `json:"min_order,omitempty" firestore:"minOrder,omitempty"`
	CreatedAt    time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time `json:"updated_at" firestore:"updatedAt"`
}
