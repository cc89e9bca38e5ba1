package domain

// SessionItem is one ranked item inside a session detail row.
type SessionItem struct {
	Position        int     `json:"position"`
	ProductID       string  `json:"product_id"`
	Category        string  `json:"category"`
	Clicked         bool    `json:"clicked"`
	Purchased       bool    `json:"purchased"`
	AttributedValue float64 `json:"attributed_value"`
}

// SessionDetail is one scored session for the session explorer.
// Items are position-ascending after dedup; NDCG is scored at the
// configured UI cutoff.
type SessionDetail struct {
	ListID          string        `json:"list_id"`
	StartTimeMs     int64         `json:"start_time_ms"` // earliest impression in the list
	Surface         string        `json:"surface"`
	Country         string        `json:"country"`
	Segment         string        `json:"segment"`
	PrimaryCategory string        `json:"primary_category"` // most frequent item category
	Items           []SessionItem `json:"items"`
	ItemCount       int           `json:"item_count"`
	Clicks          int           `json:"clicks"`
	Purchases       int           `json:"purchases"`
	GMV             float64       `json:"gmv"`
	NDCG            float64       `json:"ndcg"`
}

// Product maps an item to its category.
// Corresponds to the product_catalog table in PostgreSQL.
type Product struct {
	ProductID string
	Category  string
}

// UserDimension maps a user to aggregation attributes.
// Corresponds to the user_dimensions table in PostgreSQL.
type UserDimension struct {
	UserID  string
	Country string
}
