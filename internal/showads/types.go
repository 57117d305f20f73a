package showads

// AuthRequest is the POST /auth body.
type AuthRequest struct {
	ProjectKey string `json:"ProjectKey"`
}

// AuthResponse is the successful POST /auth response.
type AuthResponse struct {
	AccessToken string `json:"AccessToken"`
}

// BulkEntry pairs a visitor cookie with the banner to show.
type BulkEntry struct {
	VisitorCookie string `json:"VisitorCookie"`
	BannerID      int    `json:"BannerId"`
}

// BulkRequest is the POST /banners/show/bulk body.
// Data must not exceed the bulk limit.
type BulkRequest struct {
	Data []BulkEntry `json:"Data"`
}
