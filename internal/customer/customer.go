package customer

// Customer is a single customer record from the source feed.
// Cookie is the visitor cookie the remote API keys banners on.
type Customer struct {
	Name     string
	Age      int
	Cookie   string
	BannerID int
}
