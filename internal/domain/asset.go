package domain

// StoredImage locates an uploaded image and its resized rendition.
type StoredImage struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	ThumbURL string `json:"thumb_url"`
	ThumbKey string `json:"thumb_key"`
}
