package types

// CardSpec is the request body for deploying or updating a card bundle.
// HTML is the only field required on create; every other entry is optional
// and, when absent, leaves any previously stored file untouched on update.
// Images maps an arbitrary key (the base of the stored file name) to a
// base64-encoded body plus file extension. Media items carry their own file
// name and land under the bundle's media/ subdirectory.
// FullName, when present, names the public key armor file; it is sanitized
// before touching the filesystem.
type CardSpec struct {
	ClientID  string               `json:"clientId,omitempty"`
	HTML      string               `json:"html,omitempty"`
	CSS       string               `json:"css,omitempty"`
	QRScript  string               `json:"qrScript,omitempty"`
	VCard     string               `json:"vcard,omitempty"`
	PublicKey string               `json:"publicKey,omitempty"`
	FullName  string               `json:"fullName,omitempty"`
	Images    map[string]ImageData `json:"images,omitempty"`
	Media     []MediaItem          `json:"media,omitempty"`
}

// ImageData is one image entry: base64-encoded bytes plus the file extension
// used to derive the stored file name. Entries missing either field are
// skipped rather than failing the whole deploy.
type ImageData struct {
	Base64 string `json:"base64"`
	Ext    string `json:"ext"`
}

// MediaItem is one media file entry. Entries missing either field are skipped.
type MediaItem struct {
	Filename string `json:"filename"`
	Base64   string `json:"base64"`
}

// Deployment identifies where a bundle landed after a successful create or
// update.
type Deployment struct {
	ClientID string
	Dir      string
}
