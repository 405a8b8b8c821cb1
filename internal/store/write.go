package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"

	"cardd/internal/payload"
	"cardd/internal/types"
)

// Well-known file names inside a bundle.
const (
	IndexFile    = "index.html"
	CSSFile      = "style.min.css"
	QRScriptFile = "qrcode.min.js"
	MediaDir     = "media"

	publicKeySuffix = "'s public key.asc"
	vcardExt        = ".vcf"

	// Display names are capped so name+suffix stays under the usual
	// 255-byte file name limit.
	maxDisplayNameLen = 255 - len(publicKeySuffix)
)

// entry is one file to persist, path relative to the bundle directory.
type entry struct {
	rel  string
	data []byte
}

// planEntries lays out every file present in spec in the order it must hit
// disk: index.html, the fixed optional text files, the public key armor,
// images in sorted key order, then media files. Malformed optional image and
// media entries are skipped here, never failing the whole call.
func planEntries(clientID string, spec types.CardSpec) []entry {
	var entries []entry
	addText := func(rel, body string) {
		if body != "" {
			entries = append(entries, entry{rel: rel, data: []byte(body)})
		}
	}

	addText(IndexFile, spec.HTML)
	addText(CSSFile, spec.CSS)
	addText(QRScriptFile, spec.QRScript)
	addText(clientID+vcardExt, spec.VCard)

	if spec.PublicKey != "" {
		name := payload.SanitizeDisplayName(spec.FullName, clientID)
		name = payload.TruncateName(name, maxDisplayNameLen)
		addText(name+publicKeySuffix, spec.PublicKey)
	}

	keys := make([]string, 0, len(spec.Images))
	for k := range spec.Images {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		img := spec.Images[k]
		if img.Base64 == "" || img.Ext == "" {
			log.WithFields(log.Fields{"clientId": clientID, "image": k}).
				Debug("skipping incomplete image entry")
			continue
		}
		name := k + "." + img.Ext
		if !payload.SafeFileName(name) {
			log.WithFields(log.Fields{"clientId": clientID, "image": k}).
				Warn("skipping image entry with unsafe file name")
			continue
		}
		b, err := payload.Decode(img.Base64)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{"clientId": clientID, "image": k}).
				Warn("skipping undecodable image entry")
			continue
		}
		entries = append(entries, entry{rel: name, data: b})
	}

	for _, item := range spec.Media {
		if item.Filename == "" || item.Base64 == "" {
			log.WithFields(log.Fields{"clientId": clientID, "media": item.Filename}).
				Debug("skipping incomplete media entry")
			continue
		}
		if !payload.SafeFileName(item.Filename) {
			log.WithFields(log.Fields{"clientId": clientID, "media": item.Filename}).
				Warn("skipping media entry with unsafe file name")
			continue
		}
		b, err := payload.Decode(item.Base64)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{"clientId": clientID, "media": item.Filename}).
				Warn("skipping undecodable media entry")
			continue
		}
		entries = append(entries, entry{rel: filepath.Join(MediaDir, item.Filename), data: b})
	}

	return entries
}

// persist writes the planned entries sequentially under the bundle directory.
// The fixed order means a reader racing a write observes a consistent prefix.
// An I/O failure mid-sequence aborts with what was written so far left in
// place; the caller retries with an Update or deletes the bundle.
func (s *Store) persist(ctx context.Context, clientID string, spec types.CardSpec) error {
	dir := s.dir(clientID)
	mediaMade := false
	for _, e := range planEntries(clientID, spec) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sub := filepath.Dir(e.rel); sub != "." && !mediaMade {
			if err := os.MkdirAll(filepath.Join(dir, sub), dirMode); err != nil {
				return types.Err(types.ErrIO, err, "create %s dir for %q", sub, clientID)
			}
			mediaMade = true
		}
		if err := os.WriteFile(filepath.Join(dir, e.rel), e.data, fileMode); err != nil {
			return types.Err(types.ErrIO, err, "write %s for %q", e.rel, clientID)
		}
	}
	return nil
}
