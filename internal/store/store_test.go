package store_test

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"cardd/internal/store"
	"cardd/internal/types"
)

type StoreTestSuite struct {
	suite.Suite

	root string
	st   *store.Store
	ctx  context.Context
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.root = s.T().TempDir()
	st, err := store.New(s.root)
	s.Require().NoError(err)
	s.st = st
	s.ctx = context.Background()
}

func (s *StoreTestSuite) readFile(clientID string, rel string) []byte {
	b, err := os.ReadFile(filepath.Join(s.root, clientID, rel))
	s.Require().NoError(err)
	return b
}

func (s *StoreTestSuite) fileMissing(clientID string, rel string) {
	_, err := os.Stat(filepath.Join(s.root, clientID, rel))
	s.Require().ErrorIs(err, os.ErrNotExist)
}

func (s *StoreTestSuite) TestCreateThenExists() {
	ok, err := s.st.Exists(s.ctx, "acme-corp")
	s.NoError(err)
	s.False(ok)

	dep, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{HTML: "<h1>Hi</h1>"})
	s.Require().NoError(err)
	s.Equal("acme-corp", dep.ClientID)
	s.Equal(filepath.Join(s.root, "acme-corp"), dep.Dir)
	s.Equal([]byte("<h1>Hi</h1>"), s.readFile("acme-corp", store.IndexFile))

	ok, err = s.st.Exists(s.ctx, "acme-corp")
	s.NoError(err)
	s.True(ok)
}

func (s *StoreTestSuite) TestExistsInvalidID() {
	_, err := s.st.Exists(s.ctx, "a")
	s.ErrorIs(err, types.ErrInvalidIdentifier)
}

func (s *StoreTestSuite) TestCreateInvalidID() {
	_, err := s.st.Create(s.ctx, "-bad-", types.CardSpec{HTML: "x"})
	s.ErrorIs(err, types.ErrInvalidIdentifier)
}

func (s *StoreTestSuite) TestCreateMissingHTML() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{CSS: "body{}"})
	s.ErrorIs(err, types.ErrMissingRequiredField)

	ok, err := s.st.Exists(s.ctx, "acme-corp")
	s.NoError(err)
	s.False(ok, "nothing must be persisted on a failed create")
}

func (s *StoreTestSuite) TestCreateConflictKeepsExistingFiles() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{HTML: "original"})
	s.Require().NoError(err)

	_, err = s.st.Create(s.ctx, "acme-corp", types.CardSpec{HTML: "intruder"})
	s.ErrorIs(err, types.ErrAlreadyExists)
	s.Equal([]byte("original"), s.readFile("acme-corp", store.IndexFile))
}

func (s *StoreTestSuite) TestFixedTextFiles() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{
		HTML:     "<h1>Hi</h1>",
		CSS:      "body{}",
		QRScript: "var qr;",
		VCard:    "BEGIN:VCARD",
	})
	s.Require().NoError(err)
	s.Equal([]byte("body{}"), s.readFile("acme-corp", store.CSSFile))
	s.Equal([]byte("var qr;"), s.readFile("acme-corp", store.QRScriptFile))
	s.Equal([]byte("BEGIN:VCARD"), s.readFile("acme-corp", "acme-corp.vcf"))
}

func (s *StoreTestSuite) TestUpdateNotFound() {
	_, err := s.st.Update(s.ctx, "acme-corp", types.CardSpec{CSS: "body{}"})
	s.ErrorIs(err, types.ErrNotFound)
}

func (s *StoreTestSuite) TestUpdateOnlyCSSLeavesRestIntact() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{
		HTML:  "<h1>Hi</h1>",
		VCard: "BEGIN:VCARD",
	})
	s.Require().NoError(err)
	htmlBefore := s.readFile("acme-corp", store.IndexFile)
	vcardBefore := s.readFile("acme-corp", "acme-corp.vcf")

	_, err = s.st.Update(s.ctx, "acme-corp", types.CardSpec{CSS: "body{}"})
	s.Require().NoError(err)

	s.Equal(htmlBefore, s.readFile("acme-corp", store.IndexFile))
	s.Equal(vcardBefore, s.readFile("acme-corp", "acme-corp.vcf"))
	s.Equal([]byte("body{}"), s.readFile("acme-corp", store.CSSFile))
}

func (s *StoreTestSuite) TestDeleteLifecycle() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{HTML: "<h1>Hi</h1>"})
	s.Require().NoError(err)

	s.NoError(s.st.Delete(s.ctx, "acme-corp"))

	ok, err := s.st.Exists(s.ctx, "acme-corp")
	s.NoError(err)
	s.False(ok)

	s.ErrorIs(s.st.Delete(s.ctx, "acme-corp"), types.ErrNotFound)
}

func (s *StoreTestSuite) TestDeleteToleratesMissingSubstructure() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{
		HTML:  "<h1>Hi</h1>",
		Media: []types.MediaItem{{Filename: "a.mp3", Base64: b64("audio")}},
	})
	s.Require().NoError(err)
	s.Require().NoError(os.Remove(filepath.Join(s.root, "acme-corp", store.MediaDir, "a.mp3")))

	s.NoError(s.st.Delete(s.ctx, "acme-corp"))
}

func (s *StoreTestSuite) TestImageRoundTrip() {
	raw := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{
		HTML:   "<h1>Hi</h1>",
		Images: map[string]types.ImageData{"logo": {Base64: b64str(raw), Ext: "png"}},
	})
	s.Require().NoError(err)
	s.Equal(raw, s.readFile("acme-corp", "logo.png"))
}

func (s *StoreTestSuite) TestMalformedImagesSkippedBestEffort() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{
		HTML: "<h1>Hi</h1>",
		Images: map[string]types.ImageData{
			"good":    {Base64: b64("fine"), Ext: "png"},
			"noext":   {Base64: b64("fine")},
			"garbage": {Base64: "!!not-base64!!", Ext: "png"},
			"../evil": {Base64: b64("fine"), Ext: "png"},
		},
	})
	s.Require().NoError(err, "malformed optional entries must not fail the create")

	s.Equal([]byte("fine"), s.readFile("acme-corp", "good.png"))
	s.fileMissing("acme-corp", "noext.png")
	s.fileMissing("acme-corp", "garbage.png")
	_, err = os.Stat(filepath.Join(s.root, "evil.png"))
	s.ErrorIs(err, os.ErrNotExist, "unsafe image key must never escape the bundle dir")
}

func (s *StoreTestSuite) TestMediaFiles() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{
		HTML: "<h1>Hi</h1>",
		Media: []types.MediaItem{
			{Filename: "intro.mp4", Base64: b64("video")},
			{Filename: "", Base64: b64("anon")},
			{Filename: "../escape.mp3", Base64: b64("nope")},
		},
	})
	s.Require().NoError(err)

	s.Equal([]byte("video"), s.readFile("acme-corp", filepath.Join(store.MediaDir, "intro.mp4")))
	_, err = os.Stat(filepath.Join(s.root, "escape.mp3"))
	s.ErrorIs(err, os.ErrNotExist)
}

func (s *StoreTestSuite) TestNoMediaDirWithoutMedia() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{HTML: "<h1>Hi</h1>"})
	s.Require().NoError(err)
	s.fileMissing("acme-corp", store.MediaDir)
}

func (s *StoreTestSuite) TestPublicKeyFileName() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{
		HTML:      "<h1>Hi</h1>",
		PublicKey: "-----BEGIN PGP PUBLIC KEY BLOCK-----",
		FullName:  "Ada Lovelace",
	})
	s.Require().NoError(err)
	s.Equal(
		[]byte("-----BEGIN PGP PUBLIC KEY BLOCK-----"),
		s.readFile("acme-corp", "Ada Lovelace's public key.asc"),
	)
}

func (s *StoreTestSuite) TestPublicKeyFileNameFallsBackToClientID() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{
		HTML:      "<h1>Hi</h1>",
		PublicKey: "key material",
	})
	s.Require().NoError(err)
	s.Equal([]byte("key material"), s.readFile("acme-corp", "acme-corp's public key.asc"))
}

func (s *StoreTestSuite) TestPublicKeyFileNameSanitized() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{
		HTML:      "<h1>Hi</h1>",
		PublicKey: "key material",
		FullName:  "Eve/../..",
	})
	s.Require().NoError(err)

	entries, err := os.ReadDir(filepath.Join(s.root, "acme-corp"))
	s.Require().NoError(err)
	for _, e := range entries {
		s.NotContains(e.Name(), "/")
	}
	s.Equal([]byte("key material"), s.readFile("acme-corp", "Eve_.._'s public key.asc"))
}

func (s *StoreTestSuite) TestPublicKeyFileNameCappedForLongNames() {
	_, err := s.st.Create(s.ctx, "acme-corp", types.CardSpec{
		HTML:      "<h1>Hi</h1>",
		PublicKey: "key material",
		FullName:  strings.Repeat("n", 300),
	})
	s.Require().NoError(err, "a long display name must not fail the whole create")

	entries, err := os.ReadDir(filepath.Join(s.root, "acme-corp"))
	s.Require().NoError(err)
	var keyFile string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".asc") {
			keyFile = e.Name()
		}
	}
	s.Require().NotEmpty(keyFile)
	s.LessOrEqual(len(keyFile), 255)
	s.Equal([]byte("key material"), s.readFile("acme-corp", keyFile))
}

func (s *StoreTestSuite) TestConcurrentCreateSameID() {
	const id = "race-client"
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.st.Create(s.ctx, id, types.CardSpec{HTML: "<h1>Hi</h1>"})
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case s.ErrorIs(err, types.ErrAlreadyExists):
			conflicts++
		}
	}
	s.Equal(1, wins)
	s.Equal(1, conflicts)
}

func (s *StoreTestSuite) TestConcurrentUpdatesDistinctIDs() {
	ids := []string{"tenant-one", "tenant-two", "tenant-three"}
	for _, id := range ids {
		_, err := s.st.Create(s.ctx, id, types.CardSpec{HTML: "seed"})
		s.Require().NoError(err)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := s.st.Update(s.ctx, id, types.CardSpec{CSS: "body{color:red}"})
				s.NoError(err)
			}(id)
		}
	}
	wg.Wait()

	for _, id := range ids {
		s.Equal([]byte("seed"), s.readFile(id, store.IndexFile))
		s.Equal([]byte("body{color:red}"), s.readFile(id, store.CSSFile))
	}
}

func (s *StoreTestSuite) TestCancelledContextAborts() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.st.Create(ctx, "acme-corp", types.CardSpec{HTML: "<h1>Hi</h1>"})
	s.ErrorIs(err, context.Canceled)

	// The bundle directory exists (partial state is legal) and stays usable.
	ok, err := s.st.Exists(s.ctx, "acme-corp")
	s.NoError(err)
	s.True(ok)
	s.NoError(s.st.Delete(s.ctx, "acme-corp"))
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func b64str(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
