package turnip

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	files   map[string]string // key -> local path
	objects map[string][]byte
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: map[string]string{}, objects: map[string][]byte{}}
}

func (s *fakeStore) UploadLocalFile(_ context.Context, key, filePath string) error {
	if s.err != nil {
		return s.err
	}
	s.files[key] = filePath
	return nil
}

func (s *fakeStore) UploadFile(_ context.Context, key string, body []byte) error {
	s.objects[key] = body
	return nil
}

func (s *fakeStore) ListObjects(context.Context, string) ([]R2Object, error) {
	var objs []R2Object
	for key := range s.files {
		objs = append(objs, R2Object{Key: key, Size: 1})
	}
	return objs, nil
}

func writeArtifacts(t *testing.T, p Paths) {
	t.Helper()
	writeTestZip(t, p.ModuleZip, map[string]string{"module.prop": "id=turnip"})
	writeTestZip(t, p.EmulatorZip, map[string]string{"meta.json": "{}"})
}

func TestUploadArtifacts(t *testing.T) {
	bc := testBuildConfig(t)
	p := bc.Paths()
	writeArtifacts(t, p)
	store := newFakeStore()

	entries, err := uploadArtifacts(context.Background(), store, bc, "turnip", nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, map[string]string{
		"turnip/turnip_main_magisk.zip":   p.ModuleZip,
		"turnip/turnip_main_emulator.zip": p.EmulatorZip,
	}, store.files)

	body, ok := store.objects["turnip/turnip_main.json"]
	require.True(t, ok)
	var manifest releaseManifest
	require.NoError(t, json.Unmarshal(body, &manifest))
	assert.Equal(t, "main", manifest.MesaTag)
	require.Len(t, manifest.Artifacts, 2)
	sum, err := fileBlake3(p.ModuleZip)
	require.NoError(t, err)
	assert.Equal(t, sum, manifest.Artifacts[0].Blake3)
}

func TestUploadRequiresBothZips(t *testing.T) {
	bc := testBuildConfig(t)
	p := bc.Paths()
	writeTestZip(t, p.ModuleZip, map[string]string{"module.prop": "id=turnip"})
	store := newFakeStore()

	_, err := uploadArtifacts(context.Background(), store, bc, "turnip", nil)
	require.ErrorIs(t, err, ErrArtifactMissing)
	assert.Empty(t, store.files)
}

func TestUploadDeclined(t *testing.T) {
	bc := testBuildConfig(t)
	writeArtifacts(t, bc.Paths())
	store := newFakeStore()

	var asked []string
	_, err := uploadArtifacts(context.Background(), store, bc, "releases", func(keys []string) bool {
		asked = keys
		return false
	})
	require.Error(t, err)
	assert.Equal(t, []string{"releases/turnip_main_magisk.zip", "releases/turnip_main_emulator.zip"}, asked)
	assert.Empty(t, store.files)
	assert.Empty(t, store.objects)
}

func TestUploadStoreFailure(t *testing.T) {
	bc := testBuildConfig(t)
	writeArtifacts(t, bc.Paths())
	store := newFakeStore()
	store.err = errors.New("403 Forbidden")

	_, err := uploadArtifacts(context.Background(), store, bc, "turnip", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Empty(t, store.objects)
}

func TestUploadPrefix(t *testing.T) {
	assert.Equal(t, "turnip", uploadPrefix(&Config{Values: map[string]string{}}))
	assert.Equal(t, "nightly/arm64", uploadPrefix(&Config{Values: map[string]string{"TURNIP_UPLOAD_PREFIX": "/nightly/arm64/"}}))
}

func TestR2Endpoint(t *testing.T) {
	cfg := &Config{Values: map[string]string{"R2_ACCOUNT_ID": "abc123"}}
	assert.Equal(t, "https://abc123.r2.cloudflarestorage.com", r2Endpoint(cfg))

	cfg.Values["R2_ENDPOINT"] = "http://127.0.0.1:9000"
	assert.Equal(t, "http://127.0.0.1:9000", r2Endpoint(cfg))
}

func TestNewR2ClientRequiresCredentials(t *testing.T) {
	_, err := NewR2Client(context.Background(), &Config{Values: map[string]string{"R2_ACCOUNT_ID": "abc"}})
	require.Error(t, err)

	client, err := NewR2Client(context.Background(), &Config{Values: map[string]string{
		"R2_ENDPOINT":          "http://127.0.0.1:9000",
		"R2_ACCESS_KEY_ID":     "key",
		"R2_SECRET_ACCESS_KEY": "secret",
		"R2_BUCKET_NAME":       "builds",
	}})
	require.NoError(t, err)
	assert.Equal(t, "builds", client.BucketName)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/zip", contentTypeFor("turnip/a.zip"))
	assert.Equal(t, "application/json", contentTypeFor("turnip/a.json"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("turnip/a.so"))
}
