package turnip

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// objectStore is the subset of R2Client the uploader needs.
type objectStore interface {
	UploadLocalFile(ctx context.Context, key, filePath string) error
	UploadFile(ctx context.Context, key string, body []byte) error
	ListObjects(ctx context.Context, prefix string) ([]R2Object, error)
}

// releaseManifest is published next to the zips so consumers can verify them.
type releaseManifest struct {
	MesaTag   string            `json:"mesaTag"`
	Version   string            `json:"version"`
	Artifacts []manifestEntry   `json:"artifacts"`
	BuildInfo map[string]string `json:"buildInfo,omitempty"`
}

type manifestEntry struct {
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	Blake3 string `json:"blake3"`
}

func uploadPrefix(cfg *Config) string {
	prefix := strings.Trim(strings.TrimSpace(cfg.Values["TURNIP_UPLOAD_PREFIX"]), "/")
	if prefix == "" {
		return "turnip"
	}
	return prefix
}

// uploadArtifacts publishes both zips and a manifest under prefix.
// confirm is asked once before anything is sent; nil means yes.
func uploadArtifacts(ctx context.Context, store objectStore, bc BuildConfig, prefix string, confirm func(keys []string) bool) ([]manifestEntry, error) {
	p := bc.Paths()
	var arts []Artifact
	for _, zip := range []string{p.ModuleZip, p.EmulatorZip} {
		art, err := describeArtifact(zip)
		if err != nil {
			return nil, fmt.Errorf("nothing to upload: %w", err)
		}
		arts = append(arts, art)
	}

	entries := make([]manifestEntry, 0, len(arts))
	keys := make([]string, 0, len(arts))
	for _, a := range arts {
		key := path.Join(prefix, filepath.Base(a.Path))
		keys = append(keys, key)
		entries = append(entries, manifestEntry{Key: key, Size: a.Size, Blake3: a.Blake3})
	}

	if confirm != nil && !confirm(keys) {
		return nil, fmt.Errorf("upload cancelled")
	}

	for i, a := range arts {
		step("Uploading %s (%s) to %s", filepath.Base(a.Path), humanSize(a.Size), keys[i])
		if err := store.UploadLocalFile(ctx, keys[i], a.Path); err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", a.Path, err)
		}
	}

	manifest := releaseManifest{
		MesaTag:   bc.MesaTag,
		Version:   bc.ModuleVersion,
		Artifacts: entries,
		BuildInfo: map[string]string{"tool": version, "arch": arch, "date": buildDate},
	}
	body, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	manifestKey := path.Join(prefix, fmt.Sprintf("turnip_%s.json", bc.MesaTag))
	if err := store.UploadFile(ctx, manifestKey, body); err != nil {
		return nil, fmt.Errorf("failed to upload manifest: %w", err)
	}
	step("Uploaded manifest %s", manifestKey)
	return entries, nil
}

// handleUploadCommand implements 'turnip upload'.
func handleUploadCommand(ctx context.Context, cfg *Config, bc BuildConfig, assumeYes bool) error {
	r2, err := NewR2Client(ctx, cfg)
	if err != nil {
		return err
	}
	prefix := uploadPrefix(cfg)

	var confirm func([]string) bool
	if !assumeYes {
		confirm = func(keys []string) bool {
			colArrow.Print("-> ")
			return askForConfirmation(colWarn, "Upload %s to bucket %s?", strings.Join(keys, ", "), r2.BucketName)
		}
	}
	if _, err := uploadArtifacts(ctx, r2, bc, prefix, confirm); err != nil {
		return err
	}

	// Storage reporting is informational; failures are not fatal.
	objects, err := r2.ListObjects(ctx, prefix+"/")
	if err != nil {
		debugf("could not list %s: %v\n", prefix, err)
		return nil
	}
	var total int64
	for _, obj := range objects {
		total += obj.Size
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Storage used under %s/: ", prefix)
	colNote.Printf("%s in %d objects\n", humanSize(total), len(objects))
	return nil
}
