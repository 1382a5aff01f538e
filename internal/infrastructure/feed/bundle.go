package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// BundleResult describes where a finalize call wrote its output.
type BundleResult struct {
	RSSPath    string
	BundlePath string
}

// bundleReadme is the descriptive manifest written alongside a bundle's
// podcast.xml (§4.7: "a README.json describing the bundle").
type bundleReadme struct {
	WorkflowID  string    `json:"workflowId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	HasAudio    bool      `json:"hasAudio"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// WriteBundle assembles <root>/bundles/<workflowId>/ containing podcast.xml,
// an audio/ subfolder with the audio file copied in when sourceAudioPath
// names an existing file, and a README.json manifest. A file lock on the bundle directory
// guards against concurrent writers clobbering each other (grounded on
// five82-spindle's single-instance flock.Flock usage).
func WriteBundle(root, workflowID, title, description string, rss []byte, sourceAudioPath string) (BundleResult, error) {
	bundleDir := filepath.Join(root, "bundles", workflowID)
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return BundleResult{}, fmt.Errorf("create bundle directory: %w", err)
	}

	lock := flock.New(filepath.Join(bundleDir, ".lock"))
	if err := lock.Lock(); err != nil {
		return BundleResult{}, fmt.Errorf("lock bundle directory: %w", err)
	}
	defer lock.Unlock()

	if err := os.WriteFile(filepath.Join(bundleDir, "podcast.xml"), rss, 0o644); err != nil {
		return BundleResult{}, fmt.Errorf("write podcast.xml: %w", err)
	}

	hasAudio := false
	if info, err := os.Stat(sourceAudioPath); err == nil && !info.IsDir() {
		audioDir := filepath.Join(bundleDir, "audio")
		if err := os.MkdirAll(audioDir, 0o755); err != nil {
			return BundleResult{}, fmt.Errorf("create audio directory: %w", err)
		}
		destPath := filepath.Join(audioDir, filepath.Base(sourceAudioPath))
		if err := copyFile(sourceAudioPath, destPath); err != nil {
			return BundleResult{}, fmt.Errorf("copy audio into bundle: %w", err)
		}
		hasAudio = true
	}

	readme := bundleReadme{
		WorkflowID:  workflowID,
		Title:       title,
		Description: description,
		HasAudio:    hasAudio,
		GeneratedAt: time.Now().UTC(),
	}
	readmeBytes, err := json.MarshalIndent(readme, "", "  ")
	if err != nil {
		return BundleResult{}, fmt.Errorf("marshal bundle readme: %w", err)
	}
	if err := os.WriteFile(filepath.Join(bundleDir, "README.json"), readmeBytes, 0o644); err != nil {
		return BundleResult{}, fmt.Errorf("write README.json: %w", err)
	}

	return BundleResult{BundlePath: bundleDir}, nil
}

// WriteStandaloneRSS writes a single RSS file under <root>/rss/<workflowId>.xml.
func WriteStandaloneRSS(root, workflowID string, rss []byte) (BundleResult, error) {
	rssDir := filepath.Join(root, "rss")
	if err := os.MkdirAll(rssDir, 0o755); err != nil {
		return BundleResult{}, fmt.Errorf("create rss directory: %w", err)
	}
	rssPath := filepath.Join(rssDir, workflowID+".xml")
	if err := os.WriteFile(rssPath, rss, 0o644); err != nil {
		return BundleResult{}, fmt.Errorf("write rss file: %w", err)
	}
	return BundleResult{RSSPath: rssPath}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
