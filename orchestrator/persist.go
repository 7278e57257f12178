package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/clients"
)

// Manifest sits next to an archived recording.
type Manifest struct {
	SessionID  string    `json:"sessionId"`
	RegNo      string    `json:"regNo"`
	Name       string    `json:"name"`
	Year       string    `json:"year"`
	Dept       string    `json:"dept"`
	RecordedAt time.Time `json:"recordedAt"`
	VideoFile  string    `json:"videoFile"`
	VideoBytes int       `json:"videoBytes"`
	Chunks     int       `json:"chunks"`
}

// Archive keeps a local copy of each recording under
// <root>/<dept>_<year>/<studentId>/.
type Archive struct {
	Root string
	now  func() time.Time
}

func NewArchive(root string) *Archive { return &Archive{Root: root, now: time.Now} }

func (a *Archive) studentDir(id Identity) string {
	return filepath.Join(a.Root, safeComponent(id.Dept)+"_"+safeComponent(id.Year), safeComponent(id.StudentID))
}

// Save writes the video and its manifest and returns the video path.
func (a *Archive) Save(s Session, art Artifact) (string, error) {
	dir := a.studentDir(s.Identity)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	video := filepath.Join(dir, safeComponent(clients.VideoFilename(s.StudentID)))
	if err := os.WriteFile(video, art.Data, 0o644); err != nil {
		return "", err
	}

	m := Manifest{
		SessionID:  s.ID,
		RegNo:      s.StudentID,
		Name:       s.Name,
		Year:       s.Year,
		Dept:       s.Dept,
		RecordedAt: a.now(),
		VideoFile:  filepath.Base(video),
		VideoBytes: len(art.Data),
		Chunks:     art.Chunks,
	}
	if err := writeJSON(filepath.Join(dir, safeComponent(s.ID)+".json"), m); err != nil {
		return "", err
	}
	return video, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// safeComponent strips diacritics and replaces anything outside
// [A-Za-z0-9._-] so identity fields can be used as path elements.
func safeComponent(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
	s = strings.Trim(s, ".")
	if s == "" {
		return "_"
	}
	return s
}
