package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/createproresume/resume-service/random"
)

// ErrBadExtension rejects files outside the document formats the
// writers can work with.
var ErrBadExtension = errors.New("file type not allowed, use pdf, doc, docx or txt")

var allowed = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
}

// Store keeps uploaded documents on the local filesystem under a single
// directory, each saved under a timestamped unique name so customer
// filenames can never collide or escape the directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save streams src into the store and returns the stored name. prefix
// tags the document kind (resume, cover, job) and original supplies the
// extension.
func (s *Store) Save(src io.Reader, prefix string, original string) (string, error) {
	ext := strings.ToLower(filepath.Ext(original))
	if !allowed[ext] {
		return "", ErrBadExtension
	}

	name := fmt.Sprintf("%s_%s_%s%s", prefix, time.Now().UTC().Format("20060102_150405"), random.String(6), ext)

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("creating file %q: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		return "", fmt.Errorf("writing file %q: %w", name, err)
	}
	return name, nil
}

func (s *Store) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, filepath.Base(name)))
	return err == nil
}

func (s *Store) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("opening stored file %q: %w", name, err)
	}
	return f, nil
}
