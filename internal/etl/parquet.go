package etl

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Relation file names inside a snapshot directory.
const (
	productsFile = "products_main.parquet"
	specsFile    = "specs.parquet"
	reviewsFile  = "reviews.parquet"

	currentLink = "current"
)

// Publisher writes relation snapshots under a base directory. Each snapshot
// lands in its own timestamped directory; a "current" symlink is swapped onto
// the new directory only after all three files are complete, so readers never
// observe a partially written snapshot.
type Publisher struct {
	baseDir string
	logger  *slog.Logger
}

// NewPublisher creates a publisher rooted at baseDir, creating it if needed.
func NewPublisher(baseDir string, logger *slog.Logger) (*Publisher, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", baseDir, err)
	}
	return &Publisher{
		baseDir: baseDir,
		logger:  logger.With("component", "publisher"),
	}, nil
}

// Publish writes the relations into a fresh snapshot directory and points the
// current symlink at it. An empty relation still produces a file carrying the
// full schema.
func (p *Publisher) Publish(rel *Relations) (string, error) {
	snapDir := filepath.Join(p.baseDir, fmt.Sprintf("snapshot-%d", time.Now().UnixNano()))
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	if err := writeRelation(filepath.Join(snapDir, productsFile), rel.Products); err != nil {
		return "", err
	}
	if err := writeRelation(filepath.Join(snapDir, specsFile), rel.Specs); err != nil {
		return "", err
	}
	if err := writeRelation(filepath.Join(snapDir, reviewsFile), rel.Reviews); err != nil {
		return "", err
	}

	if err := p.swapCurrent(snapDir); err != nil {
		return "", err
	}

	p.logger.Info("relations published",
		"dir", snapDir,
		"products", len(rel.Products),
		"specs", len(rel.Specs),
		"reviews", len(rel.Reviews),
	)
	return snapDir, nil
}

// CurrentDir resolves the current snapshot directory, or "" when nothing has
// been published yet.
func (p *Publisher) CurrentDir() string {
	target, err := os.Readlink(filepath.Join(p.baseDir, currentLink))
	if err != nil {
		return ""
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(p.baseDir, target)
	}
	return target
}

// Load reads the relations back from the current snapshot.
func (p *Publisher) Load() (*Relations, error) {
	dir := p.CurrentDir()
	if dir == "" {
		return nil, fmt.Errorf("no published snapshot under %s", p.baseDir)
	}
	return ReadRelations(dir)
}

// Prune removes superseded snapshot directories, keeping the current one and
// the most recent keep others.
func (p *Publisher) Prune(keep int) error {
	entries, err := os.ReadDir(p.baseDir)
	if err != nil {
		return fmt.Errorf("read output dir: %w", err)
	}

	current := filepath.Base(p.CurrentDir())
	var snapshots []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != current && strings.HasPrefix(e.Name(), "snapshot-") {
			snapshots = append(snapshots, e.Name())
		}
	}
	if len(snapshots) <= keep {
		return nil
	}

	// Names sort chronologically; ReadDir returns them sorted.
	for _, name := range snapshots[:len(snapshots)-keep] {
		if err := os.RemoveAll(filepath.Join(p.baseDir, name)); err != nil {
			p.logger.Warn("failed to prune snapshot", "dir", name, "error", err)
		}
	}
	return nil
}

// swapCurrent atomically repoints the current symlink.
func (p *Publisher) swapCurrent(snapDir string) error {
	linkPath := filepath.Join(p.baseDir, currentLink)
	tmpLink := linkPath + ".tmp"

	_ = os.Remove(tmpLink)
	if err := os.Symlink(filepath.Base(snapDir), tmpLink); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}
	if err := os.Rename(tmpLink, linkPath); err != nil {
		_ = os.Remove(tmpLink)
		return fmt.Errorf("swap symlink: %w", err)
	}
	return nil
}

// ReadRelations loads the three relation files from a snapshot directory.
func ReadRelations(dir string) (*Relations, error) {
	products, err := parquet.ReadFile[ProductRow](filepath.Join(dir, productsFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", productsFile, err)
	}
	specs, err := parquet.ReadFile[SpecRow](filepath.Join(dir, specsFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", specsFile, err)
	}
	reviews, err := parquet.ReadFile[ReviewRow](filepath.Join(dir, reviewsFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", reviewsFile, err)
	}
	return &Relations{Products: products, Specs: specs, Reviews: reviews}, nil
}

// writeRelation writes rows to a parquet file. Zero rows still writes the
// schema so downstream readers see stable columns.
func writeRelation[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	writer := parquet.NewGenericWriter[T](f)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := writer.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close writer %s: %w", path, err)
	}
	return f.Close()
}
