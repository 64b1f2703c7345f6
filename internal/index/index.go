package index

import "github.com/grayside/grayside/internal/models"

// NodeIndex defines the interface for content index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type NodeIndex interface {
	UpsertNode(n *models.Node) error
	DeleteNode(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	GetBySlug(slug string) (*models.Node, error)
	ListNodes(opts ListOptions) ([]models.Node, int, error)
	TagCounts(includeDrafts bool) ([]models.TagCount, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies NodeIndex at compile time.
var _ NodeIndex = (*DB)(nil)
