package arbor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/loam"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/file"
	loamAdapter "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/workspace"
)

// Client is the high-level entry point for the arbor library. It wraps the
// workspace manager and the content store behind one handle.
type Client struct {
	*workspace.Manager

	store       ports.GraphStore
	content     ports.ContentStore
	vcs         ports.VCS
	locker      ports.WorkspaceLocker
	logger      *slog.Logger
	middlewares []middleware.Middleware
}

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithStore injects a custom GraphStore, bypassing the default file store.
func WithStore(store ports.GraphStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithContentStore injects a custom ContentStore, bypassing the default
// Loam-backed one.
func WithContentStore(content ports.ContentStore) Option {
	return func(c *Client) {
		c.content = content
	}
}

// WithVCS attaches a version-control collaborator for git dispatch mode.
func WithVCS(vcs ports.VCS) Option {
	return func(c *Client) {
		c.vcs = vcs
	}
}

// WithLocker enables distributed workspace locking across replicas.
func WithLocker(locker ports.WorkspaceLocker) Option {
	return func(c *Client) {
		c.locker = locker
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithStoreMiddleware wraps the graph store with persistence middleware
// (encryption at rest, redaction). First middleware is outermost.
func WithStoreMiddleware(middlewares ...middleware.Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, middlewares...)
	}
}

// Open initializes a Client rooted at the given directory. By default,
// graphs live under <dir>/.arbor/workspaces and node content under
// <dir>/.arbor/content. Injected stores make dir optional.
func Open(dir string, opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logging.NewNop()
	}

	needsDir := c.store == nil || c.content == nil
	var base string
	if needsDir {
		if dir == "" {
			return nil, fmt.Errorf("dir is required when no custom stores are provided")
		}
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		base = filepath.Join(absPath, ".arbor")
	}

	if c.store == nil {
		c.store = file.New(filepath.Join(base, "workspaces"))
	}
	if len(c.middlewares) > 0 {
		c.store = middleware.Chain(c.store, c.middlewares...)
	}

	if c.content == nil {
		contentDir := filepath.Join(base, "content")
		if err := os.MkdirAll(contentDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create content directory: %w", err)
		}
		repo, err := loam.Init(contentDir, loam.WithVersioning(false))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize loam: %w", err)
		}
		c.content = loamAdapter.New(loam.NewTypedRepository[loamAdapter.NoteMetadata](repo))
	}

	managerOpts := []workspace.Option{workspace.WithLogger(c.logger)}
	if c.locker != nil {
		managerOpts = append(managerOpts, workspace.WithLocker(c.locker))
	}
	c.Manager = workspace.NewManager(c.store, c.vcs, managerOpts...)

	return c, nil
}

// Content returns the node content store.
func (c *Client) Content() ports.ContentStore {
	return c.content
}

// Store returns the underlying graph store.
func (c *Client) Store() ports.GraphStore {
	return c.store
}
