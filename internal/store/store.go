// Package store exposes the supported CDS products as a data store: list the
// data ids, describe them, and open them as datasets.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rtm0/cdsstore/internal/cds"
	"github.com/rtm0/cdsstore/internal/dataset"
	"github.com/rtm0/cdsstore/internal/datasets"
	"github.com/rtm0/cdsstore/internal/datasets/era5"
	"github.com/rtm0/cdsstore/internal/datasets/seaice"
	"github.com/rtm0/cdsstore/internal/datasets/soilmoisture"
	"github.com/rtm0/cdsstore/internal/schema"
)

// ErrUnknownDataID is returned for data ids no handler serves.
var ErrUnknownDataID = errors.New("unknown data id")

// Retriever downloads the result of a CDS request to target.
type Retriever interface {
	Retrieve(ctx context.Context, name string, request map[string]any, target string) error
}

// DataID is a data id optionally followed by its title.
type DataID []string

// ID returns the data id.
func (d DataID) ID() string { return d[0] }

// Title returns the title or "" if it was not requested.
func (d DataID) Title() string {
	if len(d) < 2 {
		return ""
	}
	return d[1]
}

// Store opens CDS products as datasets.
type Store struct {
	logger         *slog.Logger
	handlers       map[string]datasets.Handler
	ids            []string
	mu             sync.Mutex
	retriever      Retriever
	url, key       string
	normalizeNames bool
	tempDir        string
}

// Option configures a Store.
type Option func(*Store)

// WithRetriever sets the client used to fetch data. By default a cds.Client
// is created on first use from WithCredentials or the environment.
func WithRetriever(r Retriever) Option {
	return func(s *Store) { s.retriever = r }
}

// WithCredentials sets the CDS API URL and "<uid>:<api-key>" key.
func WithCredentials(url, key string) Option {
	return func(s *Store) { s.url, s.key = url, key }
}

// WithNormalizeNames replaces characters other than letters, digits and
// underscores in variable names by underscores.
func WithNormalizeNames(normalize bool) Option {
	return func(s *Store) { s.normalizeNames = normalize }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithTempDir sets the directory downloads are unpacked in.
func WithTempDir(dir string) Option {
	return func(s *Store) { s.tempDir = dir }
}

// New creates a store serving the ERA5, soil moisture and sea ice products.
func New(opts ...Option) *Store {
	s := &Store{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		handlers: map[string]datasets.Handler{},
	}
	for _, h := range []datasets.Handler{
		era5.NewHandler(),
		soilmoisture.NewHandler(),
		seaice.NewHandler(),
	} {
		for _, id := range h.DataIDs() {
			s.handlers[id] = h
			s.ids = append(s.ids, id)
		}
	}
	sort.Strings(s.ids)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DataIDs returns the data ids in lexical order, each followed by its title
// if includeTitles is set. The sequence can be iterated repeatedly.
func (s *Store) DataIDs(includeTitles bool) iter.Seq[DataID] {
	return func(yield func(DataID) bool) {
		for _, id := range s.ids {
			d := DataID{id}
			if includeTitles {
				d = append(d, s.handlers[id].Title(id))
			}
			if !yield(d) {
				return
			}
		}
	}
}

// HasData reports whether dataID is served.
func (s *Store) HasData(dataID string) bool {
	_, ok := s.handlers[dataID]
	return ok
}

func (s *Store) handler(dataID string) (datasets.Handler, error) {
	h, ok := s.handlers[dataID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataID, dataID)
	}
	return h, nil
}

// OpenParamsSchema returns the schema of the open parameters of dataID.
func (s *Store) OpenParamsSchema(dataID string) (*schema.Schema, error) {
	h, err := s.handler(dataID)
	if err != nil {
		return nil, err
	}
	return h.OpenParamsSchema(dataID), nil
}

// params validates params against the schema of dataID, applies defaults and
// decodes them.
func (s *Store) params(h datasets.Handler, dataID string, params map[string]any) (*datasets.Params, error) {
	sch := h.OpenParamsSchema(dataID)
	if err := sch.Validate(params); err != nil {
		return nil, err
	}
	return datasets.DecodeParams(sch.ApplyDefaults(params))
}

// Describe returns the descriptor of the dataset Open returns for the same
// params, without fetching data. Nil params describe the default variable
// selection.
func (s *Store) Describe(dataID string, params map[string]any) (*dataset.Descriptor, error) {
	h, err := s.handler(dataID)
	if err != nil {
		return nil, err
	}
	var p *datasets.Params
	if params != nil {
		if p, err = s.params(h, dataID, params); err != nil {
			return nil, err
		}
	}
	d, err := h.Describe(dataID, p)
	if err != nil {
		return nil, err
	}
	d.OpenParamsSchema = h.OpenParamsSchema(dataID).ToMap()
	if s.normalizeNames {
		for _, name := range d.DataVarNames() {
			d.RenameDataVar(name, NormalizeName(name))
		}
	}
	return d, nil
}

type openOptions struct {
	requestPath string
	filePath    string
	zarrPath    string
}

// OpenOption configures a single Open call.
type OpenOption func(*openOptions)

// WithSaveRequestTo writes the CDS request as JSON to path.
func WithSaveRequestTo(path string) OpenOption {
	return func(o *openOptions) { o.requestPath = path }
}

// WithSaveFileTo keeps a copy of the downloaded file at path.
func WithSaveFileTo(path string) OpenOption {
	return func(o *openOptions) { o.filePath = path }
}

// WithSaveZarrTo writes the opened dataset as a Zarr store to dir.
func WithSaveZarrTo(dir string) OpenOption {
	return func(o *openOptions) { o.zarrPath = dir }
}

// Open validates params, requests the data from CDS and returns it as a
// dataset. An empty variable selection yields a dataset with coordinates
// only and does not contact CDS.
func (s *Store) Open(ctx context.Context, dataID string, params map[string]any, opts ...OpenOption) (*dataset.Dataset, error) {
	h, err := s.handler(dataID)
	if err != nil {
		return nil, err
	}
	p, err := s.params(h, dataID, params)
	if err != nil {
		return nil, err
	}
	o := &openOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var ds *dataset.Dataset
	if len(p.VariableNames) == 0 {
		ds, err = h.Empty(dataID, p)
	} else {
		ds, err = s.fetch(ctx, h, dataID, p, o)
	}
	if err != nil {
		return nil, err
	}
	if s.normalizeNames {
		for _, name := range ds.DataVarNames() {
			ds.RenameDataVar(name, NormalizeName(name))
		}
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset for %s: %w", dataID, err)
	}
	if o.zarrPath != "" {
		if err := ds.WriteZarr(o.zarrPath); err != nil {
			return nil, fmt.Errorf("cannot write zarr: %w", err)
		}
	}
	return ds, nil
}

func (s *Store) fetch(ctx context.Context, h datasets.Handler, dataID string, p *datasets.Params, o *openOptions) (*dataset.Dataset, error) {
	req, err := h.Request(dataID, p)
	if err != nil {
		return nil, err
	}
	if o.requestPath != "" {
		b, err := json.MarshalIndent(req, "", "  ")
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(o.requestPath, b, 0o644); err != nil {
			return nil, fmt.Errorf("cannot save request: %w", err)
		}
	}
	r, err := s.client()
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp(s.tempDir, "cdsstore-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)
	target := filepath.Join(tempDir, "result")

	start := time.Now()
	s.logger.Info("Retrieving", "dataId", dataID, "dataset", req.Dataset)
	if err := r.Retrieve(ctx, req.Dataset, req.Params, target); err != nil {
		return nil, fmt.Errorf("cannot retrieve %s: %w", dataID, err)
	}
	s.logger.Info("Retrieved", "dataId", dataID, "in", time.Since(start).Round(time.Millisecond))
	if o.filePath != "" {
		if err := copyFile(target, o.filePath); err != nil {
			return nil, fmt.Errorf("cannot save result file: %w", err)
		}
	}
	return h.Read(dataID, p, target, tempDir)
}

// client returns the retriever, creating a CDS client on first use.
func (s *Store) client() (Retriever, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retriever != nil {
		return s.retriever, nil
	}
	cfg, err := cds.LoadConfig(s.url, s.key)
	if err != nil {
		return nil, err
	}
	c, err := cds.NewClient(s.logger, cfg.URL, cfg.Key, runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	s.retriever = c
	return c, nil
}

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// NormalizeName replaces every character other than an ASCII letter, digit
// or underscore by an underscore.
func NormalizeName(name string) string {
	return invalidNameChars.ReplaceAllString(name, "_")
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
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
