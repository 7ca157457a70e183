// Package datasets defines how a family of CDS products is described,
// requested and normalized, and holds the helpers shared by the product
// handlers in its subpackages.
package datasets

import (
	"github.com/rtm0/cdsstore/internal/dataset"
	"github.com/rtm0/cdsstore/internal/schema"
)

// Handler serves one family of CDS products. Every method receives a data id
// previously returned by DataIDs and, except for Describe, params that have
// passed the handler's schema with defaults applied.
type Handler interface {
	// DataIDs lists the data ids served by the handler.
	DataIDs() []string
	// Title returns a human-readable name for the data id.
	Title(dataID string) string
	// OpenParamsSchema returns the schema of the open parameters.
	OpenParamsSchema(dataID string) *schema.Schema
	// Describe returns the shape of the dataset Open would return for p.
	// A nil p describes the default variable selection.
	Describe(dataID string, p *Params) (*dataset.Descriptor, error)
	// Request translates p into a CDS API request.
	Request(dataID string, p *Params) (*Request, error)
	// Read normalizes the downloaded result into a dataset.
	Read(dataID string, p *Params, resultPath, tempDir string) (*dataset.Dataset, error)
	// Empty returns the coordinate-only dataset for an empty variable
	// selection without contacting CDS.
	Empty(dataID string, p *Params) (*dataset.Dataset, error)
}

// Request is a CDS API retrieve request.
type Request struct {
	Dataset string         `json:"dataset"`
	Params  map[string]any `json:"request"`
}
