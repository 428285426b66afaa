package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// CapabilityIndex is a full-text discovery index over capability
// descriptions. It lives entirely in memory and is kept in lockstep with
// the registry: registering an agent indexes its capabilities, overwriting
// or deregistering removes them.
type CapabilityIndex struct {
	mu    sync.Mutex
	index bleve.Index
}

// CapabilityMatch is one discovery search hit.
type CapabilityMatch struct {
	// AgentID is the agent advertising the capability.
	AgentID string `json:"agent_id"`

	// Capability is the matched capability name.
	Capability string `json:"capability"`

	// Score is the relevance score from the index.
	Score float64 `json:"score"`
}

// capabilityDocument is the indexed representation of one capability.
type capabilityDocument struct {
	AgentID     string `json:"agent_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Inputs      string `json:"inputs"`
	Outputs     string `json:"outputs"`
}

// NewCapabilityIndex creates an in-memory capability discovery index.
func NewCapabilityIndex() (*CapabilityIndex, error) {
	index, err := bleve.NewMemOnly(buildCapabilityMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create capability index: %w", err)
	}
	return &CapabilityIndex{index: index}, nil
}

// buildCapabilityMapping creates the index mapping for capability documents.
func buildCapabilityMapping() mapping.IndexMapping {
	capMapping := bleve.NewDocumentMapping()

	// Analyzed for full-text search
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name

	// Not analyzed, exact match
	keywordFieldMapping := bleve.NewKeywordFieldMapping()

	capMapping.AddFieldMappingsAt("agent_id", keywordFieldMapping)
	capMapping.AddFieldMappingsAt("name", textFieldMapping)
	capMapping.AddFieldMappingsAt("description", textFieldMapping)
	capMapping.AddFieldMappingsAt("version", keywordFieldMapping)
	capMapping.AddFieldMappingsAt("inputs", textFieldMapping)
	capMapping.AddFieldMappingsAt("outputs", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = capMapping
	return indexMapping
}

// docID builds the index document ID for one agent capability.
func docID(agentID, capability string) string {
	return agentID + "/" + capability
}

// indexAgent adds every capability the agent advertises.
func (ci *CapabilityIndex) indexAgent(info AgentInfo) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	for _, c := range info.Capabilities {
		doc := capabilityDocument{
			AgentID:     info.ID,
			Name:        c.Name,
			Description: c.Description,
			Version:     c.Version,
			Inputs:      strings.Join(c.Inputs, " "),
			Outputs:     strings.Join(c.Outputs, " "),
		}
		if err := ci.index.Index(docID(info.ID, c.Name), doc); err != nil {
			return err
		}
	}
	return nil
}

// removeAgent drops every capability document for the agent.
func (ci *CapabilityIndex) removeAgent(info AgentInfo) {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	for _, c := range info.Capabilities {
		_ = ci.index.Delete(docID(info.ID, c.Name))
	}
}

// Search runs a query-string search over indexed capabilities and returns
// up to limit matches, best first. A non-positive limit means 10.
func (ci *CapabilityIndex) Search(query string, limit int) ([]CapabilityMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"agent_id", "name"}

	res, err := ci.index.Search(req)
	if err != nil {
		return nil, err
	}

	matches := make([]CapabilityMatch, 0, len(res.Hits))
	for _, hit := range res.Hits {
		agentID, _ := hit.Fields["agent_id"].(string)
		name, _ := hit.Fields["name"].(string)
		matches = append(matches, CapabilityMatch{
			AgentID:    agentID,
			Capability: name,
			Score:      hit.Score,
		})
	}
	return matches, nil
}

// Close releases the index.
func (ci *CapabilityIndex) Close() error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	return ci.index.Close()
}
