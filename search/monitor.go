package search

import (
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/storage"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string, topK int)
	AfterEmbedding(vector []float32)
	AfterLabelSearch(label core.NodeLabel, matches []storage.Match, err error)
	BelowThreshold(match storage.Match)
	Finish(results []*Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)                                         {}
func (n *noopMonitor) AfterEmbedding(_ []float32)                                    {}
func (n *noopMonitor) AfterLabelSearch(_ core.NodeLabel, _ []storage.Match, _ error) {}
func (n *noopMonitor) BelowThreshold(_ storage.Match)                                {}
func (n *noopMonitor) Finish(_ []*Result)                                            {}
