package search

import "github.com/poiesic/ariel/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterRetrieval(retriever string, hits []*Hit)
	AfterFusion(fused []*core.FusedHit)
	AfterAssembly(assembled *AssembledContext)
	Finish(result *core.PipelineResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                       {}
func (n *noopMonitor) AfterRetrieval(_ string, _ []*Hit)    {}
func (n *noopMonitor) AfterFusion(_ []*core.FusedHit)       {}
func (n *noopMonitor) AfterAssembly(_ *AssembledContext)    {}
func (n *noopMonitor) Finish(_ *core.PipelineResult)        {}
