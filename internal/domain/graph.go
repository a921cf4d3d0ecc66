package domain

// NodeLabel names a node kind in the relationship graph.
type NodeLabel string

const (
	NodeAccount  NodeLabel = "Account"
	NodePost     NodeLabel = "Tweet"
	NodeEvent    NodeLabel = "Event"
	NodeMemecoin NodeLabel = "Memecoin"
)

// EdgeType names a relationship kind.
type EdgeType string

const (
	EdgePosted     EdgeType = "POSTED"     // Account -> Tweet
	EdgeInitiated  EdgeType = "INITIATED"  // Tweet -> Event
	EdgeInfluenced EdgeType = "INFLUENCED" // Event -> Memecoin
)

// GraphNode is a node keyed by (Label, ID). Merging is idempotent.
type GraphNode struct {
	Label      NodeLabel
	ID         string
	Properties map[string]string
	CreatedAt  int64 // ms
}

// GraphEdge is a directed relationship keyed by (Type, From, To).
type GraphEdge struct {
	Type      EdgeType  `json:"type"`
	FromLabel NodeLabel `json:"from_label"`
	FromID    string    `json:"from_id"`
	ToLabel   NodeLabel `json:"to_label"`
	ToID      string    `json:"to_id"`
	CreatedAt int64     `json:"created_at"` // ms
}
