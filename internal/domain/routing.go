package domain

// RouteKind selects the strategy a RouteConfig resolves with.
type RouteKind string

const (
	RouteStatic RouteKind = "static"
	RouteCanary RouteKind = "canary"
	RouteAB     RouteKind = "ab"
)

// ABVariant is one weighted outcome of an "ab" route. Variants are walked in
// the order they appear in the backing routing table; weights are expected
// to sum to 100 but the walk tolerates a remainder on the final variant.
type ABVariant struct {
	Version string
	Weight  int
}

// RouteConfig is one model's entry in the routing table.
type RouteConfig struct {
	Model string
	Kind  RouteKind

	// Static
	Version string

	// Canary
	PrimaryVersion string
	CanaryVersion  string
	CanaryPercent  int

	// A/B
	Variants []ABVariant
}

// RoutingTable is model name -> RouteConfig, as loaded from the routing
// table file.
type RoutingTable map[string]RouteConfig
