package queue

import "market-gateway/internal/domain/document"

const (
	// DefaultMaxMessagesInBundle caps bundles of every category except
	// aggregations.
	DefaultMaxMessagesInBundle = 10000

	// AggregationsMaxMessagesInBundle keeps aggregation results individually
	// retrievable.
	AggregationsMaxMessagesInBundle = 1
)

// BundleSizePolicy returns the maximum number of messages a new bundle of the
// given document type may hold. Results below 1 are treated as 1.
type BundleSizePolicy func(document.DocumentType) int

// CategoryPolicy caps aggregation bundles at aggregations and every other
// bundle at otherwise.
func CategoryPolicy(aggregations, otherwise int) BundleSizePolicy {
	return func(t document.DocumentType) int {
		if t.Category() == document.CategoryAggregations {
			return aggregations
		}
		return otherwise
	}
}

// DefaultBundleSizePolicy is CategoryPolicy(1, 10000).
func DefaultBundleSizePolicy() BundleSizePolicy {
	return CategoryPolicy(AggregationsMaxMessagesInBundle, DefaultMaxMessagesInBundle)
}
