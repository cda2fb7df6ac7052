// internal/workers/funding/process-expired-funding/models.go
package processexpiredfunding

import "funding-engine/internal/escrow"

type Input struct {
	// AsOf overrides the sweep's reference time (ISO 8601). Empty means now.
	AsOf string `json:"asOf,omitempty"`
}

type Output struct {
	ProcessedCount      int                      `json:"processedCount"`
	ProcessedFranchises []escrow.FranchiseResult `json:"processedFranchises"`
}
