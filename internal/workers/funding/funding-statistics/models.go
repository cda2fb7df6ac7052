// internal/workers/funding/funding-statistics/models.go
package fundingstatistics

import "funding-engine/internal/accounting"

type Input struct {
	// IncludeDeadlines adds the nearing-deadline report to the output.
	IncludeDeadlines bool `json:"includeDeadlines,omitempty"`
}

type Output struct {
	Statistics      *accounting.FundingStatistics `json:"statistics"`
	NearingDeadline []accounting.DeadlineEntry    `json:"nearingDeadline,omitempty"`
}
