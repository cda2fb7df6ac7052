// internal/workers/funding/approve-franchise/models.go
package approvefranchise

type Input struct {
	FranchiseID     string `json:"franchiseId"`
	Decision        string `json:"decision"` // "approved" | "rejected"
	Reason          string `json:"reason,omitempty"`
	LaunchStartDate string `json:"launchStartDate,omitempty"` // ISO 8601, optional
	LaunchEndDate   string `json:"launchEndDate,omitempty"`   // ISO 8601, optional
}

type Output struct {
	FranchiseID     string `json:"franchiseId"`
	FranchiseStatus string `json:"franchiseStatus"`
	LaunchStartDate string `json:"launchStartDate,omitempty"`
	LaunchEndDate   string `json:"launchEndDate,omitempty"`
}
