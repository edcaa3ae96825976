package domain

// TestFailure represents a failed test case
type TestFailure struct {
	NodeID       string `json:"node_id"`
	TestName     string `json:"test_name"`
	ContractName string `json:"contract_name"`
	FilePath     string `json:"file_path"`
	Line         int    `json:"line"`
	Message      string `json:"message"`
	Resolved     bool   `json:"resolved,omitempty"` // Track if test case is marked as resolved
}
