package domain

// DashboardStats aggregates headline numbers for employees.
type DashboardStats struct {
	TotalRequests     int                   `json:"total_requests"`
	RequestsByStatus  map[RequestStatus]int `json:"requests_by_status"`
	RecentRequests    int                   `json:"requests_last_30_days"`
	TotalCustomers    int                   `json:"total_customers"`
	ActiveEmployees   int                   `json:"active_employees"`
	InvoicedAmount    int64                 `json:"invoiced_amount"`
	CollectedAmount   int64                 `json:"collected_amount"`
	OutstandingAmount int64                 `json:"outstanding_amount"`
}
