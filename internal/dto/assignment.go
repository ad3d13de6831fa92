package dto

// AssignmentQuery mirrors supported assignment feed filters.
type AssignmentQuery struct {
	ProjectID string
	Status    []string
	Page      int
	PageSize  int
}
