package models

// ErrorResponse is the standard REST error body.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PaginatedMessages is the cursor-paginated history response.
type PaginatedMessages struct {
	Items      []Message `json:"items"`
	Total      int       `json:"total"`
	NextCursor *int64    `json:"nextCursor,omitempty"`
}

// UserStatus is the REST presence snapshot for a single user.
type UserStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
	LastSeen int64  `json:"lastSeen,omitempty"`
}
