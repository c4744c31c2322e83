package models

// User represents a user as exposed to the SPA.
type User struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Avatar            string `json:"avatar"`
	IsAdmin           bool   `json:"isAdmin"`
	IsStaff           bool   `json:"isStaff"`
	CreatedAt         string `json:"createdAt"`
	LastLogin         string `json:"lastLogin"`
	LastLoginRelative string `json:"lastLoginRelative,omitempty"`
	Points            int    `json:"points"`
	Role              string `json:"role"`
}

// Progress represents a completed exam record.
type Progress struct {
	TestID      string `json:"testId"`
	Competition string `json:"competition"`
	Year        string `json:"year"`
	Exam        string `json:"exam"`
	Score       int    `json:"score"`
	CompletedAt string `json:"completedAt"`
}

// Notification represents a user notification.
type Notification struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

// Exam represents an entry in the exam listing.
type Exam struct {
	Competition string `json:"competition"`
	Year        string `json:"year"`
	Exam        string `json:"exam"`
}

// SessionInfo is the merged session surface returned to the SPA: identity,
// privilege and progress in one place.
type SessionInfo struct {
	IsLoggedIn bool       `json:"isLoggedIn"`
	AdminMode  bool       `json:"isAdminMode"`
	User       *User      `json:"user"`
	Progress   []Progress `json:"userProgress"`
}
