package models

import (
	"time"

	"github.com/grindolympiads/examgate/olympiads"
	"github.com/grindolympiads/examgate/session"
	"github.com/mergestat/timediff"
	"github.com/samber/lo"
)

// UserFromBackend converts a backend user to the API representation.
// avatarURL overrides the raw backend avatar, so handlers can substitute the
// cached proxy URL or a gravatar fallback.
func UserFromBackend(u *olympiads.User, avatarURL string) *User {
	if u == nil {
		return nil
	}
	user := &User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Avatar:    avatarURL,
		IsAdmin:   u.IsAdmin,
		IsStaff:   u.IsStaff,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
		Points:    u.Points,
		Role:      u.Role,
	}
	if t, err := time.Parse(time.RFC3339, u.LastLogin); err == nil {
		user.LastLoginRelative = timediff.TimeDiff(t)
	}
	return user
}

// ProgressFromBackend converts backend progress entries.
func ProgressFromBackend(entries []olympiads.ProgressEntry) []Progress {
	return lo.Map(entries, func(e olympiads.ProgressEntry, _ int) Progress {
		return Progress{
			TestID:      e.TestID,
			Competition: e.Competition,
			Year:        e.Year,
			Exam:        e.Exam,
			Score:       e.Score,
			CompletedAt: e.CompletedAt,
		}
	})
}

// NotificationsFromBackend converts backend notifications.
func NotificationsFromBackend(items []olympiads.Notification) []Notification {
	return lo.Map(items, func(n olympiads.Notification, _ int) Notification {
		return Notification{
			ID:        n.ID,
			Message:   n.Message,
			Timestamp: n.Timestamp,
			Read:      n.Read,
		}
	})
}

// ExamsFromBackend converts backend exam listing entries.
func ExamsFromBackend(exams []olympiads.Exam) []Exam {
	return lo.Map(exams, func(e olympiads.Exam, _ int) Exam {
		return Exam{Competition: e.Competition, Year: e.Year, Exam: e.Exam}
	})
}

// SessionInfoFromState converts a session snapshot to the merged surface the
// SPA consumes. Progress serializes as [] rather than null after logout.
func SessionInfoFromState(state session.State, avatarURL string) SessionInfo {
	return SessionInfo{
		IsLoggedIn: state.IsLoggedIn,
		AdminMode:  state.AdminMode,
		User:       UserFromBackend(state.User, avatarURL),
		Progress:   ProgressFromBackend(state.Progress),
	}
}
