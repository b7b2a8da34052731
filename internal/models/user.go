package models

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleInstructor:
		return true
	default:
		return false
	}
}

type User struct {
	ID               string           `json:"id"`
	Username         string           `json:"username"`
	Email            string           `json:"email"`
	Role             Role             `json:"role"`
	PasswordHash     string           `json:"-"`
	OTPHash          *string          `json:"-"`
	OTPExpiresAt     *time.Time       `json:"-"`
	PurchasedCourses []string         `json:"purchasedCourses"`
	Progress         []CourseProgress `json:"progress"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        *time.Time       `json:"updatedAt,omitempty"`
}

// CourseProgress is the set of completed lecture indices for one course.
type CourseProgress struct {
	CourseID        string         `json:"courseId"`
	Course          *CourseSummary `json:"course,omitempty"`
	CompletedVideos []int          `json:"completedVideos"`
}

// CourseSummary is the slice of a course embedded in progress listings.
type CourseSummary struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	NumberOfLectures int    `json:"numberOfLectures"`
}
