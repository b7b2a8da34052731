package models

import "time"

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "Pending"
	StatusApproved ApprovalStatus = "Approved"
	StatusRejected ApprovalStatus = "Rejected"
)

type Course struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Price            float64        `json:"price"`
	Visibility       bool           `json:"visibility"`
	PublishDate      time.Time      `json:"publishDate"`
	Videos           []string       `json:"videos"`
	Image            string         `json:"image"`
	NumberOfLectures int            `json:"numberOfLectures"`
	InstructorName   string         `json:"instructorName"`
	Level            string         `json:"level"`
	Category         string         `json:"category"`
	PurchasedBy      []string       `json:"purchasedBy"`
	ApprovalStatus   ApprovalStatus `json:"approvalStatus"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}
