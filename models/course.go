package models

import "time"

// Course holds only the fields the booking lifecycle reads. Students is the
// enrolled roster and is the source of truth for membership.
type Course struct {
	ID           string    `bson:"id" json:"id"`
	Title        string    `bson:"title" json:"title"`
	InstructorID string    `bson:"instructor" json:"instructor"`
	Price        float64   `bson:"price" json:"price"`
	Capacity     int       `bson:"capacity" json:"capacity"`
	Students     []string  `bson:"students" json:"students"`
	IsActive     bool      `bson:"isActive" json:"isActive"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasStudent reports roster membership.
func (c *Course) HasStudent(studentID string) bool {
	for _, s := range c.Students {
		if s == studentID {
			return true
		}
	}
	return false
}

// IsFull reports whether no seat is left.
func (c *Course) IsFull() bool {
	return len(c.Students) >= c.Capacity
}
