package storage

import "time"

// UserSummary is the projection served by the public listing.
type UserSummary struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Profile identifies a message participant to the other side.
type Profile struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// User is a full identity record. The credential hash stays inside this
// package and is never part of the entity.
type User struct {
	Username    string     `json:"username"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       string     `json:"phone"`
	JoinedAt    time.Time  `json:"joined_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// Message is a directed communication unit between two users. Sender and
// recipient are fixed at creation; ReadAt stays nil until the recipient
// acknowledges the message.
type Message struct {
	ID           int64      `json:"id"`
	FromUsername string     `json:"from_username"`
	ToUsername   string     `json:"to_username"`
	Body         string     `json:"body"`
	SentAt       time.Time  `json:"sent_at"`
	ReadAt       *time.Time `json:"read_at"`
}

// MessageDetail is a message joined with both participants' profiles.
type MessageDetail struct {
	ID     int64      `json:"id"`
	Body   string     `json:"body"`
	SentAt time.Time  `json:"sent_at"`
	ReadAt *time.Time `json:"read_at"`
	From   Profile    `json:"from_user"`
	To     Profile    `json:"to_user"`
}

// IncomingMessage is an inbox entry: a message plus its sender's profile.
type IncomingMessage struct {
	ID     int64      `json:"id"`
	Body   string     `json:"body"`
	SentAt time.Time  `json:"sent_at"`
	ReadAt *time.Time `json:"read_at"`
	From   Profile    `json:"from_user"`
}

// OutgoingMessage is an outbox entry: a message plus its recipient's profile.
type OutgoingMessage struct {
	ID     int64      `json:"id"`
	Body   string     `json:"body"`
	SentAt time.Time  `json:"sent_at"`
	ReadAt *time.Time `json:"read_at"`
	To     Profile    `json:"to_user"`
}

// RegisterParams carries the fields required to create a new identity.
type RegisterParams struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}
