package domain

import (
	"encoding/json"
	"time"
)

// Entry captures a single journal entry together with its mood scores.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Mood      Mood      `json:"mood,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// UnmarshalJSON accepts the legacy "_id" key used by older clients.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	aux := struct {
		*plain
		LegacyID string `json:"_id"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = aux.LegacyID
	}
	return nil
}

// Clone returns a copy that shares no mutable state with e.
func (e Entry) Clone() Entry {
	e.Mood = e.Mood.Clone()
	return e
}

// User is the local record of an identity issued by the auth provider.
type User struct {
	ID          string    `json:"id"`
	FirebaseID  string    `json:"firebaseId"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateEntryInput is the payload for creating new entries.
type CreateEntryInput struct {
	UserID string `json:"userId" validate:"required"`
	Title  string `json:"title" validate:"required,max=200"`
	Body   string `json:"body" validate:"required,max=20000"`
	Mood   Mood   `json:"mood"`
}

// UpdateEntryInput carries a partial update. Nil fields are left untouched.
type UpdateEntryInput struct {
	Title *string `json:"title" validate:"omitempty,min=1,max=200"`
	Body  *string `json:"body" validate:"omitempty,min=1,max=20000"`
	Mood  Mood    `json:"mood"`
}

// CreateUserInput is the payload for registering a user.
type CreateUserInput struct {
	FirebaseID  string `json:"firebaseId" validate:"required,max=128"`
	Email       string `json:"email" validate:"omitempty,email"`
	DisplayName string `json:"displayName" validate:"max=100"`
}

// EntryQuery narrows entry listings.
type EntryQuery struct {
	UserID string
	Limit  int
}
