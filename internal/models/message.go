package models

import "time"

// Message is a single chat message inside a room.
type Message struct {
	// ID is the server-assigned message identifier.
	ID int64 `json:"id"`
	// RoomID references the room the message belongs to.
	RoomID int64 `json:"roomId"`
	// UserID is the id of the author.
	UserID int64 `json:"userId"`
	// Content is the text body. Empty for attachment-only messages.
	Content string `json:"content,omitempty"`
	// FileURL points at an already-uploaded attachment, if any.
	FileURL string `json:"fileUrl,omitempty"`
	// FileType indicates the attachment kind ("image", "video", ...).
	FileType string `json:"fileType,omitempty"`
	// IsEdited is set when the server has recorded an edit.
	IsEdited bool `json:"isEdited"`
	// CreatedAt is the server-side creation timestamp.
	CreatedAt time.Time `json:"createdAt"`
	// User carries author details when the server embeds them.
	User *User `json:"user,omitempty"`
}

// MessageDraft is the body of a send-message request. Attachment upload
// happens elsewhere; the draft only references the resulting URL.
type MessageDraft struct {
	Content  string `json:"content,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileType string `json:"fileType,omitempty"`
}
