// Package conversation reconstructs chat threads from the message store:
// it joins message rows to their chat and attachment rows, classifies
// message subtypes, and stages referenced media into the output tree.
package conversation

import "time"

// Kind classifies a message row. The store encodes this as the numeric
// item_type discriminant; we carry it as a tag with only the fields for
// that kind populated.
type Kind string

const (
	KindText         Kind = "text"
	KindAddMember    Kind = "add"
	KindRemoveMember Kind = "remove"
	KindRename       Kind = "name"
	KindLeave        Kind = "leave"
)

// Attachment is a media file referenced by a message. Filename is the name
// the file is written under in the output attachments directory;
// TransferName is the original device-side file name.
type Attachment struct {
	Filename     string `json:"filename"`
	TransferName string `json:"transfer_name"`
	IsImage      bool   `json:"is_image"`
}

// Message is one message row. Only the fields belonging to its Kind are
// set: Content for text, OtherHandle for add/remove, GroupName for rename.
//
// A nil Sender means the backup owner wrote the message, and nothing else:
// unknown senders keep their handle id and simply fail name resolution
// later.
type Message struct {
	RowID       int64        `json:"rowid"`
	Timestamp   time.Time    `json:"timestamp"`
	Protocol    string       `json:"protocol"`
	Sender      *int64       `json:"sender,omitempty"`
	Kind        Kind         `json:"kind"`
	Content     string       `json:"content,omitempty"`
	OtherHandle int64        `json:"other_handle,omitempty"`
	GroupName   string       `json:"group_name,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// IsText reports whether the message carries readable content rather than a
// membership or rename event.
func (m Message) IsText() bool { return m.Kind == KindText }

// Conversation is one chat thread. ContactKey is the room name for group
// chats and the decimal first-member handle otherwise; it keys output
// filenames and index order. HumanName is computed by the renderer, never
// stored in the source.
type Conversation struct {
	ChatID     int64     `json:"dbid"`
	Group      bool      `json:"group_message"`
	Members    []int64   `json:"members"`
	ContactKey string    `json:"contact_id"`
	GroupName  string    `json:"group_name,omitempty"`
	HumanName  string    `json:"human_name,omitempty"`
	Messages   []Message `json:"messages"`
}
