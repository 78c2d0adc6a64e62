package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nathan-walker/marchiver/internal/backup"
)

// Group chats carry style 43; everything else, including the common
// single-recipient style 45, is one-to-one.
const groupChatStyle = 43

// Builder walks every chat in the message store and assembles conversation
// documents, scheduling referenced media copies as it goes.
type Builder struct {
	db     *sqlx.DB
	backup *backup.Backup
	attDir string
	log    *zap.Logger
	copies *errgroup.Group
}

// NewBuilder creates a builder that stages attachment files into
// attachmentsDir. workers bounds concurrent copies; zero means unbounded.
func NewBuilder(db *sqlx.DB, bk *backup.Backup, attachmentsDir string, workers int, log *zap.Logger) *Builder {
	copies := new(errgroup.Group)
	if workers > 0 {
		copies.SetLimit(workers)
	}
	return &Builder{
		db:     db,
		backup: bk,
		attDir: attachmentsDir,
		log:    log,
		copies: copies,
	}
}

type chatRow struct {
	RowID       int64          `db:"rowid"`
	Style       int64          `db:"style"`
	RoomName    sql.NullString `db:"room_name"`
	DisplayName sql.NullString `db:"display_name"`
}

type messageRow struct {
	RowID               int64          `db:"rowid"`
	Text                sql.NullString `db:"text"`
	HandleID            int64          `db:"handle_id"`
	Service             sql.NullString `db:"service"`
	Date                int64          `db:"date"`
	IsFromMe            int64          `db:"is_from_me"`
	CacheHasAttachments int64          `db:"cache_has_attachments"`
	ItemType            int64          `db:"item_type"`
	GroupActionType     int64          `db:"group_action_type"`
	OtherHandle         int64          `db:"other_handle"`
	GroupTitle          sql.NullString `db:"group_title"`
}

type attachmentRow struct {
	Filename     sql.NullString `db:"filename"`
	MimeType     sql.NullString `db:"mime_type"`
	TransferName sql.NullString `db:"transfer_name"`
}

// BuildAll assembles every conversation in the store. It returns only after
// each chat is complete and every scheduled attachment copy has joined, so
// the caller can hand the output tree to the renderer immediately.
func (b *Builder) BuildAll(ctx context.Context) ([]*Conversation, error) {
	var chats []chatRow
	if err := b.db.SelectContext(ctx, &chats,
		`SELECT ROWID AS rowid, style, room_name, display_name FROM chat`,
	); err != nil {
		return nil, fmt.Errorf("failed to load chats: %w", err)
	}

	conversations := make([]*Conversation, 0, len(chats))
	for _, chat := range chats {
		conv, err := b.build(ctx, chat)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	// Attachment copies overlap assembly; everything must have landed
	// before the renderer reads the output tree.
	if err := b.copies.Wait(); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (b *Builder) build(ctx context.Context, chat chatRow) (*Conversation, error) {
	conv := &Conversation{
		ChatID:   chat.RowID,
		Group:    chat.Style == groupChatStyle,
		Messages: []Message{},
	}

	if err := b.db.SelectContext(ctx, &conv.Members,
		`SELECT handle_id FROM chat_handle_join WHERE chat_id = ?`, chat.RowID,
	); err != nil {
		return nil, fmt.Errorf("failed to load members for chat %d: %w", chat.RowID, err)
	}

	switch {
	case conv.Group:
		conv.ContactKey = chat.RoomName.String
		conv.GroupName = chat.DisplayName.String
	case len(conv.Members) > 0:
		conv.ContactKey = strconv.FormatInt(conv.Members[0], 10)
	default:
		// A chat row with no chat_handle_join rows. Key it by its own id so
		// the output filename stays stable.
		b.log.Warn("chat has no members", zap.Int64("chat", chat.RowID))
		conv.ContactKey = strconv.FormatInt(chat.RowID, 10)
	}

	var messageIDs []int64
	if err := b.db.SelectContext(ctx, &messageIDs,
		`SELECT message_id FROM chat_message_join WHERE chat_id = ?`, chat.RowID,
	); err != nil {
		return nil, fmt.Errorf("failed to load message ids for chat %d: %w", chat.RowID, err)
	}

	for _, id := range messageIDs {
		msg, err := b.buildMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, msg)
	}

	// ROWID is the chronological surrogate; timestamps can collide or be
	// missing, so they never drive ordering.
	sort.Slice(conv.Messages, func(i, j int) bool {
		return conv.Messages[i].RowID < conv.Messages[j].RowID
	})
	return conv, nil
}

func (b *Builder) buildMessage(ctx context.Context, id int64) (Message, error) {
	var row messageRow
	if err := b.db.GetContext(ctx, &row,
		`SELECT ROWID AS rowid, text, handle_id, service, date, is_from_me,
		        cache_has_attachments, item_type, group_action_type,
		        other_handle, group_title
		 FROM message WHERE ROWID = ?`, id,
	); err != nil {
		return Message{}, fmt.Errorf("failed to load message %d: %w", id, err)
	}

	msg := Message{
		RowID:     row.RowID,
		Timestamp: timeFromMach(row.Date),
		Protocol:  "sms",
	}
	if row.Service.Valid && row.Service.String != "" {
		msg.Protocol = strings.ToLower(row.Service.String)
	}
	if row.IsFromMe != 1 && row.HandleID != 0 {
		sender := row.HandleID
		msg.Sender = &sender
	}

	switch row.ItemType {
	case 0:
		msg.Kind = KindText
		if !row.Text.Valid || row.Text.String == "" {
			// Known data-quality edge case: some rows have no text at all.
			b.log.Warn("message has empty text", zap.Int64("message", row.RowID))
			msg.Content = "ERROR"
		} else {
			// U+FFFC marks an inline attachment position.
			msg.Content = strings.ReplaceAll(row.Text.String, "￼", "")
		}
	case 1:
		if row.GroupActionType == 0 {
			msg.Kind = KindAddMember
		} else {
			msg.Kind = KindRemoveMember
		}
		msg.OtherHandle = row.OtherHandle
	case 2:
		msg.Kind = KindRename
		msg.GroupName = row.GroupTitle.String
	case 3:
		msg.Kind = KindLeave
	default:
		// Later store versions add item types we do not classify; keep the
		// row as text so it still appears in the thread.
		b.log.Warn("unrecognized message item type",
			zap.Int64("message", row.RowID),
			zap.Int64("item_type", row.ItemType))
		msg.Kind = KindText
		msg.Content = strings.ReplaceAll(row.Text.String, "￼", "")
	}

	if row.CacheHasAttachments == 1 {
		attachments, err := b.loadAttachments(ctx, row.RowID)
		if err != nil {
			return Message{}, err
		}
		msg.Attachments = attachments
	}
	return msg, nil
}

func (b *Builder) loadAttachments(ctx context.Context, messageID int64) ([]Attachment, error) {
	var rows []attachmentRow
	if err := b.db.SelectContext(ctx, &rows,
		`SELECT filename, mime_type, transfer_name
		 FROM attachment
		 INNER JOIN message_attachment_join ON attachment.ROWID = message_attachment_join.attachment_id
		 WHERE message_id = ?`, messageID,
	); err != nil {
		return nil, fmt.Errorf("failed to load attachments for message %d: %w", messageID, err)
	}

	attachments := make([]Attachment, 0, len(rows))
	for _, row := range rows {
		att, ok := b.stageAttachment(messageID, row)
		if !ok {
			continue
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}

// stageAttachment rewrites the device path into the backup tool's
// content-addressed form and schedules the media copy.
func (b *Builder) stageAttachment(messageID int64, row attachmentRow) (Attachment, bool) {
	if !row.Filename.Valid || row.Filename.String == "" {
		b.log.Warn("attachment row has no filename", zap.Int64("message", messageID))
		return Attachment{}, false
	}

	devicePath := rewriteDevicePath(row.Filename.String)

	transferName := row.TransferName.String
	if transferName == "" {
		transferName = path.Base(devicePath)
	}

	hash := backup.HashedName(devicePath)
	att := Attachment{
		Filename:     hash + "-" + transferName,
		TransferName: transferName,
		IsImage:      strings.HasPrefix(row.MimeType.String, "image"),
	}

	dst := filepath.Join(b.attDir, att.Filename)
	b.copies.Go(func() error {
		if !b.backup.HasFile(hash) {
			b.log.Warn("attachment file missing from backup",
				zap.String("device_path", devicePath),
				zap.String("hash", hash))
			return nil
		}
		if err := b.backup.CopyFile(hash, dst); err != nil {
			b.log.Warn("attachment copy failed",
				zap.String("file", att.Filename),
				zap.Error(err))
		}
		return nil
	})
	return att, true
}

// rewriteDevicePath maps a stored attachment path onto the name the backup
// tool hashes: the device root becomes "~" and the remainder is rooted in
// MediaDomain.
func rewriteDevicePath(p string) string {
	p = strings.Replace(p, "/var/mobile", "~", 1)
	if len(p) < 2 {
		return "MediaDomain-"
	}
	return "MediaDomain-" + p[2:]
}
