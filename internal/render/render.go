// Package render turns built conversations into the output tree: an index
// page, one HTML page per thread, JSON exports, and the stylesheet. It also
// owns thread merging, which needs the computed display names.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nathan-walker/marchiver/internal/contacts"
	"github.com/nathan-walker/marchiver/internal/conversation"
)

//go:embed templates/*.tmpl templates/style.css
var templateFS embed.FS

// Renderer resolves display names, merges duplicate threads, and writes the
// HTML and JSON output tree.
type Renderer struct {
	outDir  string
	records map[int64]contacts.Record
	log     *zap.Logger
	index   *template.Template
	conv    *template.Template
}

// New parses the embedded templates against the bound contact records.
func New(outDir string, records map[int64]contacts.Record, log *zap.Logger) (*Renderer, error) {
	r := &Renderer{outDir: outDir, records: records, log: log}

	funcs := template.FuncMap{
		"displayName": r.senderName,
		"statusText":  r.statusText,
	}

	var err error
	r.index, err = template.New("index.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse index template: %w", err)
	}
	r.conv, err = template.New("conversation.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/conversation.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse conversation template: %w", err)
	}
	return r, nil
}

// Render runs the whole output stage: sort, resolve names, merge, write.
func (r *Renderer) Render(convs []*conversation.Conversation) error {
	SortByContactKey(convs)
	r.ResolveNames(convs)
	convs = r.Merge(convs)

	if err := r.WriteHTML(convs); err != nil {
		return err
	}
	if err := r.WriteJSON(convs); err != nil {
		return err
	}
	return r.WriteStylesheet()
}

// SortByContactKey orders conversations by contact key, the order the index
// page lists them in.
func SortByContactKey(convs []*conversation.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].ContactKey < convs[j].ContactKey
	})
}

// ResolveNames computes each conversation's human display name. Groups use
// their explicit name when present, otherwise the member names joined with
// " and "; one-to-one threads use the counterpart's name or identifier.
func (r *Renderer) ResolveNames(convs []*conversation.Conversation) {
	for _, c := range convs {
		c.HumanName = r.humanName(c)
	}
}

func (r *Renderer) humanName(c *conversation.Conversation) string {
	if c.Group {
		if c.GroupName != "" {
			return c.GroupName
		}
		parts := make([]string, 0, len(c.Members))
		for _, m := range c.Members {
			parts = append(parts, r.name(m))
		}
		return strings.Join(parts, " and ")
	}
	if len(c.Members) == 0 {
		return ""
	}
	return r.name(c.Members[0])
}

// name resolves a handle to its contact name, falling back to the raw
// identifier, and finally to the handle id for handles missing from the
// handle table altogether.
func (r *Renderer) name(handle int64) string {
	rec, ok := r.records[handle]
	if !ok {
		return strconv.FormatInt(handle, 10)
	}
	if rec.Name != "" {
		return rec.Name
	}
	return rec.ID
}

// senderName is the template-facing variant of name: a nil sender is the
// backup owner.
func (r *Renderer) senderName(sender *int64) string {
	if sender == nil {
		return "You"
	}
	return r.name(*sender)
}

// statusText renders the one-line description of a non-text message.
func (r *Renderer) statusText(m conversation.Message) template.HTML {
	person := template.HTMLEscapeString(r.senderName(m.Sender))
	switch m.Kind {
	case conversation.KindAddMember:
		return template.HTML(person + " added " + template.HTMLEscapeString(r.name(m.OtherHandle)) + " to the group.")
	case conversation.KindRemoveMember:
		return template.HTML(person + " removed " + template.HTMLEscapeString(r.name(m.OtherHandle)) + " from the group.")
	case conversation.KindRename:
		return template.HTML(person + " changed the group name to <strong>" + template.HTMLEscapeString(m.GroupName) + "</strong>.")
	case conversation.KindLeave:
		return template.HTML(person + " left the group.")
	}
	return ""
}

// Merge collapses conversations that resolve to the same non-empty human
// name under different chat ids: typically an SMS thread and an iMessage
// thread for the same person. Messages are concatenated and re-sorted by
// source rowid. The pairwise scan is quadratic in conversation count, which
// stays in the hundreds.
func (r *Renderer) Merge(convs []*conversation.Conversation) []*conversation.Conversation {
	for i := 0; i < len(convs); i++ {
		cur := convs[i]
		if cur.HumanName == "" {
			continue
		}
		for j := 0; j < len(convs); j++ {
			other := convs[j]
			if i == j || other.ChatID == cur.ChatID || other.HumanName != cur.HumanName {
				continue
			}
			r.log.Info("merging threads for same counterpart",
				zap.String("name", cur.HumanName),
				zap.Int64("into", cur.ChatID),
				zap.Int64("from", other.ChatID))
			cur.Messages = append(cur.Messages, other.Messages...)
			sort.Slice(cur.Messages, func(a, b int) bool {
				return cur.Messages[a].RowID < cur.Messages[b].RowID
			})
			convs = append(convs[:j], convs[j+1:]...)
			if j < i {
				i--
			}
			j--
		}
	}
	return convs
}

// WriteHTML writes the index page and one page per conversation.
func (r *Renderer) WriteHTML(convs []*conversation.Conversation) error {
	var buf bytes.Buffer
	if err := r.index.Execute(&buf, convs); err != nil {
		return fmt.Errorf("failed to render index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.outDir, "index.html"), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	for _, c := range convs {
		buf.Reset()
		if err := r.conv.Execute(&buf, c); err != nil {
			return fmt.Errorf("failed to render conversation %s: %w", c.ContactKey, err)
		}
		path := filepath.Join(r.outDir, "conversations", c.ContactKey+".html")
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write conversation %s: %w", c.ContactKey, err)
		}
	}
	return nil
}

// WriteJSON writes messages.json and contacts.json, both tab-indented.
// messages.json orders conversations by their earliest message; contacts
// are keyed by handle id.
func (r *Renderer) WriteJSON(convs []*conversation.Conversation) error {
	ordered := append([]*conversation.Conversation(nil), convs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return firstTimestamp(ordered[i]).Before(firstTimestamp(ordered[j]))
	})

	data, err := json.MarshalIndent(ordered, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.outDir, "messages.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write messages.json: %w", err)
	}

	data, err = json.MarshalIndent(r.records, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal contacts: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.outDir, "contacts.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write contacts.json: %w", err)
	}
	return nil
}

func firstTimestamp(c *conversation.Conversation) time.Time {
	if len(c.Messages) > 0 {
		return c.Messages[0].Timestamp
	}
	return time.Time{}
}

// WriteStylesheet copies the embedded stylesheet next to the index page.
func (r *Renderer) WriteStylesheet() error {
	css, err := templateFS.ReadFile("templates/style.css")
	if err != nil {
		return fmt.Errorf("failed to read embedded stylesheet: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.outDir, "style.css"), css, 0644); err != nil {
		return fmt.Errorf("failed to write stylesheet: %w", err)
	}
	return nil
}
