// ABOUTME: Data model returned by the webhook backend
// ABOUTME: User and Assistant keep every unknown field so they round-trip as open records

package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Record is an open JSON object. Numbers are kept as json.Number so ids
// keep the exact text the backend sent.
type Record map[string]any

// Report is one lead report row; its fields are not fixed.
type Report = Record

// User is the authenticated user as returned by the login webhook.
type User struct {
	ID    string
	Name  string
	Email string

	// Extra holds the full record as received, including the fields above.
	Extra Record
}

// UnmarshalJSON decodes a user record, keeping unknown fields.
func (u *User) UnmarshalJSON(data []byte) error {
	rec, err := decodeRecord(data)
	if err != nil {
		return err
	}
	u.ID = Text(rec["id"])
	u.Name = Text(rec["nome"])
	u.Email = Text(rec["email"])
	u.Extra = rec
	return nil
}

// MarshalJSON writes the record back out with the typed fields applied.
func (u User) MarshalJSON() ([]byte, error) {
	out := cloneRecord(u.Extra)
	overlay(out, "id", u.ID)
	overlay(out, "nome", u.Name)
	overlay(out, "email", u.Email)
	return json.Marshal(out)
}

// DisplayName returns the name, falling back to the email.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Assistant is an AI assistant configuration owned by a user.
type Assistant struct {
	ID     string
	Name   string
	Prompt string

	// ClientID is echoed verbatim on update; it may be a string or a number.
	ClientID any

	// Columns is only filled when the backend includes colunas in the record.
	Columns []string

	Extra Record
}

// UnmarshalJSON decodes an assistant record, keeping unknown fields.
func (a *Assistant) UnmarshalJSON(data []byte) error {
	rec, err := decodeRecord(data)
	if err != nil {
		return err
	}
	*a = assistantFromRecord(rec)
	return nil
}

// MarshalJSON writes the record back out with the typed fields applied.
func (a Assistant) MarshalJSON() ([]byte, error) {
	out := cloneRecord(a.Extra)
	overlay(out, "id", a.ID)
	overlay(out, "nome", a.Name)
	overlay(out, "prompt", a.Prompt)
	if a.ClientID != nil {
		out["id_cliente"] = a.ClientID
	}
	if a.Columns != nil {
		out["colunas"] = a.Columns
	}
	return json.Marshal(out)
}

// Record returns the assistant as an open record, as used by search.
func (a Assistant) Record() Record {
	out := cloneRecord(a.Extra)
	overlay(out, "id", a.ID)
	overlay(out, "nome", a.Name)
	overlay(out, "prompt", a.Prompt)
	return out
}

func assistantFromRecord(rec Record) Assistant {
	a := Assistant{
		ID:       Text(rec["id"]),
		Name:     Text(rec["nome"]),
		Prompt:   Text(rec["prompt"]),
		ClientID: rec["id_cliente"],
		Extra:    rec,
	}
	if cols, ok := rec["colunas"].([]any); ok {
		a.Columns = textList(cols)
	}
	return a
}

// Text returns the textual form of a scalar JSON value. Absent and null
// values yield "".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}

func textList(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, Text(item))
	}
	return out
}

func decodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}

func cloneRecord(r Record) Record {
	out := make(Record, len(r)+3)
	maps.Copy(out, r)
	return out
}

// overlay sets key to value unless the record already holds the same text,
// so a numeric id stays numeric when written back.
func overlay(r Record, key, value string) {
	if existing, ok := r[key]; ok && Text(existing) == value {
		return
	}
	if value == "" {
		if _, ok := r[key]; !ok {
			return
		}
	}
	r[key] = value
}
