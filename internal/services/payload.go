package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"threadline/internal/models"

	"gorm.io/datatypes"
)

// BuildPayload snapshots a comment, its ancestors (root first) and its
// commentable into the json_data stored on a notification.
func BuildPayload(c models.Comment, ancestors []models.Comment, commentable models.Commentable) (datatypes.JSON, error) {
	p := models.NotificationPayload{
		Comment: models.PayloadComment{
			ID:        c.ID,
			Path:      c.Path(),
			Title:     c.Title(),
			Depth:     c.Depth(),
			Ancestors: make([]models.PayloadAncestor, 0, len(ancestors)),
		},
		User: models.PayloadUser{ID: c.User.ID, Username: c.User.Username},
	}
	for _, a := range ancestors {
		p.Comment.Ancestors = append(p.Comment.Ancestors, models.PayloadAncestor{
			ID:    a.ID,
			Title: a.Title(),
			Path:  a.Path(),
			Depth: a.Depth(),
		})
	}
	if commentable != nil {
		ref := commentable.Ref()
		p.Commentable = models.PayloadCommentable{Type: ref.Type, ID: ref.ID, Title: commentable.CommentableTitle()}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// RetitleAncestor returns a mutator that sets the title of the ancestor
// entry for ancestorID. Entries without a title, other ancestors and every
// other field are left as they are. Applying it twice changes nothing.
func RetitleAncestor(ancestorID uint, title string) models.PayloadMutator {
	want := strconv.FormatUint(uint64(ancestorID), 10)

	return func(payload datatypes.JSON) (datatypes.JSON, bool, error) {
		if len(payload) == 0 {
			return payload, false, nil
		}
		var doc map[string]any
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, false, fmt.Errorf("decode payload: %w", err)
		}

		comment, _ := doc["comment"].(map[string]any)
		ancestors, _ := comment["ancestors"].([]any)
		changed := false
		for _, a := range ancestors {
			entry, ok := a.(map[string]any)
			if !ok {
				continue
			}
			if id, ok := entry["id"].(json.Number); !ok || id.String() != want {
				continue
			}
			current, hasTitle := entry["title"]
			if !hasTitle || current == title {
				continue
			}
			entry["title"] = title
			changed = true
		}
		if !changed {
			return payload, false, nil
		}

		next, err := json.Marshal(doc)
		if err != nil {
			return nil, false, fmt.Errorf("encode payload: %w", err)
		}
		return datatypes.JSON(next), true, nil
	}
}
