package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/navis-app/navis-api/internal/model"
)

// List-valued fields are stored as JSON text in both backends.

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal json")
	}
	return string(b), nil
}

func marshalPostLists(p *model.Post) (likes, comments string, err error) {
	liked := p.LikedBy
	if liked == nil {
		liked = []string{}
	}
	cs := p.Comments
	if cs == nil {
		cs = []model.Comment{}
	}
	if likes, err = marshalJSON(liked); err != nil {
		return "", "", err
	}
	if comments, err = marshalJSON(cs); err != nil {
		return "", "", err
	}
	return likes, comments, nil
}

func unmarshalPostLists(p *model.Post, likes, comments []byte) error {
	if err := json.Unmarshal(likes, &p.LikedBy); err != nil {
		return eris.Wrap(err, "store: unmarshal liked_by")
	}
	if err := json.Unmarshal(comments, &p.Comments); err != nil {
		return eris.Wrap(err, "store: unmarshal comments")
	}
	if p.LikedBy == nil {
		p.LikedBy = []string{}
	}
	if p.Comments == nil {
		p.Comments = []model.Comment{}
	}
	return nil
}

func marshalAlertLists(a *model.Alert) (contact, failures string, err error) {
	fs := a.Failures
	if fs == nil {
		fs = []string{}
	}
	if contact, err = marshalJSON(a.Contact); err != nil {
		return "", "", err
	}
	if failures, err = marshalJSON(fs); err != nil {
		return "", "", err
	}
	return contact, failures, nil
}

func unmarshalAlertLists(a *model.Alert, contact, failures []byte) error {
	if err := json.Unmarshal(contact, &a.Contact); err != nil {
		return eris.Wrap(err, "store: unmarshal contact")
	}
	if err := json.Unmarshal(failures, &a.Failures); err != nil {
		return eris.Wrap(err, "store: unmarshal failures")
	}
	if len(a.Failures) == 0 {
		a.Failures = nil
	}
	return nil
}

func unmarshalStrings(b []byte, dst *[]string) error {
	if err := json.Unmarshal(b, dst); err != nil {
		return eris.Wrap(err, "store: unmarshal string list")
	}
	if *dst == nil {
		*dst = []string{}
	}
	return nil
}
