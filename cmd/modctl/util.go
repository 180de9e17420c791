package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, errors.New("need a restriction id")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid restriction id %q", s)
	}
	return id, nil
}

type seenSet map[uuid.UUID]struct{}

func newSeen() seenSet { return seenSet{} }

// printNew writes the entries of a newest-first snapshot that were not
// printed before, oldest first.
func printNew(enc *json.Encoder, logs []models.ModerationLog, seen seenSet) (int, error) {
	n := 0
	for i := len(logs) - 1; i >= 0; i-- {
		if _, ok := seen[logs[i].ID]; ok {
			continue
		}
		seen[logs[i].ID] = struct{}{}
		if err := enc.Encode(&logs[i]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// editKeywords adds or removes keywords, comparing case-insensitively.
func editKeywords(current, change []string, add bool) []string {
	out := make([]string, 0, len(current)+len(change))
	has := func(list []string, kw string) bool {
		for _, k := range list {
			if strings.EqualFold(k, kw) {
				return true
			}
		}
		return false
	}

	for _, kw := range current {
		if !add && has(change, kw) {
			continue
		}
		out = append(out, kw)
	}
	if add {
		for _, kw := range change {
			kw = strings.TrimSpace(kw)
			if kw != "" && !has(out, kw) {
				out = append(out, kw)
			}
		}
	}
	return out
}
