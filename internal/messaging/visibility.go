package messaging

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/PlaceBound/PB-Backend/internal/core"
)

// AnonymousAuthor is the disclosed author for anonymous messages. The real
// author reference stays on the stored row for moderation but never leaves
// the resolver.
const AnonymousAuthor = "anonymous"

// VisibleMessage is a message as one requester is allowed to see it.
type VisibleMessage struct {
	ID          string         `json:"id"`
	Author      string         `json:"author"`
	Content     string         `json:"content"`
	ContainsPII bool           `json:"contains_pii"`
	CreatedAt   time.Time      `json:"created_at"`
	Reactions   map[string]int `json:"reactions"`
}

// ChannelSnapshot is the immutable read state the resolver works on:
// identifier-keyed maps assembled by the store, no live database access.
type ChannelSnapshot struct {
	Channel      *Channel
	Members      map[string]*ChannelMembership // keyed by user ID
	DisplayNames map[string]string             // user ID -> display name
	Messages     []*Message
	Reactions    map[string][]*MessageReaction // keyed by message ID
}

// Resolver computes which messages a requester may read and how authors are
// disclosed. Each call evaluates against the snapshots it was built with;
// there is no cross-request state.
type Resolver struct {
	channels  map[string]*ChannelSnapshot
	messages  map[string]*Message
	reactions map[string][]*MessageReaction
}

// NewResolver indexes the given snapshots. Messages inside each snapshot are
// ordered by creation time, ID as tie-break, once here; listing never
// re-sorts.
func NewResolver(snaps ...*ChannelSnapshot) *Resolver {
	r := &Resolver{
		channels:  make(map[string]*ChannelSnapshot, len(snaps)),
		messages:  make(map[string]*Message),
		reactions: make(map[string][]*MessageReaction),
	}
	for _, s := range snaps {
		sort.SliceStable(s.Messages, func(i, j int) bool {
			a, b := s.Messages[i], s.Messages[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		r.channels[s.Channel.ID] = s
		for _, m := range s.Messages {
			r.messages[m.ID] = m
		}
		for id, reacts := range s.Reactions {
			r.reactions[id] = reacts
		}
	}
	return r
}

// ListVisibleMessages returns the messages the requester may read in the
// channel, in creation order, with author disclosure applied. Fails with
// ErrNotFound for an unknown channel and ErrAccessDenied without membership.
func (r *Resolver) ListVisibleMessages(requesterID, channelID string) ([]VisibleMessage, error) {
	snap, ok := r.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: channel %s", core.ErrNotFound, channelID)
	}
	if _, ok := snap.Members[requesterID]; !ok {
		return nil, fmt.Errorf("%w: not a member of channel %s", core.ErrAccessDenied, channelID)
	}

	requesterName := canonicalName(snap.DisplayNames[requesterID])

	var out []VisibleMessage
	for _, m := range snap.Messages {
		if !audienceIncludes(m, requesterName) {
			continue
		}
		author := AnonymousAuthor
		if !m.IsAnonymous {
			author = snap.DisplayNames[m.AuthorID]
		}
		out = append(out, VisibleMessage{
			ID:          m.ID,
			Author:      author,
			Content:     m.Content,
			ContainsPII: m.ContainsPII,
			CreatedAt:   m.CreatedAt,
			Reactions:   tally(r.reactions[m.ID]),
		})
	}
	return out, nil
}

// ReactionTally aggregates reaction counts per kind over all reactions on the
// message, regardless of requester. Unknown message fails with ErrNotFound.
func (r *Resolver) ReactionTally(messageID string) (map[string]int, error) {
	if _, ok := r.messages[messageID]; !ok {
		return nil, fmt.Errorf("%w: message %s", core.ErrNotFound, messageID)
	}
	return tally(r.reactions[messageID]), nil
}

// audienceIncludes applies the restricted-audience rule: an empty allow-list
// admits every member; a non-empty one admits only members whose display name
// is listed. Restriction composes with membership, it never replaces it.
func audienceIncludes(m *Message, requesterName string) bool {
	if len(m.RestrictedToNames) == 0 {
		return true
	}
	for _, n := range m.RestrictedToNames {
		if canonicalName(n) == requesterName {
			return true
		}
	}
	return false
}

// canonicalName puts a display name into NFC so that allow-list entries and
// profile names in different Unicode encodings of the same text still match.
// No case folding: the visible name is the name.
func canonicalName(s string) string {
	return norm.NFC.String(s)
}

func tally(reacts []*MessageReaction) map[string]int {
	out := make(map[string]int)
	for _, re := range reacts {
		out[re.Kind]++
	}
	return out
}
