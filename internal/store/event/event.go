// Package event owns the ordered event timeline: normalization of incoming
// events, the hybrid merge order, filter-scoped live merging and cursor
// pagination backwards through history.
package event

import (
	"sort"

	"cultivationworld.ai/internal/protocol"
)

// MaxEvents bounds the timeline; the newest entries win.
const MaxEvents = 300

// NoSeq marks an event that was not ingested as part of a tick batch.
const NoSeq = -1

type GameEvent struct {
	ID               string
	Text             string
	Content          string
	Year             int
	Month            int
	Timestamp        int // year*12+month
	RelatedAvatarIDs []string
	IsMajor          bool
	IsStory          bool
	CreatedAt        float64 // 0 when the source has no wall-clock time

	// Seq is the position inside the ingestion batch. Only comparable
	// between events of the same batch.
	Seq int
}

func (e GameEvent) Involves(avatarID string) bool {
	for _, id := range e.RelatedAvatarIDs {
		if id == avatarID {
			return true
		}
	}
	return false
}

// MonthStamp is the month index used as the coarse sort key.
func MonthStamp(year, month int) int {
	return year*12 + month
}

// ProcessNewEvents normalizes a tick batch. Missing year/month fall back to
// the current simulation time.
func ProcessNewEvents(raw []protocol.EventDTO, currentYear, currentMonth int) []GameEvent {
	if len(raw) == 0 {
		return nil
	}
	out := make([]GameEvent, 0, len(raw))
	for i, e := range raw {
		year, month := currentYear, currentMonth
		if e.Year != nil {
			year = *e.Year
		}
		if e.Month != nil {
			month = *e.Month
		}
		related := e.RelatedAvatarIDs
		if related == nil {
			related = []string{}
		}
		out = append(out, GameEvent{
			ID:               e.ID,
			Text:             e.Text,
			Content:          e.Content,
			Year:             year,
			Month:            month,
			Timestamp:        MonthStamp(year, month),
			RelatedAvatarIDs: related,
			IsMajor:          e.IsMajor,
			IsStory:          e.IsStory,
			CreatedAt:        e.CreatedAt,
			Seq:              i,
		})
	}
	return out
}

// FromDTO maps an events-listing entry, which carries its own month stamp.
func FromDTO(e protocol.EventDTO) GameEvent {
	g := GameEvent{
		ID:               e.ID,
		Text:             e.Text,
		Content:          e.Content,
		Timestamp:        e.MonthStamp,
		RelatedAvatarIDs: e.RelatedAvatarIDs,
		IsMajor:          e.IsMajor,
		IsStory:          e.IsStory,
		CreatedAt:        e.CreatedAt,
		Seq:              NoSeq,
	}
	if e.Year != nil {
		g.Year = *e.Year
	}
	if e.Month != nil {
		g.Month = *e.Month
	}
	if g.RelatedAvatarIDs == nil {
		g.RelatedAvatarIDs = []string{}
	}
	return g
}

// TimelineFromPage converts a newest-first page into oldest-first order.
func TimelineFromPage(events []protocol.EventDTO) []GameEvent {
	out := make([]GameEvent, len(events))
	for i, e := range events {
		out[len(events)-1-i] = FromDTO(e)
	}
	return out
}

// Less is the timeline order: wall-clock time when both sides have it,
// otherwise month stamp, then batch sequence.
func Less(a, b GameEvent) bool {
	return compare(a, b) < 0
}

func compare(a, b GameEvent) int {
	if a.CreatedAt > 0 && b.CreatedAt > 0 {
		switch {
		case a.CreatedAt < b.CreatedAt:
			return -1
		case a.CreatedAt > b.CreatedAt:
			return 1
		}
		return 0
	}
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	return a.Seq - b.Seq
}

// MergeAndSortEvents unions incoming into existing by id, sorts the result
// and keeps the newest MaxEvents. Neither input is modified.
func MergeAndSortEvents(existing, incoming []GameEvent) []GameEvent {
	combined := make([]GameEvent, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, e := range existing {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		combined = append(combined, e)
	}
	for _, e := range incoming {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		combined = append(combined, e)
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return compare(combined[i], combined[j]) < 0
	})

	if len(combined) > MaxEvents {
		return combined[len(combined)-MaxEvents:]
	}
	return combined
}

// Matches reports whether e passes the live-merge filter.
func Matches(f protocol.EventFilter, e GameEvent) bool {
	if f.AvatarID != "" {
		return e.Involves(f.AvatarID)
	}
	if f.AvatarID1 != "" && f.AvatarID2 != "" {
		return e.Involves(f.AvatarID1) && e.Involves(f.AvatarID2)
	}
	return true
}
