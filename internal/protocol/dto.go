package protocol

import (
	"encoding/json"
	"strconv"
)

type EventDTO struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Content          string   `json:"content,omitempty"`
	Year             *int     `json:"year,omitempty"`
	Month            *int     `json:"month,omitempty"`
	MonthStamp       int      `json:"month_stamp,omitempty"`
	RelatedAvatarIDs []string `json:"related_avatar_ids,omitempty"`
	IsMajor          bool     `json:"is_major,omitempty"`
	IsStory          bool     `json:"is_story,omitempty"`
	CreatedAt        float64  `json:"created_at,omitempty"`
}

// AvatarSummary is the full avatar shape carried by a state snapshot.
type AvatarSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Action string `json:"action,omitempty"`
	Gender string `json:"gender,omitempty"`
	PicID  *int   `json:"pic_id,omitempty"`
	IsDead bool   `json:"is_dead,omitempty"`
}

// AvatarPatch is a partial avatar update carried by a tick. Nil fields keep
// the previous value.
type AvatarPatch struct {
	ID     string  `json:"id"`
	Name   *string `json:"name,omitempty"`
	X      *int    `json:"x,omitempty"`
	Y      *int    `json:"y,omitempty"`
	Action *string `json:"action,omitempty"`
	Gender *string `json:"gender,omitempty"`
	PicID  *int    `json:"pic_id,omitempty"`
	IsDead *bool   `json:"is_dead,omitempty"`
}

type Phenomenon struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Desc          string `json:"desc"`
	Rarity        string `json:"rarity"`
	DurationYears int    `json:"duration_years,omitempty"`
	EffectDesc    string `json:"effect_desc,omitempty"`
}

// Domain is a hidden domain that may be open during a tick.
type Domain struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Desc          string  `json:"desc"`
	RequiredRealm string  `json:"required_realm"`
	DangerProb    float64 `json:"danger_prob"`
	DropProb      float64 `json:"drop_prob"`
	IsOpen        bool    `json:"is_open"`
	CDYears       int     `json:"cd_years"`
	OpenProb      float64 `json:"open_prob"`
}

// InitialState is the GET /api/state snapshot.
type InitialState struct {
	Status     string          `json:"status,omitempty"`
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Avatars    []AvatarSummary `json:"avatars,omitempty"`
	Events     []EventDTO      `json:"events,omitempty"`
	Phenomenon *Phenomenon     `json:"phenomenon,omitempty"`
}

// FlexID accepts either a JSON string or number.
type FlexID string

func (id *FlexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = FlexID(n.String())
	return nil
}

func (id FlexID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type Region struct {
	ID       FlexID `json:"id"`
	Name     string `json:"name"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Type     string `json:"type"`
	SectName string `json:"sect_name,omitempty"`
	SectID   *int   `json:"sect_id,omitempty"`
	SubType  string `json:"sub_type,omitempty"`
}

type FrontendConfig struct {
	WaterSpeed string `json:"water_speed,omitempty"`
	CloudFreq  string `json:"cloud_freq,omitempty"`
}

// MapMatrix is a row-major grid of tile type names.
type MapMatrix [][]string

// MapResponse is the GET /api/map payload.
type MapResponse struct {
	Data    MapMatrix       `json:"data"`
	Regions []Region        `json:"regions"`
	Config  *FrontendConfig `json:"config,omitempty"`
}

type PhenomenaList struct {
	Phenomena []Phenomenon `json:"phenomena"`
}

// EventFilter scopes both the paginated event listing and which live tick
// events are retained.
type EventFilter struct {
	AvatarID  string `json:"avatar_id,omitempty"`
	AvatarID1 string `json:"avatar_id_1,omitempty"`
	AvatarID2 string `json:"avatar_id_2,omitempty"`
}

// EventsPage is one page of the events listing, newest first.
type EventsPage struct {
	Events     []EventDTO `json:"events"`
	NextCursor *string    `json:"next_cursor"`
	HasMore    bool       `json:"has_more"`
}

type InitStatus struct {
	Status          string  `json:"status"`
	Phase           int     `json:"phase"`
	PhaseName       string  `json:"phase_name"`
	Progress        float64 `json:"progress"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	Error           *string `json:"error"`
	Version         string  `json:"version,omitempty"`
	LLMCheckFailed  bool    `json:"llm_check_failed"`
	LLMErrorMessage string  `json:"llm_error_message"`
}

// Init status values.
const (
	StatusIdle       = "idle"
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusReady      = "ready"
	StatusError      = "error"
)

type RankingAvatar struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Sect   string  `json:"sect"`
	SectID string  `json:"sect_id,omitempty"`
	Realm  string  `json:"realm"`
	Stage  string  `json:"stage"`
	Power  float64 `json:"power"`
}

type RankingSect struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Alignment   string  `json:"alignment"`
	MemberCount int     `json:"member_count"`
	TotalPower  float64 `json:"total_power"`
}

type RankRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TournamentSummary struct {
	NextYear    int      `json:"next_year"`
	HeavenFirst *RankRef `json:"heaven_first,omitempty"`
	EarthFirst  *RankRef `json:"earth_first,omitempty"`
	HumanFirst  *RankRef `json:"human_first,omitempty"`
}

type Rankings struct {
	Heaven     []RankingAvatar    `json:"heaven"`
	Earth      []RankingAvatar    `json:"earth"`
	Human      []RankingAvatar    `json:"human"`
	Sect       []RankingSect      `json:"sect"`
	Tournament *TournamentSummary `json:"tournament,omitempty"`
}

// Detail is the loosely shaped payload of a detail lookup.
type Detail map[string]any
