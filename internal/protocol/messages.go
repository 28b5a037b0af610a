package protocol

// tick (server -> client)
type TickMsg struct {
	Type    string        `json:"type"`
	Year    int           `json:"year"`
	Month   int           `json:"month"`
	Avatars []AvatarPatch `json:"avatars,omitempty"`
	Events  []EventDTO    `json:"events,omitempty"`

	// Phenomenon distinguishes "absent" (keep) from explicit null (clear).
	Phenomenon Presence[Phenomenon] `json:"phenomenon"`

	// A missing or null list both mean no active domains this tick.
	ActiveDomains []Domain `json:"active_domains,omitempty"`
}

// toast (server -> client)
type ToastMsg struct {
	Type     string `json:"type"`
	Level    string `json:"level"`
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
}

// llm_config_required (server -> client)
type LLMConfigRequiredMsg struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// game_reinitialized (server -> client)
type GameReinitializedMsg struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}
