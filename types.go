package voyago

import "time"

// Provenance records which path produced the data in a committed turn.
type Provenance string

const (
	ProvenanceCache  Provenance = "cache"
	ProvenanceSearch Provenance = "search"
)

// Tool names understood by the protocol codec and the fan-out executor.
const (
	ToolWeather = "get_weather"
	ToolImages  = "get_images"
	ToolSearch  = "web_search"
)

// Chat roles used on the planner transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Query is a single user utterance after classification.
type Query struct {
	Raw         string `json:"raw"`
	Destination string `json:"destination,omitempty"`
	TurnIndex   int    `json:"turn_index"`
}

// CatalogEntry is one curated destination held by the similarity gate.
// Index is the entry's position in the catalog file and breaks distance
// ties deterministically (lowest index wins).
type CatalogEntry struct {
	Name    string `yaml:"name" json:"name"`
	Summary string `yaml:"summary" json:"summary"`
	Index   int    `yaml:"-" json:"index"`
}

// SimilarityResult is the gate's verdict for one query. Entry always
// references the nearest catalog entry; Hit reports whether it is close
// enough to serve the turn from the catalog.
type SimilarityResult struct {
	Entry    *CatalogEntry `json:"entry,omitempty"`
	Distance float64       `json:"distance"`
	Hit      bool          `json:"hit"`
}

// RawToolCall is a tool request exactly as it appears on the wire,
// arguments still undecoded.
type RawToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a decoded, validated tool request ready for dispatch.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ToolResult is the outcome of one tool call. Exactly one result is
// produced per call ID, whether the call succeeded, failed, or never
// dispatched.
type ToolResult struct {
	CallID  string                 `json:"call_id"`
	Name    string                 `json:"name"`
	OK      bool                   `json:"ok"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Err     string                 `json:"error,omitempty"`
}

// ChatMessage is one entry on a planner transcript.
type ChatMessage struct {
	Role       string        `json:"role"`
	Content    string        `json:"content,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	ToolCalls  []RawToolCall `json:"tool_calls,omitempty"`
}

// ToolSchema describes a tool to the planner. Parameters is a JSON
// schema object.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// PlannerInput is the request handed to the planner on a gate miss.
type PlannerInput struct {
	Query   Query        `json:"query"`
	Schemas []ToolSchema `json:"schemas"`
}

// PlanResult is the planner's reply. Message carries the assistant turn
// with any raw tool calls still encoded; Transcript is the full message
// history that produced it. Answer is set when the planner replied with
// plain text instead of tool calls.
type PlanResult struct {
	Answer     string        `json:"answer,omitempty"`
	Message    ChatMessage   `json:"message"`
	Transcript []ChatMessage `json:"transcript"`
}

// WeatherPoint is one day of forecast data.
type WeatherPoint struct {
	Date         string  `json:"date"`
	TemperatureC float64 `json:"temperature_c"`
	Condition    string  `json:"condition"`
	Humidity     int     `json:"humidity"`
}

// StructuredOutput is the formatted result of a committed turn. Errors
// maps tool names to failure messages for calls that did not complete.
type StructuredOutput struct {
	Destination string            `json:"destination,omitempty"`
	Summary     string            `json:"summary"`
	Weather     []WeatherPoint    `json:"weather,omitempty"`
	Images      []string          `json:"images,omitempty"`
	SearchNotes string            `json:"search_notes,omitempty"`
	Provenance  Provenance        `json:"provenance"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// TurnRecord is one committed turn as stored on a session.
type TurnRecord struct {
	Index       int               `json:"index"`
	Query       string            `json:"query"`
	Destination string            `json:"destination,omitempty"`
	Provenance  Provenance        `json:"provenance"`
	Output      *StructuredOutput `json:"output"`
	CommittedAt time.Time         `json:"committed_at"`
}

// TurnUpdate is the delta applied to a session when a turn commits.
type TurnUpdate struct {
	Record             TurnRecord `json:"record"`
	CurrentDestination string     `json:"current_destination,omitempty"`
}

// SessionState is the materialized view of one conversation.
type SessionState struct {
	ID                 string       `json:"id"`
	CurrentDestination string       `json:"current_destination,omitempty"`
	Turns              []TurnRecord `json:"turns"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Clone returns a deep copy safe for the caller to mutate.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Turns = make([]TurnRecord, len(s.Turns))
	copy(cp.Turns, s.Turns)
	for i := range cp.Turns {
		if out := cp.Turns[i].Output; out != nil {
			o := *out
			o.Weather = append([]WeatherPoint(nil), out.Weather...)
			o.Images = append([]string(nil), out.Images...)
			if out.Errors != nil {
				o.Errors = make(map[string]string, len(out.Errors))
				for k, v := range out.Errors {
					o.Errors[k] = v
				}
			}
			cp.Turns[i].Output = &o
		}
	}
	return &cp
}
