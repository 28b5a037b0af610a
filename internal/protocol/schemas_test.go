package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cultivationworld.ai/internal/protocol"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func validateJSON(t *testing.T, s *jsonschema.Schema, raw string) {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSchemas_ValidateSamples(t *testing.T) {
	validateJSON(t, compileSchema(t, "tick.schema.json"), `{
	  "type":"tick",
	  "year":100,
	  "month":3,
	  "avatars":[{"id":"a1","x":4,"y":5},{"id":"a2","name":"Li","x":1,"y":1,"pic_id":3}],
	  "events":[{"id":"e1","text":"Li broke through","related_avatar_ids":["a2"],"created_at":1700000000.5}],
	  "phenomenon":null,
	  "active_domains":[{"id":"d1","name":"Sunken Palace"}]
	}`)
	validateJSON(t, compileSchema(t, "toast.schema.json"), `{"type":"toast","level":"success","message":"saved","language":"en-US"}`)
	validateJSON(t, compileSchema(t, "llm_config_required.schema.json"), `{"type":"llm_config_required","error":"bad key"}`)
	validateJSON(t, compileSchema(t, "game_reinitialized.schema.json"), `{"type":"game_reinitialized"}`)
	validateJSON(t, compileSchema(t, "events_page.schema.json"), `{
	  "events":[{"id":"e2","text":"b","year":100,"month":2,"month_stamp":1202},{"id":"e1","text":"a","year":100,"month":1,"month_stamp":1201}],
	  "next_cursor":null,
	  "has_more":false
	}`)
}

func TestSchemas_EncodedToastValidates(t *testing.T) {
	b, err := json.Marshal(protocol.ToastMsg{Type: protocol.TypeToast, Level: protocol.LevelWarning, Message: "low qi"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	validateJSON(t, compileSchema(t, "toast.schema.json"), string(b))
}
