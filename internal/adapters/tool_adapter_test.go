package adapters

import (
	"context"
	"errors"
	"testing"
)

func echoFunc(fail bool) func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
		if fail {
			return nil, errors.New("fail")
		}
		return map[string]interface{}{"ok": true}, nil
	}
}

func TestGoToolAdapter_Execute_SuccessAndFailure(t *testing.T) {
	adapter := NewGoToolAdapter("dummy", echoFunc(false))
	res, err := adapter.Execute(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if res["ok"] != true {
		t.Errorf("expected ok=true, got %v", res["ok"])
	}

	adapterFail := NewGoToolAdapter("dummy", echoFunc(true))
	_, err = adapterFail.Execute(context.Background(), map[string]interface{}{})
	if err == nil {
		t.Error("expected error for failing tool, got nil")
	}
}

func TestGoToolAdapter_Validate(t *testing.T) {
	adapter := NewGoToolAdapter("dummy", echoFunc(false),
		WithValidator(func(input map[string]interface{}) error {
			if input["bad"] == true {
				return errors.New("bad input")
			}
			return nil
		}),
	)
	if err := adapter.Validate(map[string]interface{}{"bad": true}); err == nil {
		t.Error("expected error for bad input, got nil")
	}
	if err := adapter.Validate(map[string]interface{}{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGoToolAdapter_ExecuteRunsValidator(t *testing.T) {
	adapter := NewGoToolAdapter("dummy", echoFunc(false),
		WithValidator(func(input map[string]interface{}) error {
			return errors.New("always invalid")
		}),
	)
	if _, err := adapter.Execute(context.Background(), map[string]interface{}{}); err == nil {
		t.Error("expected validation error from Execute, got nil")
	}
}

func TestGoToolAdapter_Schema(t *testing.T) {
	adapter := NewGoToolAdapter("get_weather", echoFunc(false),
		WithDescription("Fetch a 7-day forecast."),
		WithParameters(StringParameters(map[string]string{"city": "City name."})),
	)

	schema := adapter.Schema()
	if schema.Name != "get_weather" {
		t.Errorf("expected schema name get_weather, got %s", schema.Name)
	}
	if schema.Description == "" {
		t.Error("expected schema description to be set")
	}

	props, ok := schema.Parameters["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected properties in parameters, got %v", schema.Parameters)
	}
	if _, ok := props["city"]; !ok {
		t.Error("expected city parameter in schema")
	}
}
