package tobject

import (
	"errors"
	"testing"
)

const varArrayMarkup = `{{VAR1}} {{VAR2}}|<!-- BEGIN singleblock -->[{{BLOCKVAR1}} {{BLOCKVAR2}}]<!-- END singleblock -->|` +
	`<!-- BEGIN multiblock -->({{VAR1}} {{VAR2}})<!-- END multiblock -->|` +
	`<!-- BEGIN emptyblock -->empty!<!-- BEGIN inner -->x<!-- EMPTY inner -->fallback<!-- END inner --><!-- END emptyblock -->`

func TestSetVarArray(t *testing.T) {
	tmpl := newTestTemplate(t, varArrayMarkup)
	err := tmpl.SetVarArray(map[string]any{
		"VAR1":        "value",
		"VAR2":        "another value",
		"singleblock": map[string]any{"BLOCKVAR1": "value1", "BLOCKVAR2": "value2"},
		"multiblock": []any{
			map[string]any{"VAR1": "val1", "VAR2": "val2"},
			map[string]any{"VAR1": "val3", "VAR2": "val4"},
		},
		"emptyblock": nil,
	})
	if err != nil {
		t.Fatalf("SetVarArray failed: %v", err)
	}
	want := "value another value|[value1 value2]|(val1 val2)(val3 val4)|empty!fallback"
	if got := tmpl.Output(); got != want {
		t.Errorf("Output() = %q, want %q", got, want)
	}
}

func TestSetVarArray_DecodedShapes(t *testing.T) {
	tmpl := newTestTemplate(t, `<!-- BEGIN row -->{{N}}:{{OK}}:{{F}};<!-- END row -->`)
	// the shapes a YAML decoder produces
	err := tmpl.SetVarArray(map[string]any{
		"row": []any{
			map[any]any{"N": 1, "OK": true, "F": 1.5},
			map[any]any{"N": 2, "OK": false, "F": 0.25},
			nil,
		},
	})
	if err != nil {
		t.Fatalf("SetVarArray failed: %v", err)
	}
	if got, want := tmpl.Output(), "1:true:1.5;2:false:0.25;::;"; got != want {
		t.Errorf("Output() = %q, want %q", got, want)
	}

	typed := newTestTemplate(t, `<!-- BEGIN row -->{{N}}<!-- END row -->`)
	if err = typed.SetVarArray(map[string]any{"row": []map[string]any{{"N": "a"}, {"N": "b"}}}); err != nil {
		t.Fatalf("SetVarArray failed: %v", err)
	}
	if got := typed.Output(); got != "ab" {
		t.Errorf("Output() = %q, want %q", got, "ab")
	}
}

func TestSetVarArray_ContinuesPastFailures(t *testing.T) {
	tmpl := newTestTemplate(t, `{{A}}<!-- BEGIN row -->{{N}}<!-- END row -->`)
	err := tmpl.SetVarArray(map[string]any{
		"A":       "a",
		"missing": "x",
		"nope":    map[string]any{"N": "1"},
		"row": []any{
			map[string]any{"N": "1", "UNKNOWN": "?"},
			"not a row",
			map[string]any{"N": "2"},
		},
		"list": []string{"unsupported"},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, target := range []error{ErrUnknownVariable, ErrUnknownBlock, ErrUnsupportedValue} {
		if !errors.Is(err, target) {
			t.Errorf("expected joined error to contain %v, got %v", target, err)
		}
	}
	if got := tmpl.Output(); got != "a12" {
		t.Errorf("Output() = %q, want %q", got, "a12")
	}
}
