package memory

import (
	"context"
	"testing"

	"github.com/coachpo/folio/internal/domain/strategystore"
)

func TestSettingsRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	setting := strategystore.Setting{
		Class:       "pair_spread",
		Instruments: []string{"a", "b"},
		Parameters:  map[string]any{"window": 20},
	}
	if err := s.SaveSetting(ctx, "pair1", setting); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := loaded["pair1"]
	if !ok || got.Class != "pair_spread" || len(got.Instruments) != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestDeleteSettingAlsoDropsVariables(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.SaveSetting(ctx, "s1", strategystore.Setting{Class: "c"})
	_ = s.SaveVariables(ctx, "s1", map[string]any{"x": 1})

	if err := s.DeleteSetting(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	vars, err := s.LoadVariables(ctx, "s1")
	if err != nil {
		t.Fatalf("load variables: %v", err)
	}
	if vars != nil {
		t.Fatalf("variables survived delete: %v", vars)
	}
}

func TestLoadVariablesReturnsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.SaveVariables(ctx, "s1", map[string]any{"x": 1})

	first, _ := s.LoadVariables(ctx, "s1")
	first["x"] = 99
	second, _ := s.LoadVariables(ctx, "s1")
	if second["x"] != 1 {
		t.Fatalf("caller mutation leaked into the store: %v", second)
	}
}

func TestLoadVariablesMissingIsNil(t *testing.T) {
	s := NewStore()
	vars, err := s.LoadVariables(context.Background(), "nope")
	if err != nil || vars != nil {
		t.Fatalf("got %v, %v", vars, err)
	}
}
