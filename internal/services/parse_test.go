package services

import (
	"encoding/json"
	"errors"
	"testing"

	"budgetsense/internal/core"
	"budgetsense/internal/model"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestParseRequestKeys(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{
			name: "corpus keys",
			body: `{"Ministry":"Finance","Priority_Level":"Medium","Projects_Count":12,"Region_Impact":"Rural",
				"Dev_Index":0.55,"Prev_Budget (Cr)":45000,"GDP_Impact (%)":1.25,"Expected_Budget":60000}`,
		},
		{
			name: "snake case and numeric strings",
			body: `{"ministry":"Finance","priority_level":"Medium","projects_count":"12","region_impact":"Rural",
				"dev_index":"0.55","prev_budget":"45000","gdp_impact":1.25,"expected_budget":"60000"}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := ParseRequest(decode(t, tc.body))
			if err != nil {
				t.Fatal(err)
			}
			if req.Ministry != "Finance" || req.PriorityLevel != "Medium" || req.RegionImpact != "Rural" ||
				req.ProjectsCount != 12 || req.DevIndex != 0.55 || req.PrevBudget != 45000 || req.GDPImpact != 1.25 {
				t.Fatalf("unexpected request %+v", req)
			}
			if req.Expected == nil || *req.Expected != 60000 {
				t.Fatalf("Expected = %v", req.Expected)
			}
		})
	}
}

func TestParseRequestMalformed(t *testing.T) {
	base := `"Ministry":"Finance","Priority_Level":"Medium","Region_Impact":"Rural","Dev_Index":0.5,"Prev_Budget (Cr)":100,"GDP_Impact (%)":1`
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing projects", `{` + base + `}`, core.ColProjectsCount},
		{"fractional projects", `{` + base + `,"Projects_Count":1.5}`, core.ColProjectsCount},
		{"text projects", `{` + base + `,"Projects_Count":"lots"}`, core.ColProjectsCount},
		{"bad expected", `{` + base + `,"Projects_Count":3,"Expected_Budget":true}`, "Expected_Budget"},
		{"missing ministry", `{"Priority_Level":"Low","Region_Impact":"Rural"}`, core.ColMinistry},
		{"empty label", `{"Ministry":"  ","Priority_Level":"Low","Region_Impact":"Rural"}`, core.ColMinistry},
		{"boolean label", `{"Ministry":"Health","Priority_Level":false,"Region_Impact":"Rural"}`, core.ColPriorityLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRequest(decode(t, tc.body))
			var m *core.MalformedRequestError
			if !errors.As(err, &m) {
				t.Fatalf("expected MalformedRequestError, got %v", err)
			}
			if m.Field != tc.field {
				t.Fatalf("field = %q, want %q", m.Field, tc.field)
			}
		})
	}

	if _, err := ParseRequest(nil); !core.IsMalformed(err) {
		t.Fatalf("nil object should be malformed, got %v", err)
	}
}

func TestRequestFeaturesFromCodes(t *testing.T) {
	enc := model.NewEncoders(core.DefaultTables())
	req, err := ParseRequest(decode(t, `{"Ministry":"Health","Priority_Level":3,"Region_Impact":42,
		"Projects_Count":10,"Dev_Index":0.5,"Prev_Budget (Cr)":100,"GDP_Impact (%)":1}`))
	if err != nil {
		t.Fatal(err)
	}

	f := req.Features(enc.Encode, enc)
	if f.PriorityLevel.Code != 3 || f.PriorityLevel.Label != "Very High" {
		t.Fatalf("priority = %+v", f.PriorityLevel)
	}
	if f.RegionImpact.Code != 42 || f.RegionImpact.Label != "42" {
		t.Fatalf("region = %+v", f.RegionImpact)
	}
	if f.Ministry.Code != enc.Encode(core.ColMinistry, "Health") {
		t.Fatalf("ministry = %+v", f.Ministry)
	}
}
