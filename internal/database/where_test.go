package database

import (
	"testing"
	"time"
)

func TestNewWhereBuilder(t *testing.T) {
	wb := NewWhereBuilder()

	if wb == nil {
		t.Fatal("NewWhereBuilder returned nil")
	}
	if wb.argIndex != 1 {
		t.Errorf("expected argIndex to be 1, got %d", wb.argIndex)
	}
	if len(wb.conditions) != 0 {
		t.Errorf("expected empty conditions, got %d", len(wb.conditions))
	}
	if len(wb.args) != 0 {
		t.Errorf("expected empty args, got %d", len(wb.args))
	}
}

func TestWhereBuilder_Build_Empty(t *testing.T) {
	wb := NewWhereBuilder()
	whereClause, args := wb.Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
}

func TestWhereBuilder_Add(t *testing.T) {
	tests := []struct {
		name       string
		adds       [][2]string
		wantClause string
		wantArgs   []any
	}{
		{
			name:       "single condition",
			adds:       [][2]string{{"status", "ready"}},
			wantClause: ` WHERE "status" = $1`,
			wantArgs:   []any{"ready"},
		},
		{
			name:       "multiple conditions",
			adds:       [][2]string{{"status", "ready"}, {"robot_type_id", "rt1"}},
			wantClause: ` WHERE "status" = $1 AND "robot_type_id" = $2`,
			wantArgs:   []any{"ready", "rt1"},
		},
		{
			name:       "empty value skipped",
			adds:       [][2]string{{"status", ""}, {"skill_id", "sk1"}},
			wantClause: ` WHERE "skill_id" = $1`,
			wantArgs:   []any{"sk1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			for _, a := range tt.adds {
				wb.Add(a[0], a[1])
			}
			clause, args := wb.Build()
			if clause != tt.wantClause {
				t.Errorf("clause = %q, want %q", clause, tt.wantClause)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("got %d args, want %d", len(args), len(tt.wantArgs))
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestWhereBuilder_AddCompare(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	wb := NewWhereBuilder()
	wb.Add("status", "validating")
	wb.AddCompare("quality_score", ">=", 50)
	wb.AddCompare("updated_at", "<", cutoff)

	clause, args := wb.Build()
	want := ` WHERE "status" = $1 AND "quality_score" >= $2 AND "updated_at" < $3`
	if clause != want {
		t.Errorf("clause = %q, want %q", clause, want)
	}
	if len(args) != 3 || args[1] != 50 || args[2] != cutoff {
		t.Errorf("unexpected args %v", args)
	}
}

func TestWhereBuilder_NextArgIndex(t *testing.T) {
	wb := NewWhereBuilder()

	if wb.NextArgIndex() != 1 {
		t.Errorf("expected initial NextArgIndex to be 1, got %d", wb.NextArgIndex())
	}
	wb.Add("col1", "val1")
	if wb.NextArgIndex() != 2 {
		t.Errorf("expected NextArgIndex after 1 add to be 2, got %d", wb.NextArgIndex())
	}
	wb.Add("col2", "")
	if wb.NextArgIndex() != 2 {
		t.Errorf("skipped add should not advance NextArgIndex, got %d", wb.NextArgIndex())
	}
	wb.AddCompare("col3", ">", 1)
	if wb.NextArgIndex() != 3 {
		t.Errorf("expected NextArgIndex after compare to be 3, got %d", wb.NextArgIndex())
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"datasets", `"datasets"`},
		{"robot_type_id", `"robot_type_id"`},
		{`bad"name`, `"bad""name"`},
		{`"; DROP TABLE datasets; --`, `"""; DROP TABLE datasets; --"`},
		{"", `""`},
	}

	for _, tt := range tests {
		if got := quoteIdentifier(tt.input); got != tt.want {
			t.Errorf("quoteIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
