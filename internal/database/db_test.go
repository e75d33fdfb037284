package database

import (
	"strings"
	"testing"
)

func TestStatements(t *testing.T) {
	stmts := Statements()
	if len(stmts) != 8 {
		t.Fatalf("Expected 8 schema statements, got %d", len(stmts))
	}
	for i, s := range stmts {
		if !strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS") {
			t.Errorf("statement %d is not an idempotent CREATE TABLE: %.40q", i, s)
		}
		if strings.Contains(s, "--") {
			t.Errorf("statement %d still carries a comment", i)
		}
	}
}
