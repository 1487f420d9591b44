package rag

import "testing"

func TestResolveDynamicFieldsExactMatch(t *testing.T) {
	fields, ok := resolveDynamicFields("list every job-title", []string{"job_title", "company"})
	if !ok || len(fields) != 1 || fields[0] != "job_title" {
		t.Fatalf("expected exact match job_title, got %v ok=%v", fields, ok)
	}
}

func TestResolveDynamicFieldsFuzzyMatch(t *testing.T) {
	fields, ok := resolveDynamicFields("what is the compny_name", []string{"company_name", "start_date"})
	if !ok || len(fields) != 1 || fields[0] != "company_name" {
		t.Fatalf("expected fuzzy match company_name, got %v ok=%v", fields, ok)
	}
}

func TestResolveDynamicFieldsNoMatch(t *testing.T) {
	_, ok := resolveDynamicFields("tell me something totally unrelated", []string{"job_title"})
	if ok {
		t.Fatalf("expected no match")
	}
}

func TestNormalizeTopic(t *testing.T) {
	if got := normalizeTopic(`  "Experience"  `); got != "experience" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatDocumentsForPromptEmpty(t *testing.T) {
	if got := formatDocumentsForPrompt(nil); got != "No relevant documents found." {
		t.Fatalf("got %q", got)
	}
}
