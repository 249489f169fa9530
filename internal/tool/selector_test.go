package tool

import "testing"

func TestSelectFetchForURL(t *testing.T) {
	selector := NewRuleSelector()

	selection, ok := selector.Select("Analyze https://example.com/a please", nil)
	if !ok {
		t.Fatal("expected a tool selection")
	}
	if selection.Tool != NameFetch {
		t.Fatalf("selected %s, want %s", selection.Tool, NameFetch)
	}
	if selection.Params["url"] != "https://example.com/a" {
		t.Fatalf("extracted url = %q", selection.Params["url"])
	}
}

func TestSelectFetchBeatsSearchOnMixedSignals(t *testing.T) {
	selector := NewRuleSelector()

	selection, ok := selector.Select("What is the latest news on https://example.com/a today?", nil)
	if !ok {
		t.Fatal("expected a tool selection")
	}
	if selection.Tool != NameFetch {
		t.Fatalf("selected %s, want %s (fetch beats search)", selection.Tool, NameFetch)
	}
}

func TestSelectFileForUploadReference(t *testing.T) {
	selector := NewRuleSelector()

	selection, ok := selector.Select("Summarize file:3fa85f64-5717-4562-b3fc-2c963f66afa6", nil)
	if !ok {
		t.Fatal("expected a tool selection")
	}
	if selection.Tool != NameFile {
		t.Fatalf("selected %s, want %s", selection.Tool, NameFile)
	}
	if selection.Params["file_id"] != "3fa85f64-5717-4562-b3fc-2c963f66afa6" {
		t.Fatalf("extracted file id = %q", selection.Params["file_id"])
	}
}

func TestSelectSearchForRecencyKeywords(t *testing.T) {
	selector := NewRuleSelector()

	cases := []string{
		"What's the latest AI news?",
		"今天天气怎么样",
		"What is happening right now in the markets?",
	}
	for _, message := range cases {
		selection, ok := selector.Select(message, nil)
		if !ok {
			t.Fatalf("expected search selection for %q", message)
		}
		if selection.Tool != NameSearch {
			t.Fatalf("selected %s for %q, want %s", selection.Tool, message, NameSearch)
		}
		if selection.Params["query"] == "" {
			t.Fatalf("empty query for %q", message)
		}
	}
}

func TestSelectNothingForPlainQuestion(t *testing.T) {
	selector := NewRuleSelector()

	if selection, ok := selector.Select("Explain the difference between arrays and slices in Go", nil); ok {
		t.Fatalf("unexpected selection %+v", selection)
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	selector := NewRuleSelector()

	const message = "latest updates about https://example.org/page"
	first, _ := selector.Select(message, nil)
	for i := 0; i < 10; i++ {
		next, _ := selector.Select(message, nil)
		if next.Tool != first.Tool || next.Params["url"] != first.Params["url"] {
			t.Fatalf("selection changed between runs: %+v vs %+v", first, next)
		}
	}
}
