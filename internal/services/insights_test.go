package services

import "testing"

func TestSelectDiscussionDomains(t *testing.T) {
	table := []DomainScore{
		{DomainKey: "green", Band: BandGreen, Risk: 0.9},
		{DomainKey: "amber_high", Band: BandAmber, Risk: 0.7},
		{DomainKey: "red_low", Band: BandRed, Risk: 0.3},
		{DomainKey: "red_high", Band: BandRed, Risk: 0.6},
		{DomainKey: "amber_low", Band: BandAmber, Risk: 0.2},
	}
	got := SelectDiscussionDomains(table, 3)
	want := []string{"red_high", "red_low", "amber_high"}
	if len(got) != len(want) {
		t.Fatalf("selected %d domains, want %d: %+v", len(got), len(want), got)
	}
	for i, k := range want {
		if got[i].DomainKey != k {
			t.Fatalf("selection[%d] = %q, want %q", i, got[i].DomainKey, k)
		}
	}
}

func TestSelectDiscussionDomainsAllGreen(t *testing.T) {
	table := []DomainScore{
		{DomainKey: "a", Band: BandGreen, Risk: 0.5},
		{DomainKey: "b", Band: BandGreen, Risk: 0.4},
	}
	if got := SelectDiscussionDomains(table, 3); len(got) != 0 {
		t.Errorf("all-green table should select nothing, got %+v", got)
	}
}

func TestSelectDiscussionDomainsTiesKeepInputOrder(t *testing.T) {
	table := []DomainScore{
		{DomainKey: "first", Band: BandRed, Risk: 0.5},
		{DomainKey: "second", Band: BandRed, Risk: 0.5},
	}
	got := SelectDiscussionDomains(table, 2)
	if got[0].DomainKey != "first" || got[1].DomainKey != "second" {
		t.Errorf("equal-risk rows must keep input order, got %+v", got)
	}
}

func TestDiscussionPrompts(t *testing.T) {
	cat := DefaultCatalog()
	for _, d := range cat.Domains {
		if len(DiscussionPrompts(d.Key, "en")) == 0 {
			t.Errorf("domain %q has no English prompts", d.Key)
		}
		if len(DiscussionPrompts(d.Key, "el")) == 0 {
			t.Errorf("domain %q has no Greek prompts", d.Key)
		}
	}
	if p := DiscussionPrompts("succession", "fr"); len(p) == 0 || p[0] != discussionPrompts["succession"]["en"][0] {
		t.Error("unknown language should fall back to English")
	}
	if p := DiscussionPrompts("unknown_domain", "en"); p != nil {
		t.Errorf("unknown domain prompts = %v, want nil", p)
	}
}

func TestBuildParticipantReport(t *testing.T) {
	cat := DefaultCatalog()
	answers := answersForAll(cat, 4)
	// Push one domain low so the discussion selection has a clear pick.
	for _, q := range cat.QuestionsByDomain("succession") {
		answers[q.ID] = 1
	}
	sub := submissionWithAnswers(t, "s1", answers, cat)
	sub.Lang = "el"

	report, err := BuildParticipantReport(sub, cat, "")
	if err != nil {
		t.Fatal(err)
	}
	if report.Lang != "el" {
		t.Errorf("lang = %q, want the submission's own language", report.Lang)
	}
	if len(report.Domains) != len(cat.Domains) {
		t.Fatalf("domains = %d, want %d", len(report.Domains), len(cat.Domains))
	}
	if report.Domains[0].DomainKey != "succession" {
		t.Errorf("riskiest domain first, got %q", report.Domains[0].DomainKey)
	}
	if !report.Overall.Defined {
		t.Error("overall should be defined for a complete answer set")
	}
	if len(report.Discussion) == 0 || report.Discussion[0].DomainKey != "succession" {
		t.Fatalf("discussion = %+v, want succession first", report.Discussion)
	}
	if report.Discussion[0].DomainName != cat.DomainByKey("succession").NameI18n["el"] {
		t.Errorf("domain name should be localized, got %q", report.Discussion[0].DomainName)
	}
	if len(report.Discussion[0].Prompts) == 0 {
		t.Error("selected topics must carry prompts")
	}
}

func TestBuildParticipantReportBadAnswers(t *testing.T) {
	cat := DefaultCatalog()
	sub := &Submission{ID: "s1", AnswersJSON: "{broken"}
	if _, err := BuildParticipantReport(sub, cat, "en"); err == nil {
		t.Fatal("garbled answers should error")
	}
}
