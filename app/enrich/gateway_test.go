package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/patch-comb/app/changes"
)

type fakeService struct {
	mu        sync.Mutex
	calls     []string
	times     []time.Time
	summarize func(chunk string) (string, error)
	classify  func(chunk string) ([]Label, error)
}

func (f *fakeService) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.times = append(f.times, time.Now())
}

func (f *fakeService) Summarize(ctx context.Context, chunk string) (string, error) {
	f.record("summarize")
	if f.summarize != nil {
		return f.summarize(chunk)
	}
	return "Summary of " + chunk[:20], nil
}

func (f *fakeService) Classify(ctx context.Context, chunk string, labels []string) ([]Label, error) {
	f.record("classify")
	if f.classify != nil {
		return f.classify(chunk)
	}
	return []Label{{Name: "hunters", Score: 0.8}, {Name: "maps", Score: 0.2}}, nil
}

func testGatewayOptions() GatewayOptions {
	opts := DefaultGatewayOptions()
	opts.Policy = testPolicy()
	opts.Pacing = 0
	return opts
}

// twoChunkText builds text that splits into exactly two chunks.
func twoChunkText() string {
	var sentences []string
	for i := range 15 {
		sentences = append(sentences, fmt.Sprintf("Hunter change number %d reduced cooldown on abilities", i))
	}
	return strings.Join(sentences, ". ") + "."
}

func TestGateway_Disabled(t *testing.T) {
	primary := changes.NewCategorizedChanges()
	primary[changes.CategoryHunters] = []changes.ChangeEntry{{Description: "Ghost cooldown reduced", Type: changes.TypeNerf, Confidence: 0.8}}

	g := NewGateway(nil, testGatewayOptions())
	if g.Enabled() {
		t.Fatal("Expected gateway without service to be disabled")
	}

	got := g.Enhance(context.Background(), twoChunkText(), primary)
	if !reflect.DeepEqual(got, primary) {
		t.Errorf("Expected primary unchanged, got %+v", got)
	}

	var nilGateway *Gateway
	if nilGateway.Enabled() {
		t.Error("Expected nil gateway to be disabled")
	}
}

func TestGateway_EnrichSequential(t *testing.T) {
	if n := len(Chunks(twoChunkText())); n != 2 {
		t.Fatalf("Expected 2 chunks, got %d", n)
	}

	service := &fakeService{}
	result, err := NewGateway(service, testGatewayOptions()).Enrich(context.Background(), twoChunkText())
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	want := []string{"summarize", "classify", "summarize", "classify"}
	if !reflect.DeepEqual(service.calls, want) {
		t.Errorf("Expected calls %v, got %v", want, service.calls)
	}

	entries := result[changes.CategoryHunters]
	if len(entries) != 2 {
		t.Fatalf("Expected 2 hunters entries, got %+v", result)
	}
	for _, e := range entries {
		if e.Source != changes.SourceEnrichment {
			t.Errorf("Expected enrichment source, got %q", e.Source)
		}
		if e.Type != changes.TypeNerf {
			t.Errorf("Expected nerf from the reduced stem, got %s", e.Type)
		}
		if e.Confidence != 0 {
			t.Errorf("Expected no confidence on enrichment entries, got %v", e.Confidence)
		}
	}
}

func TestGateway_SkipsFailedChunk(t *testing.T) {
	service := &fakeService{
		summarize: func(chunk string) (string, error) {
			if strings.HasPrefix(chunk, "Hunter change number 0 ") {
				return "", &APIError{StatusCode: 400, Message: "bad input"}
			}
			return "Cooldowns were reduced across the board", nil
		},
	}

	result, err := NewGateway(service, testGatewayOptions()).Enrich(context.Background(), twoChunkText())
	if err != nil {
		t.Fatalf("Expected the pass to survive one failed chunk, got %v", err)
	}
	if n := result.Count(); n != 1 {
		t.Errorf("Expected 1 entry, got %d: %+v", n, result)
	}
	// terminal failure is not retried, the failed chunk never reaches classify
	want := []string{"summarize", "summarize", "classify"}
	if !reflect.DeepEqual(service.calls, want) {
		t.Errorf("Expected calls %v, got %v", want, service.calls)
	}
}

func TestGateway_RetriesWarmup(t *testing.T) {
	attempts := 0
	service := &fakeService{
		classify: func(chunk string) ([]Label, error) {
			attempts++
			if attempts <= 2 {
				return nil, &APIError{StatusCode: 503, Message: "Model is currently loading", Retryable: true, Loading: true}
			}
			return []Label{{Name: "maps"}}, nil
		},
	}

	result, err := NewGateway(service, testGatewayOptions()).Enrich(context.Background(), "Terrain on the northern ridge no longer blocks projectiles")
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 classify attempts, got %d", attempts)
	}
	if len(result[changes.CategoryMaps]) != 1 {
		t.Errorf("Expected a maps entry, got %+v", result)
	}
}

func TestGateway_AllChunksFail(t *testing.T) {
	service := &fakeService{
		summarize: func(string) (string, error) {
			return "", &APIError{StatusCode: 502, Message: "bad gateway", Retryable: true}
		},
	}
	primary := changes.NewCategorizedChanges()
	primary[changes.CategoryHunters] = []changes.ChangeEntry{{Description: "Ghost cooldown reduced", Type: changes.TypeNerf, Confidence: 0.8}}

	g := NewGateway(service, testGatewayOptions())
	if _, err := g.Enrich(context.Background(), twoChunkText()); err == nil {
		t.Error("Expected an error when every chunk fails")
	}
	if got := g.Enhance(context.Background(), twoChunkText(), primary); !reflect.DeepEqual(got, primary) {
		t.Errorf("Expected primary unchanged, got %+v", got)
	}
}

func TestGateway_ShortChunkIsNotSummarized(t *testing.T) {
	service := &fakeService{
		classify: func(string) ([]Label, error) {
			return []Label{{Name: "weather"}}, nil
		},
	}

	result, err := NewGateway(service, testGatewayOptions()).Enrich(context.Background(), "added a brand new arena")
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if !reflect.DeepEqual(service.calls, []string{"classify"}) {
		t.Errorf("Expected only a classify call, got %v", service.calls)
	}
	entries := result[changes.CategorySystems]
	if len(entries) != 1 {
		t.Fatalf("Expected the unknown label to land in systems, got %+v", result)
	}
	if entries[0].Description != "Added a brand new arena." || entries[0].Type != changes.TypeNew {
		t.Errorf("Unexpected entry %+v", entries[0])
	}
}

func TestGateway_Pacing(t *testing.T) {
	service := &fakeService{}
	opts := testGatewayOptions()
	opts.Pacing = 30 * time.Millisecond

	if _, err := NewGateway(service, opts).Enrich(context.Background(), "Terrain on the northern ridge no longer blocks projectiles"); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if len(service.times) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(service.times))
	}
	if gap := service.times[1].Sub(service.times[0]); gap < opts.Pacing {
		t.Errorf("Expected at least %v between requests, got %v", opts.Pacing, gap)
	}
}

func TestGateway_EnhanceMerges(t *testing.T) {
	service := &fakeService{
		summarize: func(chunk string) (string, error) {
			if strings.Contains(chunk, "Ghost") {
				return "Ghost cooldown reduced 0.5 seconds", nil
			}
			return "Jin blink now refunds on kill", nil
		},
	}
	primary := changes.NewCategorizedChanges()
	primary[changes.CategoryHunters] = []changes.ChangeEntry{
		{Description: "Ghost cooldown reduced by 0.5s", Type: changes.TypeNerf, Confidence: 1.0, Source: changes.SourceHeuristic},
	}

	text := strings.Repeat("Ghost cooldown reduced by half a second for every single hunter ability. ", 7) +
		strings.Repeat("Jin blink refunds its charge on every kill from now on for all players. ", 7)

	got := NewGateway(service, testGatewayOptions()).Enhance(context.Background(), text, primary)

	entries := got[changes.CategoryHunters]
	if len(entries) != 2 {
		t.Fatalf("Expected the near-duplicate dropped and one entry added, got %+v", entries)
	}
	if entries[0] != primary[changes.CategoryHunters][0] {
		t.Errorf("Expected the primary entry first, got %+v", entries[0])
	}
	if entries[1].Description != "Jin blink now refunds on kill" || entries[1].Source != changes.SourceEnrichment {
		t.Errorf("Unexpected enrichment entry %+v", entries[1])
	}
	if len(primary[changes.CategoryHunters]) != 1 {
		t.Error("Expected primary not to be modified")
	}
}

func TestGateway_HTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/" + SummarizeModel:
			w.Write([]byte(`[{"summary_text": "Daily quest rewards were increased"}]`))
		case "/models/" + ClassifyModel:
			w.Write([]byte(`{"labels": ["systems", "hunters"], "scores": [0.7, 0.3]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	g := NewGateway(NewClient(server.URL, "hf-token", time.Second), testGatewayOptions())
	result, err := g.Enrich(context.Background(), "Daily quest Prisma rewards increased from 100 to 400 per completed quest.")
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	entries := result[changes.CategorySystems]
	if len(entries) != 1 || entries[0].Description != "Daily quest rewards were increased" || entries[0].Type != changes.TypeBuff {
		t.Errorf("Unexpected result %+v", result)
	}
}

func TestGateway_EnhanceRespectsLimit(t *testing.T) {
	primary := changes.NewCategorizedChanges()
	for i := range changes.DefaultMaxPerCategory {
		primary[changes.CategoryHunters] = append(primary[changes.CategoryHunters], changes.ChangeEntry{
			Description: fmt.Sprintf("Ghost ability %d cooldown %s", i, strings.Repeat(string(rune('a'+i)), 20)),
			Type:        changes.TypeNerf,
			Confidence:  0.8,
			Source:      changes.SourceHeuristic,
		})
	}

	got := NewGateway(&fakeService{}, testGatewayOptions()).Enhance(context.Background(), twoChunkText(), primary)
	if n := len(got[changes.CategoryHunters]); n != changes.DefaultMaxPerCategory {
		t.Errorf("Expected hunters to stay at %d entries, got %d", changes.DefaultMaxPerCategory, n)
	}
	if !reflect.DeepEqual(got[changes.CategoryHunters], primary[changes.CategoryHunters]) {
		t.Errorf("Expected the heuristic entries to be kept, got %+v", got[changes.CategoryHunters])
	}

	opts := testGatewayOptions()
	opts.MaxPerCategory = changes.DefaultMaxPerCategory + 1
	got = NewGateway(&fakeService{}, opts).Enhance(context.Background(), twoChunkText(), primary)
	entries := got[changes.CategoryHunters]
	if len(entries) != changes.DefaultMaxPerCategory+1 {
		t.Fatalf("Expected one enrichment entry under the raised limit, got %d", len(entries))
	}
	if entries[len(entries)-1].Source != changes.SourceEnrichment {
		t.Errorf("Expected the enrichment entry last, got %+v", entries[len(entries)-1])
	}
}
