package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/engine"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/listing"
	"github.com/baxromumarov/job-aggregator/internal/normalize"
)

func testClient() *httpx.Client {
	c := httpx.NewClient("test-agent")
	c.SetHostRate(0, 100)
	return c
}

func testFetcher() *httpx.CollyFetcher {
	f := httpx.NewCollyFetcher("test-agent")
	f.SetHostRate(0, 100)
	return f
}

func serve(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(strings.TrimSpace(body), "{") || strings.HasPrefix(strings.TrimSpace(body), "[") {
				w.Header().Set("Content-Type", "application/json")
			} else {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
			}
			fmt.Fprint(w, body)
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func records(raws []listing.Raw) []listing.Record {
	out := make([]listing.Record, len(raws))
	for i, raw := range raws {
		out[i], _ = normalize.Record(raw)
	}
	return out
}

func TestGreenhouseParsesBoard(t *testing.T) {
	server := serve(t, map[string]string{"/acme": `
<html><body><section class="level-0">
  <div class="opening" department_id="42"><a href="/acme/jobs/1">Backend Engineer</a><span class="location">Berlin</span></div>
  <div class="opening"><a href="https://boards.greenhouse.io/acme/jobs/2">SRE</a></div>
  <div class="opening"><span>no link</span></div>
</section></body></html>`})

	g, err := NewGreenhouse("acme-gh", server.URL+"/acme", "", testClient())
	if err != nil {
		t.Fatalf("NewGreenhouse: %v", err)
	}
	raws, err := g.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(raws))
	}
	got := records(raws)
	want := listing.Record{Company: "acme", Vacancy: "Backend Engineer", ApplyLink: server.URL + "/acme/jobs/1"}
	if got[0] != want {
		t.Errorf("got %+v, want %+v", got[0], want)
	}
	if raws[0][keyLocation] != "Berlin" || raws[0][keyDepartment] != "42" {
		t.Errorf("extra fields lost: %v", raws[0])
	}
	if got[1].ApplyLink != "https://boards.greenhouse.io/acme/jobs/2" {
		t.Errorf("absolute link rewritten: %q", got[1].ApplyLink)
	}
}

func TestGreenhouseEmbedURL(t *testing.T) {
	got := greenhouseEmbedURL("https://boards.greenhouse.io/acme", "acme")
	if got != "https://boards.greenhouse.io/embed/job_board?for=acme" {
		t.Errorf("embed url = %q", got)
	}
	if _, err := NewGreenhouse("root", "https://boards.greenhouse.io/", "", testClient()); err == nil {
		t.Error("platform root should be rejected")
	}
}

func TestLeverEmitsAliasedFields(t *testing.T) {
	server := serve(t, map[string]string{"/acme": `[
		{"id":"1","text":"Go Developer","hostedUrl":"https://jobs.lever.co/acme/1","createdAt":1714550400000,
		 "categories":{"team":"Platform","location":"Remote"}}
	]`})

	l, err := NewLever("acme-lever", server.URL+"/acme", "Acme Inc", testClient())
	if err != nil {
		t.Fatalf("NewLever: %v", err)
	}
	raws, err := l.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(raws))
	}
	if _, ok := raws[0][listing.FieldVacancy]; ok {
		t.Error("lever emits its own field names")
	}
	rec, filled := normalize.Record(raws[0])
	if filled != 0 || rec.Company != "Acme Inc" || rec.Vacancy != "Go Developer" || rec.ApplyLink != "https://jobs.lever.co/acme/1" {
		t.Errorf("unexpected record %+v (filled %d)", rec, filled)
	}
	if raws[0][keyPostedAt] != "2024-05-01T08:00:00Z" {
		t.Errorf("posted_at = %q", raws[0][keyPostedAt])
	}
}

func TestLeverAPIURL(t *testing.T) {
	if got := leverAPIURL("https://jobs.lever.co/acme", "acme"); got != "https://api.lever.co/v0/postings/acme?mode=json" {
		t.Errorf("api url = %q", got)
	}
}

func TestDecodeFailureIsPermanent(t *testing.T) {
	server := serve(t, map[string]string{"/acme": `<html>maintenance</html>`})
	l, _ := NewLever("acme-lever", server.URL+"/acme", "", testClient())

	_, err := l.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !adapter.IsPermanent(err) {
		t.Errorf("decode failure should be permanent: %v", err)
	}
	if !strings.Contains(err.Error(), "decode failed") {
		t.Errorf("error should read as a parsing failure: %v", err)
	}
}

func TestHTTPErrorKeepsStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := NewRemoteOK("rok", server.URL, "", testClient()).Fetch(context.Background())
	var fe *httpx.FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected FetchError 503, got %v", err)
	}
	if adapter.IsPermanent(err) {
		t.Error("server errors are worth retrying")
	}
}

func TestAshbyExtractsAppData(t *testing.T) {
	page := `<html><head><script>window.__appData = {"organization":{"name":"Acme Corp"},
	"jobBoard":{"jobPostings":[
	  {"id":"a1","title":"Staff Engineer","locationName":"NYC","workplaceType":"Hybrid","departmentName":"Eng","publishedDate":"2024-04-01","isListed":true},
	  {"id":"a2","title":"Hidden","isListed":false},
	  {"id":"a1","title":"Staff Engineer","isListed":true}
	]}};</script></head></html>`
	server := serve(t, map[string]string{"/acme": page})

	a, err := NewAshby("acme-ashby", server.URL+"/acme/", "", testClient())
	if err != nil {
		t.Fatalf("NewAshby: %v", err)
	}
	raws, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("expected 1 listing, got %d: %v", len(raws), raws)
	}
	rec, _ := normalize.Record(raws[0])
	want := listing.Record{Company: "Acme Corp", Vacancy: "Staff Engineer", ApplyLink: server.URL + "/acme/a1"}
	if rec != want {
		t.Errorf("got %+v, want %+v", rec, want)
	}
	if raws[0][keyLocation] != "NYC (Hybrid)" {
		t.Errorf("location = %q", raws[0][keyLocation])
	}
}

func TestAshbyMissingAppDataIsPermanent(t *testing.T) {
	server := serve(t, map[string]string{"/acme": `<html>nothing here</html>`})
	a, _ := NewAshby("acme-ashby", server.URL+"/acme", "", testClient())
	if _, err := a.Fetch(context.Background()); !adapter.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestRemoteOKFiltersByTag(t *testing.T) {
	server := serve(t, map[string]string{"/api": `[
		{"legal":"metadata"},
		{"slug":"go-1","company":"Gopher Co","position":"Go Engineer","url":"https://remoteok.com/1","tags":["Golang","backend"],"date":"2024-05-01T00:00:00+00:00","salary_min":90000},
		{"slug":"js-1","company":"JS Co","position":"Frontend","url":"https://remoteok.com/2","tags":["javascript"]}
	]`})

	raws, err := NewRemoteOK("rok", server.URL+"/api", "golang", testClient()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(raws))
	}
	rec, _ := normalize.Record(raws[0])
	if rec.Company != "Gopher Co" || rec.Vacancy != "Go Engineer" || rec.ApplyLink != "https://remoteok.com/1" {
		t.Errorf("unexpected record %+v", rec)
	}
	if raws[0][keySalary] != "90000" {
		t.Errorf("salary = %q", raws[0][keySalary])
	}

	all, _ := NewRemoteOK("rok-all", server.URL+"/api", "", testClient()).Fetch(context.Background())
	if len(all) != 2 {
		t.Errorf("empty tag should keep every job, got %d", len(all))
	}
}

func TestWWRScrapesCategory(t *testing.T) {
	server := serve(t, map[string]string{"/categories/remote-programming-jobs": `
<html><body><section class="jobs"><article><ul>
  <li><a href="/remote-jobs/acme-go-engineer"><span class="company">Acme</span><span class="title">Go Engineer</span><span class="region">Europe Only</span></a></li>
  <li><a href="/remote-jobs/beta-rust"><span class="company">Beta</span><span class="title">Rust Dev</span></a></li>
  <li class="view-all"><a href="/categories/remote-programming-jobs">View all</a></li>
</ul></article></section></body></html>`})

	raws, err := NewWWR("wwr", server.URL+"/categories/remote-programming-jobs", testClient()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(raws))
	}
	if raws[0][listing.FieldApplyLink] != server.URL+"/remote-jobs/acme-go-engineer" {
		t.Errorf("apply link = %q", raws[0][listing.FieldApplyLink])
	}
	if raws[0][keyLocation] != "Europe Only" || raws[1][keyLocation] != "Remote" {
		t.Errorf("locations = %q, %q", raws[0][keyLocation], raws[1][keyLocation])
	}
}

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Remote Jobs</title>
<item><title>Acme: Senior Golang Engineer</title><link>https://jobs.example/1</link><pubDate>Wed, 01 May 2024 10:00:00 +0000</pubDate></item>
<item><title>Beta: Marketing Lead</title><link>https://jobs.example/2</link></item>
<item><title>Backend Developer</title><link>https://jobs.example/3</link></item>
</channel></rss>`

func TestRSSFiltersAndSplitsTitles(t *testing.T) {
	server := serve(t, map[string]string{"/feed.rss": feed})

	raws, err := NewRSS("feed", server.URL+"/feed.rss", "", []string{"golang", "backend"}, testClient()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got := records(raws)
	want := []listing.Record{
		{Company: "Acme", Vacancy: "Senior Golang Engineer", ApplyLink: "https://jobs.example/1"},
		{Company: "Remote Jobs", Vacancy: "Backend Developer", ApplyLink: "https://jobs.example/3"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if raws[0][keyPostedAt] != "2024-05-01T10:00:00Z" {
		t.Errorf("posted_at = %q", raws[0][keyPostedAt])
	}
}

func TestRSSConfiguredCompanyWins(t *testing.T) {
	server := serve(t, map[string]string{"/feed.rss": feed})
	raws, err := NewRSS("feed", server.URL+"/feed.rss", "Board", nil, testClient()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raws) != 3 {
		t.Fatalf("no keywords should keep all items, got %d", len(raws))
	}
	if rec, _ := normalize.Record(raws[0]); rec.Company != "Board" || rec.Vacancy != "Acme: Senior Golang Engineer" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestRSSRejectsGarbage(t *testing.T) {
	server := serve(t, map[string]string{"/feed.rss": `this is not a feed`})
	_, err := NewRSS("feed", server.URL+"/feed.rss", "", nil, testClient()).Fetch(context.Background())
	if !adapter.IsPermanent(err) {
		t.Errorf("expected permanent parse error, got %v", err)
	}
}

func TestMatchesKeywords(t *testing.T) {
	if !MatchesKeywords("Senior GoLang Engineer", []string{"golang"}) {
		t.Error("match should ignore case")
	}
	if MatchesKeywords("Designer", []string{"golang", " "}) {
		t.Error("unexpected match")
	}
}

func TestAdzunaQueriesSearchAPI(t *testing.T) {
	var gotPath, gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"count":1,"results":[{"id":"9","title":"Go Engineer","created":"2024-05-01T00:00:00Z",
			"redirect_url":"https://adzuna.example/9","salary_min":70000,
			"company":{"display_name":"Acme"},"location":{"display_name":"London"}}]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	creds := AdzunaCredentials{AppID: "id", AppKey: "key", Country: "GB"}
	a, err := NewAdzuna("adzuna", server.URL, "golang", "", creds, testClient())
	if err != nil {
		t.Fatalf("NewAdzuna: %v", err)
	}
	raws, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "/v1/api/jobs/gb/search/1" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotQuery, "app_id=id") || !strings.Contains(gotQuery, "what=golang") {
		t.Errorf("query = %q", gotQuery)
	}
	rec, _ := normalize.Record(raws[0])
	if rec != (listing.Record{Company: "Acme", Vacancy: "Go Engineer", ApplyLink: "https://adzuna.example/9"}) {
		t.Errorf("unexpected record %+v", rec)
	}
	if raws[0][keySalary] != "70000" || raws[0][keyLocation] != "London" {
		t.Errorf("extra fields = %v", raws[0])
	}
}

func TestAdzunaFailureHidesCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := AdzunaCredentials{AppID: "id", AppKey: "SUPERSECRET"}
	a, err := NewAdzuna("adzuna", server.URL, "golang", "", creds, testClient())
	if err != nil {
		t.Fatalf("NewAdzuna: %v", err)
	}
	reg, err := adapter.NewRegistry(a)
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(engine.Config{LightWorkers: 1, HeavyWorkers: 1, Timeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatal(err)
	}

	outcomes, err := eng.Run(context.Background(), reg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].OK() {
		t.Fatalf("expected one failed outcome, got %+v", outcomes)
	}
	if reason := outcomes[0].Reason(); strings.Contains(reason, "SUPERSECRET") || strings.Contains(reason, "app_key") {
		t.Errorf("credential leaked into failure reason: %s", reason)
	}
}

func TestAdzunaRequiresCredentials(t *testing.T) {
	if _, err := NewAdzuna("adzuna", "", "go", "", AdzunaCredentials{}, testClient()); !errors.Is(err, ErrAdzunaCredentials) {
		t.Errorf("expected ErrAdzunaCredentials, got %v", err)
	}
}

func TestJSONLDPrefersEmbeddedPostings(t *testing.T) {
	server := serve(t, map[string]string{"/careers": `<html><head>
<script type="application/ld+json">[
  {"@type":"JobPosting","title":"Data Engineer","url":"https://acme.example/careers/data","hiringOrganization":{"name":"Acme"}},
  {"@type":"JobPosting","title":"QA Engineer"}
]</script></head><body><a href="/careers/other-job">Other job</a></body></html>`})

	j, err := NewJSONLD("acme-careers", server.URL+"/careers", "", adapter.Heavy, testFetcher())
	if err != nil {
		t.Fatalf("NewJSONLD: %v", err)
	}
	raws, err := j.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got := records(raws)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %+v", got)
	}
	if got[0] != (listing.Record{Company: "Acme", Vacancy: "Data Engineer", ApplyLink: "https://acme.example/careers/data"}) {
		t.Errorf("unexpected first record %+v", got[0])
	}
	if got[1].Company != "127.0.0.1" || got[1].ApplyLink != server.URL+"/careers#job-2" {
		t.Errorf("unexpected fallback record %+v", got[1])
	}
}

func TestJSONLDFollowsDetailLinks(t *testing.T) {
	server := serve(t, map[string]string{
		"/careers": `<html><body>
  <a href="/careers/backend-engineer">Backend Engineer</a>
  <a href="/jobs/site-reliability">SRE</a>
  <a href="/about">About us</a>
  <a href="https://elsewhere.example/jobs/1">External job</a>
  <a href="/careers/brochure.pdf">Careers brochure</a>
</body></html>`,
		"/careers/backend-engineer": `<html><head><title>Acme | Backend Engineer</title></head><body><h1>Backend Engineer</h1></body></html>`,
		"/jobs/site-reliability": `<html><head><script type="application/ld+json">{"@type":"JobPosting","title":"Site Reliability Engineer","hiringOrganization":"Acme SRE"}</script></head></html>`,
	})

	j, err := NewJSONLD("acme-careers", server.URL+"/careers", "Acme", adapter.Heavy, testFetcher())
	if err != nil {
		t.Fatalf("NewJSONLD: %v", err)
	}
	raws, err := j.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got := records(raws)
	want := []listing.Record{
		{Company: "Acme", Vacancy: "Backend Engineer", ApplyLink: server.URL + "/careers/backend-engineer"},
		{Company: "Acme SRE", Vacancy: "Site Reliability Engineer", ApplyLink: server.URL + "/jobs/site-reliability"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPathTitleFromURL(t *testing.T) {
	if got := pathTitleFromURL("https://acme.example/jobs/senior-go_engineer?ref=x"); got != "Senior Go Engineer" {
		t.Errorf("pathTitleFromURL = %q", got)
	}
}

func TestInferKind(t *testing.T) {
	cases := map[string]string{
		"https://boards.greenhouse.io/acme": KindGreenhouse,
		"https://jobs.lever.co/acme":        KindLever,
		"https://jobs.ashbyhq.com/acme":     KindAshby,
		"https://acme.myworkdayjobs.com/x":  KindJSONLD,
		"https://acme.example/careers":      KindJSONLD,
	}
	for in, want := range cases {
		if got := InferKind(in); got != want {
			t.Errorf("InferKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildRegistry(t *testing.T) {
	specs := []Spec{
		{Name: "gh", URL: "https://boards.greenhouse.io/acme"},
		{Name: "career", URL: "https://acme.example/careers"},
		{Name: "career-light", URL: "https://beta.example/jobs", Class: "light"},
		{Name: "rok", Kind: "RemoteOK", Tag: "golang"},
		{Name: "adzuna", Kind: "adzuna", Query: "go"},
	}
	reg, err := Build(specs, Deps{Client: testClient(), Fetcher: testFetcher()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if reg.Len() != 4 {
		t.Fatalf("expected adzuna to be skipped, got %d adapters", reg.Len())
	}
	adapters := reg.Adapters()
	if _, ok := adapters[0].(*Greenhouse); !ok {
		t.Errorf("expected greenhouse adapter, got %T", adapters[0])
	}
	if adapters[1].Class() != adapter.Heavy || adapters[2].Class() != adapter.Light {
		t.Errorf("career page classes = %s, %s", adapters[1].Class(), adapters[2].Class())
	}

	withCreds, err := Build(specs, Deps{Adzuna: AdzunaCredentials{AppID: "a", AppKey: "b"}})
	if err != nil {
		t.Fatalf("Build with credentials: %v", err)
	}
	if withCreds.Len() != 5 {
		t.Errorf("expected 5 adapters with credentials, got %d", withCreds.Len())
	}
}

func TestBuildReportsEveryInvalidSource(t *testing.T) {
	specs := []Spec{
		{Name: "ok", Kind: "wwr"},
		{Name: "bogus", Kind: "linkedin", URL: "https://linkedin.example"},
		{Name: "", Kind: "wwr"},
		{Name: "ok", Kind: "remoteok"},
		{Name: "nokind"},
		{Name: "badclass", Kind: "wwr", Class: "gpu"},
	}
	_, err := Build(specs, Deps{})
	if err == nil {
		t.Fatal("expected configuration error")
	}
	for _, want := range []string{"unknown source kind", "name is required", "duplicate adapter", "kind or url is required", "unknown adapter class"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadDefaultsAndFile(t *testing.T) {
	specs, err := Load("")
	if err != nil {
		t.Fatalf("Load default: %v", err)
	}
	if len(specs) == 0 {
		t.Fatal("embedded source list is empty")
	}
	reg, err := Build(specs, Deps{})
	if err != nil {
		t.Fatalf("embedded sources do not build: %v", err)
	}
	if reg.Len() == 0 {
		t.Error("expected adapters from embedded sources")
	}

	path := filepath.Join(t.TempDir(), "sources.json")
	if err := os.WriteFile(path, []byte(`[{"name":"one","kind":"wwr"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	specs, err = Load(path)
	if err != nil || len(specs) != 1 || specs[0].Name != "one" {
		t.Errorf("Load(file) = %+v, %v", specs, err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
