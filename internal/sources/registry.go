package sources

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/baxromumarov/job-aggregator/internal/adapter"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/logging"
	"github.com/baxromumarov/job-aggregator/internal/urlutil"
)

const (
	KindGreenhouse = "greenhouse"
	KindLever      = "lever"
	KindAshby      = "ashby"
	KindRemoteOK   = "remoteok"
	KindWWR        = "wwr"
	KindJSONLD     = "jsonld"
	KindRSS        = "rss"
	KindAdzuna     = "adzuna"
)

//go:embed sources.json
var defaultSources []byte

// Spec is one curated source. Kind may be left empty for boards on a known ATS host and for
// plain career pages.
type Spec struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind,omitempty"`
	URL      string   `json:"url,omitempty"`
	Class    string   `json:"class,omitempty"`
	Company  string   `json:"company,omitempty"`
	Tag      string   `json:"tag,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Query    string   `json:"query,omitempty"`
	Country  string   `json:"country,omitempty"`
}

// Deps are the shared resources adapters are built with.
type Deps struct {
	Client  *httpx.Client
	Fetcher *httpx.CollyFetcher
	Adzuna  AdzunaCredentials
	Log     *logging.Logger
}

// Load reads specs from path, or the embedded default list when path is empty.
func Load(path string) ([]Spec, error) {
	data := defaultSources
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sources file: %w", err)
		}
		data = b
	}
	return Parse(data)
}

func Parse(data []byte) ([]Spec, error) {
	var specs []Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	return specs, nil
}

// InferKind picks the kind for a spec that did not name one: the ATS the URL is hosted on,
// otherwise a generic career page.
func InferKind(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err == nil {
		if kind := urlutil.ATSKind(u.Hostname()); kind != "" {
			return kind
		}
	}
	return KindJSONLD
}

// Build turns specs into a registry. Any invalid spec is a configuration error; all of them
// are reported together. Adzuna specs are skipped with a warning when no credentials are set.
func Build(specs []Spec, deps Deps) (*adapter.Registry, error) {
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	if deps.Client == nil {
		deps.Client = httpx.NewClient("")
	}
	if deps.Fetcher == nil {
		deps.Fetcher = httpx.NewCollyFetcher("")
	}

	reg, _ := adapter.NewRegistry()
	var errs []error
	for i, spec := range specs {
		a, err := build(spec, deps)
		if errors.Is(err, ErrAdzunaCredentials) {
			deps.Log.Warn("skipping source without credentials", "source", spec.Name, "kind", KindAdzuna)
			continue
		}
		if err == nil {
			err = reg.Register(a)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("source %d (%s): %w", i, spec.Name, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	counts := reg.CountByClass()
	deps.Log.Info("sources registered", "total", reg.Len(), "light", counts[adapter.Light], "heavy", counts[adapter.Heavy])
	return reg, nil
}

func build(spec Spec, deps Deps) (adapter.Adapter, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, errors.New("name is required")
	}
	kind := strings.ToLower(strings.TrimSpace(spec.Kind))
	if kind == "" {
		if spec.URL == "" {
			return nil, errors.New("kind or url is required")
		}
		kind = InferKind(spec.URL)
	}
	class, err := adapter.ParseClass(spec.Class)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindGreenhouse:
		return NewGreenhouse(name, spec.URL, spec.Company, deps.Client)
	case KindLever:
		return NewLever(name, spec.URL, spec.Company, deps.Client)
	case KindAshby:
		return NewAshby(name, spec.URL, spec.Company, deps.Client)
	case KindRemoteOK:
		return NewRemoteOK(name, spec.URL, spec.Tag, deps.Client), nil
	case KindWWR:
		return NewWWR(name, spec.URL, deps.Client), nil
	case KindRSS:
		if spec.URL == "" {
			return nil, errors.New("rss: url is required")
		}
		return NewRSS(name, spec.URL, spec.Company, spec.Keywords, deps.Client), nil
	case KindAdzuna:
		return NewAdzuna(name, spec.URL, spec.Query, spec.Country, deps.Adzuna, deps.Client)
	case KindJSONLD:
		// career pages are crawled page by page
		if strings.TrimSpace(spec.Class) == "" {
			class = adapter.Heavy
		}
		return NewJSONLD(name, spec.URL, spec.Company, class, deps.Fetcher)
	default:
		return nil, fmt.Errorf("unknown source kind %q", spec.Kind)
	}
}
