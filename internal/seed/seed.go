// Package seed loads fixture data through the service layer, so every
// summary copy is written the same way a live request would write it.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/services"
	"github.com/yungbote/indoormap-backend/internal/tiles"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type Fixtures struct {
	Assets      []AssetFixture      `yaml:"assets"`
	Maps        []MapFixture        `yaml:"maps"`
	ChokePoints []ChokePointFixture `yaml:"chokePoints"`
}

type AssetFixture struct {
	Name string `yaml:"name"`
}

// MapFixture describes a map without an uploaded image; its dimensions are
// written directly.
type MapFixture struct {
	Name   string `yaml:"name"`
	Asset  string `yaml:"asset"`
	Path   string `yaml:"path"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type ChokePointFixture struct {
	Name       string  `yaml:"name"`
	MacAddress string  `yaml:"macAddress"`
	Map        string  `yaml:"map"`
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
}

func DefaultFixtures() (*Fixtures, error) {
	return ParseFixtures(defaultFixtures)
}

func LoadFixtures(path string) (*Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(b)
}

func ParseFixtures(b []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

type Services struct {
	Repos       repos.Set
	Assets      services.AssetService
	FloorMaps   services.FloorMapService
	ChokePoints services.ChokePointService
}

// Seeder writes one entity kind. Seeders must be safe to run twice.
type Seeder interface {
	Kind() types.Kind
	DependsOn() []types.Kind
	Seed(dbc dbctx.Context, f *Fixtures) (int, error)
}

type Registry struct {
	log     *logger.Logger
	seeders map[types.Kind]Seeder
}

func NewRegistry(log *logger.Logger, svc Services) *Registry {
	r := &Registry{
		log:     log.With("component", "Seeder"),
		seeders: map[types.Kind]Seeder{},
	}
	r.Register(&assetSeeder{svc: svc})
	r.Register(&mapSeeder{svc: svc})
	r.Register(&chokePointSeeder{svc: svc})
	return r
}

func (r *Registry) Register(s Seeder) {
	r.seeders[s.Kind()] = s
}

func (r *Registry) Kinds() []types.Kind {
	var out []types.Kind
	for _, k := range types.Kinds() {
		if _, ok := r.seeders[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Run seeds the named kinds plus everything they depend on, dependencies
// first. No kinds means all of them.
func (r *Registry) Run(dbc dbctx.Context, f *Fixtures, kinds ...types.Kind) (map[types.Kind]int, error) {
	if len(kinds) == 0 {
		kinds = r.Kinds()
	}
	counts := map[types.Kind]int{}
	done := map[types.Kind]bool{}
	var visit func(k types.Kind, path []types.Kind) error
	visit = func(k types.Kind, path []types.Kind) error {
		if done[k] {
			return nil
		}
		for _, p := range path {
			if p == k {
				return fmt.Errorf("seed dependency cycle at %s", k)
			}
		}
		s, ok := r.seeders[k]
		if !ok {
			return fmt.Errorf("no seeder registered for %q", k)
		}
		for _, dep := range s.DependsOn() {
			if err := visit(dep, append(path, k)); err != nil {
				return err
			}
		}
		n, err := s.Seed(dbc, f)
		if err != nil {
			return fmt.Errorf("seed %s: %w", k, err)
		}
		done[k] = true
		counts[k] = n
		r.log.Info("seeded", "kind", k, "created", n)
		return nil
	}
	for _, k := range kinds {
		if err := visit(k, nil); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

// ParseKinds maps CLI names ("asset", "map", "chokePoint") to kinds.
func ParseKinds(names []string) ([]types.Kind, error) {
	var out []types.Kind
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		found := false
		for _, k := range types.Kinds() {
			if strings.EqualFold(n, k.String()) {
				out = append(out, k)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown kind %q", n)
		}
	}
	return out, nil
}

type assetSeeder struct{ svc Services }

func (s *assetSeeder) Kind() types.Kind        { return types.KindAsset }
func (s *assetSeeder) DependsOn() []types.Kind { return nil }

func (s *assetSeeder) Seed(dbc dbctx.Context, f *Fixtures) (int, error) {
	created := 0
	for _, a := range f.Assets {
		existing, err := s.svc.Repos.Assets.GetByName(dbc, a.Name)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		if _, err := s.svc.Assets.Create(dbc, services.AssetInput{Name: a.Name}); err != nil {
			return created, fmt.Errorf("asset %q: %w", a.Name, err)
		}
		created++
	}
	return created, nil
}

type mapSeeder struct{ svc Services }

func (s *mapSeeder) Kind() types.Kind        { return types.KindFloorMap }
func (s *mapSeeder) DependsOn() []types.Kind { return []types.Kind{types.KindAsset} }

func (s *mapSeeder) Seed(dbc dbctx.Context, f *Fixtures) (int, error) {
	byName, err := mapsByName(dbc, s.svc.Repos)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, m := range f.Maps {
		if _, ok := byName[m.Name]; ok {
			continue
		}
		in := services.FloorMapInput{Name: m.Name}
		if m.Asset != "" {
			asset, err := s.svc.Repos.Assets.GetByName(dbc, m.Asset)
			if err != nil {
				return created, err
			}
			if asset == nil {
				return created, fmt.Errorf("map %q: asset %q not found", m.Name, m.Asset)
			}
			in.AssetID = &asset.ID
		}
		row, err := s.svc.FloorMaps.Create(dbc, in)
		if err != nil {
			return created, fmt.Errorf("map %q: %w", m.Name, err)
		}
		if m.Width > 0 && m.Height > 0 {
			_, err = s.svc.Repos.FloorMaps.UpdateFields(dbc, row.ID, map[string]interface{}{
				"path":     m.Path,
				"width":    m.Width,
				"height":   m.Height,
				"max_zoom": tiles.MaxZoom(m.Width, m.Height),
			})
			if err != nil {
				return created, fmt.Errorf("map %q size: %w", m.Name, err)
			}
		}
		created++
	}
	return created, nil
}

type chokePointSeeder struct{ svc Services }

func (s *chokePointSeeder) Kind() types.Kind        { return types.KindChokePoint }
func (s *chokePointSeeder) DependsOn() []types.Kind { return []types.Kind{types.KindFloorMap} }

func (s *chokePointSeeder) Seed(dbc dbctx.Context, f *Fixtures) (int, error) {
	byName, err := mapsByName(dbc, s.svc.Repos)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, c := range f.ChokePoints {
		existing, err := s.svc.Repos.ChokePoints.GetByMacAddress(dbc, c.MacAddress)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		row, err := s.svc.ChokePoints.Create(dbc, services.ChokePointInput{Name: c.Name, MacAddress: c.MacAddress})
		if err != nil {
			return created, fmt.Errorf("chokePoint %q: %w", c.Name, err)
		}
		created++
		if c.Map == "" {
			continue
		}
		m, ok := byName[c.Map]
		if !ok {
			return created, fmt.Errorf("chokePoint %q: map %q not found", c.Name, c.Map)
		}
		if _, err := s.svc.ChokePoints.SetMap(dbc, row.ID, &m.ID, c.X, c.Y); err != nil {
			return created, fmt.Errorf("chokePoint %q on %q: %w", c.Name, c.Map, err)
		}
	}
	return created, nil
}

func mapsByName(dbc dbctx.Context, rs repos.Set) (map[string]*types.FloorMap, error) {
	rows, err := rs.FloorMaps.List(dbc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*types.FloorMap, len(rows))
	for _, m := range rows {
		out[m.Name] = m
	}
	return out, nil
}
