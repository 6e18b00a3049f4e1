// Package persona loads Eilo's personality profiles from YAML and picks
// one per signed-in user.
package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"eilo/internal/brain"
)

// DefaultID names the built-in profile.
const DefaultID = "eilo"

// Profile is one persona definition. The filename (without extension)
// becomes its ID.
type Profile struct {
	ID           string              `yaml:"-"`
	Name         string              `yaml:"name"`
	SystemPrompt string              `yaml:"system_prompt"`
	Users        []string            `yaml:"users"`
	Greeting     string              `yaml:"greeting"`
	Phrases      map[string][]string `yaml:"phrases"` // mood -> replacement phrase pool
}

// Default is the built-in Eilo profile.
func Default() Profile {
	return Profile{
		ID:           DefaultID,
		Name:         "Eilo",
		SystemPrompt: brain.DefaultPersona,
		Greeting:     "Hi hi! I'm Eilo! ✨",
	}
}

// Registry maps user IDs to profiles.
type Registry struct {
	profiles map[string]Profile
	byUser   map[string]string
}

// NewRegistry builds a registry from profiles. The built-in profile is
// present unless a profile with the same ID replaces it.
func NewRegistry(profiles ...Profile) *Registry {
	r := &Registry{
		profiles: map[string]Profile{DefaultID: Default()},
		byUser:   make(map[string]string),
	}
	for _, p := range profiles {
		r.add(p)
	}
	return r
}

func (r *Registry) add(p Profile) {
	if strings.TrimSpace(p.SystemPrompt) == "" {
		p.SystemPrompt = brain.DefaultPersona
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = p.ID
	}
	r.profiles[p.ID] = p
	for _, uid := range p.Users {
		if prev, ok := r.byUser[uid]; ok && prev != p.ID {
			log.Warn().Str("user", uid).Str("kept", prev).Str("ignored", p.ID).Msg("user listed in two personas")
			continue
		}
		r.byUser[uid] = p.ID
	}
}

// LoadDirs scans dirs for .yaml/.yml profiles. Missing directories are
// skipped; unreadable files are logged and skipped.
func LoadDirs(dirs ...string) (*Registry, error) {
	var loaded []Profile
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading personas dir %s: %w", dir, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			p, err := loadProfile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("skipping persona")
				continue
			}
			p.ID = strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			loaded = append(loaded, p)
		}
	}
	return NewRegistry(loaded...), nil
}

func loadProfile(path string) (Profile, error) {
	var p Profile
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, err
	}
	return p, nil
}

// Profile returns the profile with id.
func (r *Registry) Profile(id string) (Profile, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// ForUser picks the profile for a user: an explicit choice from settings
// first, then the profile listing the user, then the default.
func (r *Registry) ForUser(userID, chosen string) Profile {
	if p, ok := r.profiles[chosen]; ok && chosen != "" {
		return p
	}
	if id, ok := r.byUser[userID]; ok {
		return r.profiles[id]
	}
	return r.profiles[DefaultID]
}

// IDs lists profile IDs, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
