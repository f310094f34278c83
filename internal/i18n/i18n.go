// Package i18n holds every operator-facing string in both supported languages.
//
// Strings live in an embedded YAML catalog keyed by language. Formatting
// verbs in a message are filled by T's arguments.
package i18n

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Language selects the catalog used for outbound messages.
type Language int

const (
	// Primary is the default language (English).
	Primary Language = iota
	// Secondary is the alternate language (Vietnamese).
	Secondary
)

// Key names a catalog message.
type Key string

const (
	KeyAwake            Key = "awake"
	KeyHelp             Key = "help"
	KeyUnknownCommand   Key = "unknown_command"
	KeyLooking          Key = "looking"
	KeyLookCaption      Key = "look_caption"
	KeyLookPrompt       Key = "look_prompt"
	KeyVisionError      Key = "vision_error"
	KeyStatus           Key = "status"
	KeyStatusError      Key = "status_error"
	KeyLanguageSwitched Key = "language_switched"
	KeyMemoryCleared    Key = "memory_cleared"
	KeyModelError       Key = "model_error"
	KeyPersona          Key = "persona"
	KeyPatrolOnline     Key = "patrol_online"
	KeyPatrolStopping   Key = "patrol_stopping"
	KeyPatrolError      Key = "patrol_error"
	KeyAdminRecognized  Key = "admin_recognized"
	KeyIntruderAlert    Key = "intruder_alert"
	KeyAlertCleared     Key = "alert_cleared"
)

// Keys lists every key the catalog must define for each language.
var Keys = []Key{
	KeyAwake, KeyHelp, KeyUnknownCommand, KeyLooking, KeyLookCaption,
	KeyLookPrompt, KeyVisionError, KeyStatus, KeyStatusError,
	KeyLanguageSwitched, KeyMemoryCleared, KeyModelError, KeyPersona,
	KeyPatrolOnline, KeyPatrolStopping, KeyPatrolError,
	KeyAdminRecognized, KeyIntruderAlert, KeyAlertCleared,
}

//go:embed catalog.yaml
var catalogYAML []byte

// Locale is the catalog entry for one language.
type Locale struct {
	Name     string         `yaml:"name"`
	Messages map[Key]string `yaml:"messages"`
	Jokes    []string       `yaml:"jokes"`
}

// Catalog maps each language to its locale.
type Catalog struct {
	English    Locale `yaml:"english"`
	Vietnamese Locale `yaml:"vietnamese"`
}

var catalog = mustParse(catalogYAML)

// Parse decodes a YAML catalog and checks that both languages define every key.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	for _, loc := range []Locale{c.English, c.Vietnamese} {
		if loc.Name == "" {
			return nil, fmt.Errorf("catalog: locale without name")
		}
		for _, k := range Keys {
			if loc.Messages[k] == "" {
				return nil, fmt.Errorf("catalog: %s is missing %q", loc.Name, k)
			}
		}
		if len(loc.Jokes) == 0 {
			return nil, fmt.Errorf("catalog: %s has no jokes", loc.Name)
		}
	}
	return &c, nil
}

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) locale(l Language) *Locale {
	if l == Secondary {
		return &c.Vietnamese
	}
	return &c.English
}

// String returns the language's display name, as used in model prompts.
func (l Language) String() string {
	return catalog.locale(l).Name
}

// Toggle returns the other language.
func (l Language) Toggle() Language {
	if l == Primary {
		return Secondary
	}
	return Primary
}

// T returns the message for key in language l, formatted with args if any.
func T(l Language, key Key, args ...any) string {
	msg := catalog.locale(l).Messages[key]
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Jokes returns the joke list for language l.
func Jokes(l Language) []string {
	return catalog.locale(l).Jokes
}
