package roles

import (
	"fmt"
	"strings"
)

// Category classifies an attribute role key.
type Category string

const (
	// CategoryLevel keys map the user's "level" SSO attribute.
	CategoryLevel Category = "level"
	// CategoryClass keys map the user's "class" SSO attribute.
	CategoryClass Category = "class"
)

// Key identifies one attribute role: a category plus the attribute
// value it maps, e.g. {level, Undergrad}.
type Key struct {
	Category Category
	Name     string
}

// String returns the wire encoding "category:Name" used in wizard
// component values.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Category, k.Name)
}

// DisplayName returns the canonical guild role name for the key.
func (k Key) DisplayName() string {
	return k.Name
}

// Color returns the role color used when the reconciler creates the
// role.
func (k Key) Color() int {
	if k.Category == CategoryLevel {
		return 0x3498db
	}
	return 0x9b59b6
}

// ParseKey decodes the "category:Name" encoding. It rejects unknown
// categories and names outside the catalog.
func ParseKey(s string) (Key, error) {
	category, name, found := strings.Cut(s, ":")
	if !found || name == "" {
		return Key{}, fmt.Errorf("malformed role key %q", s)
	}

	key := Key{Category: Category(category), Name: name}
	switch key.Category {
	case CategoryLevel, CategoryClass:
	default:
		return Key{}, fmt.Errorf("unknown role key category %q", category)
	}

	for _, known := range Catalog() {
		if known == key {
			return key, nil
		}
	}
	return Key{}, fmt.Errorf("role key %q is not in the catalog", s)
}

// LevelNames are the recognized values of the "level" SSO attribute.
var LevelNames = []string{"Undergrad", "Graduate"}

// ClassNames are the recognized values of the "class" SSO attribute.
var ClassNames = []string{
	"First-Year",
	"Sophomore",
	"Junior",
	"Senior",
	"Fifth-Year Senior",
	"Masters",
	"Doctoral",
}

// LevelKeys returns the catalog keys in the level category.
func LevelKeys() []Key {
	keys := make([]Key, 0, len(LevelNames))
	for _, name := range LevelNames {
		keys = append(keys, Key{Category: CategoryLevel, Name: name})
	}
	return keys
}

// ClassKeys returns the catalog keys in the class category.
func ClassKeys() []Key {
	keys := make([]Key, 0, len(ClassNames))
	for _, name := range ClassNames {
		keys = append(keys, Key{Category: CategoryClass, Name: name})
	}
	return keys
}

// Catalog returns every attribute role key the system knows about.
func Catalog() []Key {
	return append(LevelKeys(), ClassKeys()...)
}
