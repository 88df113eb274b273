package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/corvidfield/storylet-engine/pkg/deck"
	"github.com/corvidfield/storylet-engine/pkg/loader"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <deck.jsonc>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	validator := &DeckValidator{}

	if err := validator.validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Deck file is valid!")
}

// DeckValidator loads a description document through the real loader
// and then applies house naming conventions on top of it, reporting
// every violation instead of stopping at the first.
type DeckValidator struct {
	errors []string
}

var titleCaser = cases.Title(language.English)

func (v *DeckValidator) validateFile(filename string) error {
	fmt.Printf("%s %s...\n", titleCaser.String("validating"), filename)

	baseName := filepath.Base(filename)
	if !hasJSONCExtension(baseName) {
		return fmt.Errorf("deck file must have a .json or .jsonc extension: %s", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	d, err := loader.New().Load(data)
	if err != nil {
		return fmt.Errorf("file %s failed to load: %w", filename, err)
	}

	v.validateIDs(d)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

// validateIDs walks every storylet id the deck accepted and flags
// anything outside the house naming convention. The loader itself
// already rejects missing or duplicate ids; this is a style pass on
// top of a structurally valid deck.
func (v *DeckValidator) validateIDs(d *deck.Deck) {
	for _, id := range d.IDs() {
		if !isValidID(id) {
			v.addError(fmt.Sprintf("storylet id %q should be lowercase snake_case", id))
		}
	}
}

func (v *DeckValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func hasJSONCExtension(name string) bool {
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".jsonc")
}
