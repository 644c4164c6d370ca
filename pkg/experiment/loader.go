package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Decoder turns raw document bytes into a Definition. The loader takes its
// decoder as an explicit dependency so it can be tested with a substitute
// and so experiment files authored in the restricted legacy dialect can be
// read with SubsetDecoder instead of the default YAML decoder.
type Decoder interface {
	Unmarshal(data []byte, def *Definition) error
}

// YAMLDecoder decodes experiment documents with a conformant YAML parser.
// It is the default decoder.
type YAMLDecoder struct{}

func (YAMLDecoder) Unmarshal(data []byte, def *Definition) error {
	return yaml.Unmarshal(data, def)
}

// Loader reads, substitutes, decodes, validates and enriches experiment
// documents.
type Loader struct {
	decoder    Decoder
	checkTypes map[string]bool
	now        func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithDecoder replaces the default YAML decoder.
func WithDecoder(d Decoder) Option {
	return func(l *Loader) {
		l.decoder = d
	}
}

// WithCheckTypes replaces the recognized verification-check type whitelist.
func WithCheckTypes(types []string) Option {
	return func(l *Loader) {
		l.checkTypes = make(map[string]bool, len(types))
		for _, t := range types {
			l.checkTypes[t] = true
		}
	}
}

// withClock fixes the loader's clock. Test hook.
func withClock(now func() time.Time) Option {
	return func(l *Loader) {
		l.now = now
	}
}

// NewLoader creates a Loader with the given options.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		decoder: YAMLDecoder{},
		now:     time.Now,
	}
	WithCheckTypes(DefaultCheckTypes)(l)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and parses the experiment document at path.
//
// Errors are typed: *NotFoundError if the path does not exist, *ParseError
// if decoding fails, *ValidationResult if the decoded document violates the
// schema. Nothing network-related happens here.
func (l *Loader) Load(path string) (Definition, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Definition{}, &NotFoundError{Path: path}
		}
		return Definition{}, fmt.Errorf("stat experiment %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read experiment %s: %w", path, err)
	}

	return l.parse(data, path)
}

// Parse parses raw experiment document bytes. sourcePath is recorded in the
// derived metadata and used for phase extraction; it may be empty.
func (l *Loader) Parse(data []byte, sourcePath string) (Definition, error) {
	return l.parse(data, sourcePath)
}

func (l *Loader) parse(data []byte, path string) (Definition, error) {
	now := l.now()

	// Substitute ${var} placeholders in the raw text before decoding so the
	// substitution reaches every string in the document, however deeply
	// nested. The variable table is computed once per parse call.
	substituted := substituteVars(string(data), builtinVars(now))

	var def Definition
	if err := l.decoder.Unmarshal([]byte(substituted), &def); err != nil {
		return Definition{}, &ParseError{Path: path, Err: err}
	}

	if result := l.validate(def); !result.Valid() {
		return Definition{}, result
	}

	def.Metadata = Metadata{
		SourcePath: path,
		Phase:      phaseFromPath(path),
		ID:         fmt.Sprintf("%s-%d", slug(def.Name), now.UnixMilli()),
		Timestamp:  now,
	}

	return def, nil
}

// builtinVars computes the substitution table for one parse call. date and
// time are the two halves of the ISO-8601 timestamp.
func builtinVars(now time.Time) map[string]string {
	iso := now.UTC().Format(time.RFC3339)
	datePart, timePart, _ := strings.Cut(iso, "T")
	return map[string]string{
		"timestamp": strconv.FormatInt(now.UnixMilli(), 10),
		"date":      datePart,
		"time":      strings.TrimSuffix(timePart, "Z"),
	}
}

// varPattern matches ${var_name} placeholders.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteVars replaces ${var} placeholders with values from the table.
// Unknown variables are left untouched verbatim.
func substituteVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := vars[name]; ok {
			return val
		}
		return match // Leave unresolved.
	})
}

// phasePattern matches a phaseNNN-<name> path segment.
var phasePattern = regexp.MustCompile(`^phase(\d+)-(.+)$`)

// phaseFromPath extracts advisory phase metadata from a path segment like
// "phase003-dimensional-metrics". A path without one is still valid and
// maps to phase 0, "unknown".
func phaseFromPath(path string) Phase {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if m := phasePattern.FindStringSubmatch(seg); m != nil {
			num, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			return Phase{Number: num, Name: m[2]}
		}
	}
	return Phase{Number: 0, Name: "unknown"}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slug lower-cases s and collapses every run of non-alphanumeric characters
// into a single hyphen.
func slug(s string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
