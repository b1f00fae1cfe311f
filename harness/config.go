package harness

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ConfigError reports malformed or contradictory exclusion data.
// It is fatal: a run aborts before any engine execution.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return "exclusions config: " + e.msg
}

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// DispositionKind discriminates the declared expectation for a test.
type DispositionKind string

const (
	DispositionNormal DispositionKind = "normal"
	DispositionXFail  DispositionKind = "xfail"
	DispositionSkip   DispositionKind = "skip"
)

// Disposition is the declared outcome classification for a test,
// independent of what actually happens at run time. The Reason string is
// carried verbatim into the report and never machine-parsed.
type Disposition struct {
	Kind   DispositionKind
	Reason string
}

// ExclusionSet holds the declared xfail and skip entries of one spec
// version. A test name appears in at most one of the two mappings.
type ExclusionSet struct {
	XFail map[string]string // test name -> reason
	Skip  map[string]string // test name -> reason
	names []string          // declaration order, for stable stale warnings
}

// Exclusions indexes exclusion sets by spec version. Read-only after
// LoadExclusions.
type Exclusions map[string]*ExclusionSet

// exclusionEntry is one item of an xfail/skip sequence: either a bare
// test name, or a single "name: reason" pair carrying the annotation.
type exclusionEntry struct {
	Name   string
	Reason string
}

func (e *exclusionEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&e.Name)
	case yaml.MappingNode:
		if len(node.Content) == 2 {
			if err := node.Content[0].Decode(&e.Name); err != nil {
				return err
			}
			return node.Content[1].Decode(&e.Reason)
		}
	}
	return fmt.Errorf("line %d: entry must be a test name or a single name: reason pair", node.Line)
}

type exclusionSection struct {
	XFail []exclusionEntry `yaml:"xfail"`
	Skip  []exclusionEntry `yaml:"skip"`
}

// LoadExclusions reads the xfail/skip artifact: a mapping from spec
// version to optional "xfail" and "skip" sequences. Missing keys mean
// empty sets. A test name listed as both xfail and skip within one
// version is a ConfigError.
func LoadExclusions(path string) (Exclusions, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, configErrorf("%v", err)
	}
	return ParseExclusions(raw)
}

// ParseExclusions builds the version index from raw YAML.
func ParseExclusions(raw []byte) (Exclusions, error) {
	sections := map[string]exclusionSection{}
	if err := yaml.Unmarshal(raw, &sections); err != nil {
		return nil, configErrorf("%v", err)
	}
	out := Exclusions{}
	for version, section := range sections {
		set := &ExclusionSet{
			XFail: map[string]string{},
			Skip:  map[string]string{},
		}
		for _, entry := range section.XFail {
			if _, dup := set.XFail[entry.Name]; !dup {
				set.names = append(set.names, entry.Name)
			}
			set.XFail[entry.Name] = entry.Reason
		}
		for _, entry := range section.Skip {
			if _, clash := set.XFail[entry.Name]; clash {
				return nil, configErrorf("%s: test %q is listed as both xfail and skip", version, entry.Name)
			}
			if _, dup := set.Skip[entry.Name]; !dup {
				set.names = append(set.names, entry.Name)
			}
			set.Skip[entry.Name] = entry.Reason
		}
		out[version] = set
	}
	return out, nil
}

// Lookup returns the declared disposition of a test. Any test absent
// from both lists is NORMAL.
func (x Exclusions) Lookup(version, name string) Disposition {
	set := x[version]
	if set == nil {
		return Disposition{Kind: DispositionNormal}
	}
	if reason, got := set.XFail[name]; got {
		return Disposition{Kind: DispositionXFail, Reason: reason}
	}
	if reason, got := set.Skip[name]; got {
		return Disposition{Kind: DispositionSkip, Reason: reason}
	}
	return Disposition{Kind: DispositionNormal}
}

// Stale returns configured test names of a version that match none of
// the discovered cases, in declaration order. Stale entries are reported
// as warnings, never as errors.
func (x Exclusions) Stale(version string, discovered []TestCase) []string {
	set := x[version]
	if set == nil {
		return nil
	}
	seen := map[string]bool{}
	for _, c := range discovered {
		seen[c.Name] = true
	}
	var stale []string
	for _, name := range set.names {
		if !seen[name] {
			stale = append(stale, name)
		}
	}
	return stale
}

// Versions returns the spec versions the artifact declares, sorted.
func (x Exclusions) Versions() []string {
	versions := make([]string, 0, len(x))
	for v := range x {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}
