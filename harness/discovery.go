package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stxue1/wdltest"
)

// DiscoveryError reports a fixture/sidecar mismatch. It is fatal for the
// spec version it names; other versions of the same run continue.
type DiscoveryError struct {
	Version string
	msg     string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery %s: %s", e.Version, e.msg)
}

func discoveryErrorf(version, format string, args ...interface{}) *DiscoveryError {
	return &DiscoveryError{Version: version, msg: fmt.Sprintf(format, args...)}
}

// TestCase is one discovered conformance fixture: a WDL document plus
// its expected-result sidecar. Immutable once discovered.
type TestCase struct {
	Version   string
	Name      string          // the WDL file name, unique within a version
	Doc       string          // path to the WDL document
	Sidecar   string          // path to the expected-result sidecar
	Inputs    json.RawMessage // inputs payload handed to the engine
	Output    wdltest.Values  // expected output bindings, nil when undeclared
	ExitCode  int             // expected engine exit code
	Tolerance float64         // absolute tolerance for Float comparisons
}

// sidecarDoc is the on-disk shape of a "<name>.json" (or .yaml) sidecar.
type sidecarDoc struct {
	Inputs         json.RawMessage `json:"inputs"`
	Outputs        *wdltest.Values `json:"outputs"`
	ExitCode       *int            `json:"exit_code"`
	FloatTolerance float64         `json:"float_tolerance"`
}

// Discover enumerates the fixtures of one spec version under
// <testsDir>/<version>: every "<name>.wdl" with its "<name>.json" or
// "<name>.yaml" sidecar. The result is ordered lexicographically by test
// name so repeated runs are diffable. Nothing is cached; each call
// re-reads the directory.
func Discover(testsDir, version string) ([]TestCase, error) {
	dir := filepath.Join(testsDir, version)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, discoveryErrorf(version, "%v", err)
	}

	docs := map[string]string{}     // base name -> wdl path
	sidecars := map[string]string{} // base name -> sidecar path
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		base := strings.TrimSuffix(name, filepath.Ext(name))
		switch filepath.Ext(name) {
		case ".wdl":
			docs[base] = filepath.Join(dir, name)
		case ".json", ".yaml", ".yml":
			if prev, dup := sidecars[base]; dup {
				return nil, discoveryErrorf(version, "%q and %q both declare results for %q", filepath.Base(prev), name, base+".wdl")
			}
			sidecars[base] = filepath.Join(dir, name)
		}
	}

	bases := make([]string, 0, len(docs))
	for base := range docs {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	cases := make([]TestCase, 0, len(docs))
	for _, base := range bases {
		doc := docs[base]
		sidecar, got := sidecars[base]
		if !got {
			return nil, discoveryErrorf(version, "%q has no expected-result sidecar", filepath.Base(doc))
		}
		delete(sidecars, base)
		c, err := readSidecar(version, filepath.Base(doc), doc, sidecar)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if len(sidecars) > 0 {
		var stray []string
		for base := range sidecars {
			stray = append(stray, base)
		}
		sort.Strings(stray)
		base := stray[0]
		return nil, discoveryErrorf(version, "%q has no matching %q", filepath.Base(sidecars[base]), base+".wdl")
	}

	sort.Slice(cases, func(i, j int) bool {
		return cases[i].Name < cases[j].Name
	})
	return cases, nil
}

func readSidecar(version, name, doc, sidecar string) (TestCase, error) {
	raw, err := os.ReadFile(sidecar)
	if err != nil {
		return TestCase{}, discoveryErrorf(version, "%v", err)
	}
	if ext := filepath.Ext(sidecar); ext == ".yaml" || ext == ".yml" {
		raw, err = wdltest.Y2J(raw)
		if err != nil {
			return TestCase{}, discoveryErrorf(version, "%s: %v", filepath.Base(sidecar), err)
		}
	}
	var sd sidecarDoc
	if err := json.Unmarshal(raw, &sd); err != nil {
		return TestCase{}, discoveryErrorf(version, "%s: %v", filepath.Base(sidecar), err)
	}
	c := TestCase{
		Version:   version,
		Name:      name,
		Doc:       doc,
		Sidecar:   sidecar,
		Inputs:    sd.Inputs,
		Tolerance: sd.FloatTolerance,
	}
	if sd.Outputs != nil {
		c.Output = *sd.Outputs
	}
	if sd.ExitCode != nil {
		c.ExitCode = *sd.ExitCode
	}
	return c, nil
}

// Versions lists the spec version directories under testsDir, sorted.
func Versions(testsDir string) ([]string, error) {
	entries, err := os.ReadDir(testsDir)
	if err != nil {
		return nil, err
	}
	var versions []string
	for _, entry := range entries {
		if entry.IsDir() {
			versions = append(versions, entry.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}
