package conformance

// TestSuite represents one complete YAML test file.
type TestSuite struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Tests       []TestCase `yaml:"tests"`
}

// TestCase is a single script compiled in isolation with its expected
// outcome.
type TestCase struct {
	Name   string      `yaml:"name"`
	Source string      `yaml:"source"`
	Skip   string      `yaml:"skip,omitempty"`
	Expect Expectation `yaml:"expect"`
}

// Expectation describes what the compiled module (or the diagnostics of a
// failed compile) must look like. Empty fields are not checked.
type Expectation struct {
	// Error is a substring the single reported error must contain; when
	// set, compilation must fail.
	Error string `yaml:"error,omitempty"`

	// Warnings are substrings; each must appear in some warning, and the
	// compile must still succeed.
	Warnings []string `yaml:"warnings,omitempty"`

	// NoWarnings asserts the compile produced no warnings at all.
	NoWarnings bool `yaml:"no_warnings,omitempty"`

	Exports    []string `yaml:"exports,omitempty"`     // names that must be exported
	NotExports []string `yaml:"not_exports,omitempty"` // names that must not be
	Imports    []string `yaml:"imports,omitempty"`     // import table, exact order

	// GlobalBytes is the expected global data size; -1 (the default)
	// leaves it unchecked.
	GlobalBytes *int32 `yaml:"global_bytes,omitempty"`

	// Fixups maps fixup kind names (globaldata, function, string,
	// import, datadata, stack) to expected counts.
	Fixups map[string]int `yaml:"fixups,omitempty"`

	// Strings lists literals that must be resolvable in the repository.
	Strings []string `yaml:"strings,omitempty"`

	// Deterministic re-compiles the source and asserts both modules are
	// identical.
	Deterministic bool `yaml:"deterministic,omitempty"`
}
