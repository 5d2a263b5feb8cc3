package conformance

import (
	"fmt"
	"reflect"
	"strings"

	"scriptc/pkg/bytecode"
	"scriptc/pkg/compiler"
)

var fixupKinds = map[string]bytecode.FixupType{
	"globaldata": bytecode.FixupGlobalData,
	"function":   bytecode.FixupFunction,
	"string":     bytecode.FixupString,
	"import":     bytecode.FixupImport,
	"datadata":   bytecode.FixupDataData,
	"stack":      bytecode.FixupStack,
}

// Run compiles one test case and checks every expectation it states. The
// returned error describes the first mismatch.
func Run(lt LoadedTest) error {
	section := strings.TrimSuffix(lt.File, ".yaml")
	mod, msgs := compiler.Compile(section, lt.Test.Source)
	ex := lt.Test.Expect

	var errors, warnings []string
	for _, m := range msgs.GetMessages() {
		switch m.Severity {
		case compiler.SeverityError:
			errors = append(errors, m.Text)
		case compiler.SeverityWarning:
			warnings = append(warnings, m.Text)
		}
	}

	if ex.Error != "" {
		if mod != nil {
			return fmt.Errorf("expected a compile error containing %q, but compilation succeeded", ex.Error)
		}
		if len(errors) != 1 {
			return fmt.Errorf("expected exactly one error, got %d: %v", len(errors), errors)
		}
		if !strings.Contains(errors[0], ex.Error) {
			return fmt.Errorf("error %q does not contain %q", errors[0], ex.Error)
		}
		return nil
	}

	if mod == nil {
		return fmt.Errorf("compilation failed: %v", errors)
	}
	if len(errors) > 0 {
		return fmt.Errorf("module returned alongside errors: %v", errors)
	}

	if ex.NoWarnings && len(warnings) > 0 {
		return fmt.Errorf("expected no warnings, got %v", warnings)
	}
	for _, want := range ex.Warnings {
		found := false
		for _, w := range warnings {
			if strings.Contains(w, want) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("no warning contains %q (warnings: %v)", want, warnings)
		}
	}

	exported := make(map[string]bool, len(mod.Exports))
	for _, e := range mod.Exports {
		exported[e.Name] = true
	}
	for _, name := range ex.Exports {
		if !exported[name] {
			return fmt.Errorf("%q missing from the export table", name)
		}
	}
	for _, name := range ex.NotExports {
		if exported[name] {
			return fmt.Errorf("%q must not be exported", name)
		}
	}

	if len(ex.Imports) > 0 && !reflect.DeepEqual(mod.Imports, ex.Imports) {
		return fmt.Errorf("import table %v, want %v", mod.Imports, ex.Imports)
	}

	if ex.GlobalBytes != nil && mod.GlobalDataSize != *ex.GlobalBytes {
		return fmt.Errorf("global data size %d, want %d", mod.GlobalDataSize, *ex.GlobalBytes)
	}

	if len(ex.Fixups) > 0 {
		counts := make(map[bytecode.FixupType]int)
		for _, fx := range mod.Fixups {
			counts[fx.Type]++
		}
		for kind, want := range ex.Fixups {
			ft, ok := fixupKinds[kind]
			if !ok {
				return fmt.Errorf("unknown fixup kind %q in expectation", kind)
			}
			if counts[ft] != want {
				return fmt.Errorf("%d %s fixups, want %d", counts[ft], kind, want)
			}
		}
	}

	for _, want := range ex.Strings {
		if !repositoryContains(mod, want) {
			return fmt.Errorf("string %q not found in the repository", want)
		}
	}

	if ex.Deterministic {
		again, _ := compiler.Compile(section, lt.Test.Source)
		if again == nil {
			return fmt.Errorf("second compile of the same source failed")
		}
		if !reflect.DeepEqual(mod, again) {
			return fmt.Errorf("two compiles of the same source produced different modules")
		}
	}
	return nil
}

func repositoryContains(mod *bytecode.Module, want string) bool {
	for off := int32(0); int(off) < len(mod.Strings); {
		s, err := mod.StringAt(off)
		if err != nil {
			return false
		}
		if s == want {
			return true
		}
		off += int32(len(s)) + 1
	}
	return false
}
