package conformance

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadedTest is one test case together with the file it came from.
type LoadedTest struct {
	File  string
	Suite string
	Test  TestCase
}

// LoadAllTests walks testdata/ and loads every suite it finds.
func LoadAllTests() ([]LoadedTest, error) {
	var loaded []LoadedTest
	err := filepath.Walk("testdata", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}
		suite, err := loadSuite(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		rel, _ := filepath.Rel("testdata", path)
		for _, tc := range suite.Tests {
			loaded = append(loaded, LoadedTest{File: rel, Suite: suite.Name, Test: tc})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

func loadSuite(path string) (TestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TestSuite{}, err
	}
	var suite TestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return TestSuite{}, err
	}
	if suite.Name == "" {
		return TestSuite{}, fmt.Errorf("suite has no name")
	}
	for i, tc := range suite.Tests {
		if tc.Name == "" {
			return TestSuite{}, fmt.Errorf("test %d has no name", i)
		}
		if tc.Source == "" {
			return TestSuite{}, fmt.Errorf("test %q has no source", tc.Name)
		}
	}
	return suite, nil
}
