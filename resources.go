package linux_agent

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/GeertJohan/go.rice"
)

var (
	resourceBoxOnce sync.Once
	resourceBox     *rice.Box
)

// openBoxes finds the resources payload box. For go.rice's 'append' mode to
// work, the call to FindBox() has to be with a literal string parameter.
func openBoxes() {
	resourceBoxOnce.Do(func() {
		var err error
		resourceBox, err = rice.FindBox("resources")
		if err != nil {
			panic(err)
		}
	})
}

// GetResource returns the content of a single file from the resources box.
func GetResource(name string) (string, error) {
	openBoxes()
	content, err := resourceBox.String(name)
	if err != nil {
		return "", fmt.Errorf("resource %s not found", name)
	}
	return content, nil
}

// MustGetResource is GetResource for resources that are compiled in and thus
// cannot be missing. A missing one means a broken build, so it panics.
func MustGetResource(name string) string {
	content, err := GetResource(name)
	if err != nil {
		panic(err)
	}
	return content
}

// GetResourceFiltered returns the contents of all files inside a resource
// directory whose paths match the given filter, indexed by path.
func GetResourceFiltered(dir string, fileFilter *regexp.Regexp) (map[string]string, error) {
	openBoxes()
	contents := make(map[string]string)
	err := resourceBox.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !fileFilter.MatchString(path) {
			return nil
		}
		content, err := resourceBox.String(path)
		if err != nil {
			return err
		}
		contents[path] = content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resource dir %s not found", dir)
	}
	return contents, nil
}

// MustGetResourceFiltered is GetResourceFiltered for compiled-in directories.
func MustGetResourceFiltered(dir string, fileFilter *regexp.Regexp) map[string]string {
	contents, err := GetResourceFiltered(dir, fileFilter)
	if err != nil {
		panic(err)
	}
	return contents
}
