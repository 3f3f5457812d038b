// Package disease holds the plant disease label table and helpers for
// interpreting label names such as "Tomato___Early_blight".
package disease

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

// separator splits the crop from the condition in a label
const separator = "___"

//go:embed labels.txt
var embeddedLabels string

// DefaultLabels returns the 38 PlantVillage classes in model output order.
func DefaultLabels() []string {
	labels, _ := parseLabels(strings.NewReader(embeddedLabels))
	return labels
}

// LoadLabels reads one label per line from path. An empty path returns
// DefaultLabels. Blank lines are skipped.
func LoadLabels(path string) ([]string, error) {
	if path == "" {
		return DefaultLabels(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer f.Close()

	labels, err := parseLabels(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s contains no labels", path)
	}
	return labels, nil
}

func parseLabels(r io.Reader) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	return labels, scanner.Err()
}

// Split returns the crop and condition parts of a label. Labels without the
// separator are returned whole as the condition.
func Split(label string) (crop, condition string) {
	if c, cond, ok := strings.Cut(label, separator); ok {
		return c, cond
	}
	return "", label
}

// IsHealthy reports whether label names a healthy plant.
func IsHealthy(label string) bool {
	_, condition := Split(label)
	return strings.EqualFold(strings.Trim(condition, "_ "), "healthy")
}

// DisplayName renders a label for people: "Tomato___Early_blight" becomes
// "Tomato - Early blight".
func DisplayName(label string) string {
	crop, condition := Split(label)
	condition = humanize(condition)
	if crop == "" {
		return condition
	}
	return humanize(crop) + " - " + condition
}

func humanize(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " ")
}
