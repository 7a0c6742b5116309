package conversation

import (
	"fmt"
	"strings"
)

var fieldAliases = map[string]string{
	"project":          FieldProjectName,
	"project name":     FieldProjectName,
	"projectname":      FieldProjectName,
	"name":             FieldProjectName,
	"contract":         FieldContract,
	"contract address": FieldContract,
	"address":          FieldContract,
	"website":          FieldWebsite,
	"site":             FieldWebsite,
	"url":              FieldWebsite,
	"web":              FieldWebsite,
	"socials":          FieldSocials,
	"social":           FieldSocials,
	"twitter":          FieldSocials,
	"x":                FieldSocials,
	"telegram":         FieldSocials,
	"description":      FieldDescription,
	"desc":             FieldDescription,
	"about":            FieldDescription,
	"details":          FieldDescription,
}

var fieldOrder = []struct {
	key   string
	label string
}{
	{FieldProjectName, "Project"},
	{FieldContract, "Contract"},
	{FieldWebsite, "Website"},
	{FieldSocials, "Socials"},
	{FieldDescription, "Description"},
}

// applyIntake folds a free-form intake message into info. Each line is either
// "field: value" for a known field alias, or unkeyed text which becomes the
// project name when none is set yet and is otherwise appended to the
// description. It reports whether anything changed.
func applyIntake(info map[string]string, text string) bool {
	changed := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if field, value, ok := splitField(line); ok {
			if value == "" {
				continue
			}
			if field == FieldDescription {
				appendDescription(info, value)
			} else {
				info[field] = value
			}
			changed = true
			continue
		}
		if strings.TrimSpace(info[FieldProjectName]) == "" {
			info[FieldProjectName] = line
		} else {
			appendDescription(info, line)
		}
		changed = true
	}
	return changed
}

func splitField(line string) (string, string, bool) {
	i := strings.IndexAny(line, ":=")
	if i <= 0 {
		return "", "", false
	}
	key := strings.ToLower(strings.Join(strings.Fields(line[:i]), " "))
	key = strings.TrimLeft(key, "-*• ")
	field, ok := fieldAliases[key]
	if !ok {
		return "", "", false
	}
	return field, strings.TrimSpace(line[i+1:]), true
}

func appendDescription(info map[string]string, text string) {
	if cur := strings.TrimSpace(info[FieldDescription]); cur != "" {
		info[FieldDescription] = cur + "\n" + text
		return
	}
	info[FieldDescription] = text
}

func summarize(info map[string]string) string {
	var b strings.Builder
	for _, f := range fieldOrder {
		if v := strings.TrimSpace(info[f.key]); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.label, v)
		}
	}
	return strings.TrimSpace(b.String())
}
